// Package server exposes the sequencer over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/gwillem/puppet/pkg/choreo"
	"github.com/gwillem/puppet/pkg/logging"
	"github.com/gwillem/puppet/pkg/metrics"
	"github.com/gwillem/puppet/pkg/sequencer"
)

// ErrClosed is returned to motion requests that arrive after Close.
var ErrClosed = errors.New("server is shutting down")

// Handler exposes choreography endpoints using go-chi. Motion requests are
// serialized: the puppet has a single thread of control.
type Handler struct {
	seq     *sequencer.Sequencer
	log     *slog.Logger
	metrics *metrics.Metrics

	motion sync.Mutex
	closed bool // guarded by motion
}

// NewHandler returns a Handler for seq. Metrics may be nil to disable metric
// recording (e.g. in tests).
func NewHandler(seq *sequencer.Sequencer, log *slog.Logger, m *metrics.Metrics) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	return &Handler{seq: seq, log: log, metrics: m}
}

// Close waits for motion in progress, centers the puppet and refuses any
// further motion requests. The reset runs even if ctx is already done.
func (h *Handler) Close(ctx context.Context) error {
	h.motion.Lock()
	defer h.motion.Unlock()
	h.closed = true
	return h.seq.Reset(context.WithoutCancel(ctx))
}

// lockMotion takes the motion lock. It reports false, without the lock held,
// once the handler is closed.
func (h *Handler) lockMotion(w http.ResponseWriter) bool {
	h.motion.Lock()
	if h.closed {
		h.motion.Unlock()
		writeError(w, http.StatusServiceUnavailable, ErrClosed.Error())
		return false
	}
	return true
}

// Routes returns the router with logging and metrics middleware installed.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.RequestLogger(h.log))
	if h.metrics != nil {
		r.Use(metrics.RequestMiddleware(h.metrics))
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Get("/poses", h.ListPoses)
	r.Route("/poses/{name}", func(r chi.Router) {
		r.Get("/", h.GetPose)
		r.Post("/", h.ExecutePose)
		r.Put("/", h.DefinePose)
	})
	r.Get("/sequences", h.ListSequences)
	r.Post("/sequences/{name}", h.ExecuteSequence)
	r.Post("/reset", h.Reset)
	r.Get("/state", h.State)
	return r
}

type catalogEntry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Count       int    `json:"count"` // limbs for poses, steps for sequences
}

type skipJSON struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

type poseResult struct {
	Pose    string     `json:"pose"`
	Outcome string     `json:"outcome"`
	Applied int        `json:"applied"`
	Skipped []skipJSON `json:"skipped"`
}

type stepResult struct {
	Step  int        `json:"step"`
	Pose  poseResult `json:"pose"`
	Error string     `json:"error,omitempty"`
}

type sequenceResult struct {
	Sequence  string       `json:"sequence"`
	Outcome   string       `json:"outcome"`
	Completed bool         `json:"completed"`
	Steps     []stepResult `json:"steps"`
}

func toPoseResult(r sequencer.PoseReport) poseResult {
	out := poseResult{
		Pose:    r.Pose,
		Outcome: r.Outcome.String(),
		Applied: r.Applied(),
		Skipped: []skipJSON{},
	}
	for _, s := range r.Skipped {
		out.Skipped = append(out.Skipped, skipJSON{Item: s.Item, Error: s.Err.Error()})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListPoses handles GET /poses.
func (h *Handler) ListPoses(w http.ResponseWriter, r *http.Request) {
	entries := []catalogEntry{}
	for name, p := range h.seq.Store().Poses() {
		entries = append(entries, catalogEntry{Name: name, Description: p.Description, Count: p.NumLimbs()})
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListSequences handles GET /sequences.
func (h *Handler) ListSequences(w http.ResponseWriter, r *http.Request) {
	entries := []catalogEntry{}
	for name, q := range h.seq.Store().Sequences() {
		entries = append(entries, catalogEntry{Name: name, Description: q.Description, Count: len(q.Steps)})
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetPose handles GET /poses/{name}.
func (h *Handler) GetPose(w http.ResponseWriter, r *http.Request) {
	p, err := h.seq.Store().Pose(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ExecutePose handles POST /poses/{name}?speed=<degrees per step>.
func (h *Handler) ExecutePose(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var speed float64
	if s := r.URL.Query().Get("speed"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "speed must be a non-negative number")
			return
		}
		speed = v
	}

	if !h.lockMotion(w) {
		return
	}
	report, err := h.seq.ExecutePose(r.Context(), name, speed)
	h.motion.Unlock()

	switch {
	case errors.Is(err, choreo.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.log.Info("pose aborted", slog.String("pose", name), slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toPoseResult(report))
}

// DefinePose handles PUT /poses/{name}. The body is a pose object as found in
// the poses document.
func (h *Handler) DefinePose(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var p choreo.Pose
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.log.Debug("invalid pose body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusCreated
	if _, err := h.seq.Store().Pose(name); err == nil {
		status = http.StatusOK
	}
	h.seq.DefinePose(name, p)

	writeJSON(w, status, catalogEntry{Name: name, Description: p.Description, Count: p.NumLimbs()})
}

// ExecuteSequence handles POST /sequences/{name}. The request blocks until the
// sequence finishes; a client disconnect stops it before the next step.
func (h *Handler) ExecuteSequence(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if !h.lockMotion(w) {
		return
	}
	report, err := h.seq.ExecuteSequence(r.Context(), name)
	h.motion.Unlock()

	if errors.Is(err, choreo.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	out := sequenceResult{
		Sequence:  report.Sequence,
		Outcome:   report.Outcome.String(),
		Completed: report.Completed,
		Steps:     []stepResult{},
	}
	for _, s := range report.Steps {
		sr := stepResult{Step: s.Index + 1, Pose: toPoseResult(s.Pose)}
		if s.Err != nil {
			sr.Error = s.Err.Error()
		}
		out.Steps = append(out.Steps, sr)
	}
	writeJSON(w, http.StatusOK, out)
}

// Reset handles POST /reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if !h.lockMotion(w) {
		return
	}
	err := h.seq.Reset(r.Context())
	h.motion.Unlock()

	if err != nil {
		h.log.Error("reset failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// State handles GET /state. It does not wait for motion in progress, so
// intermediate angles of a paced move are visible.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	p := h.seq.Puppet()
	limbs := make(map[string]map[string]float64)
	for _, l := range p.Limbs() {
		joints := make(map[string]float64)
		for _, j := range l.Joints() {
			ch, _ := l.Channel(j)
			joints[string(j)], _ = p.Controller().Angle(ch)
		}
		limbs[string(l.Name())] = joints
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"limbs":    limbs,
		"channels": p.Controller().State().Snapshot(),
	})
}
