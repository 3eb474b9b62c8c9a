package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gwillem/puppet/pkg/choreo"
	"github.com/gwillem/puppet/pkg/metrics"
	"github.com/gwillem/puppet/pkg/puppet"
	"github.com/gwillem/puppet/pkg/sequencer"
	"github.com/gwillem/puppet/pkg/servo"
)

const poses = `{"poses": {
  "rest": {"description": "Neutral", "left_arm": {"shoulder": 90, "elbow": 90}},
  "point": {"right_arm": {"shoulder": 100}, "tail": {"tip": 3}}
}}`

const sequences = `{"sequences": {
  "hello": {"description": "Wave", "steps": [{"pose": "point", "duration": 0}, {"pose": "ghost"}, {"pose": "rest", "duration": 0}]}
}}`

func newTestServer(t *testing.T) (http.Handler, *servo.SimDriver, *choreo.Store) {
	t.Helper()
	drv := servo.NewSimDriver(16)
	clock := &servo.RecordingClock{}
	ctrl := servo.NewController(drv, servo.WithClock(clock))
	p, err := puppet.New(ctrl, puppet.DefaultConfig().Limbs, puppet.WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}

	store := choreo.NewStore()
	if err := store.LoadPoses(strings.NewReader(poses)); err != nil {
		t.Fatal(err)
	}
	if err := store.LoadSequences(strings.NewReader(sequences)); err != nil {
		t.Fatal(err)
	}

	met := metrics.New()
	seq := sequencer.New(p, store, sequencer.WithClock(clock), sequencer.WithEventHandler(met.ObserveEvent))
	return NewHandler(seq, nil, met).Routes(), drv, store
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_ListPoses(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/poses", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var entries []catalogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Name != "rest" || entries[1].Name != "point" {
		t.Errorf("entries = %+v", entries)
	}
	if entries[1].Count != 2 {
		t.Errorf("point limbs = %d, want 2", entries[1].Count)
	}
}

func TestHandler_ListSequences(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/sequences", nil)

	var entries []catalogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Count != 3 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestHandler_ExecutePose(t *testing.T) {
	h, drv, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/poses/point?speed=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var res poseResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Outcome != "partial" || res.Applied != 1 || len(res.Skipped) != 1 || res.Skipped[0].Item != "tail" {
		t.Errorf("result = %+v", res)
	}

	cmds := drv.Commands()
	want := []servo.Command{{Channel: 3, Angle: 95}, {Channel: 3, Angle: 100}}
	if len(cmds) != 2 || cmds[0] != want[0] || cmds[1] != want[1] {
		t.Errorf("commands = %v, want %v", cmds, want)
	}
}

func TestHandler_ExecutePose_Errors(t *testing.T) {
	h, drv, _ := newTestServer(t)

	tests := []struct {
		path string
		code int
	}{
		{"/poses/ghost", http.StatusNotFound},
		{"/poses/rest?speed=fast", http.StatusBadRequest},
		{"/poses/rest?speed=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(t, h, http.MethodPost, tt.path, nil); rec.Code != tt.code {
			t.Errorf("POST %s: expected %d, got %d", tt.path, tt.code, rec.Code)
		}
	}
	if n := len(drv.Commands()); n != 0 {
		t.Errorf("%d commands issued, want 0", n)
	}
}

func TestHandler_DefinePose(t *testing.T) {
	h, drv, store := newTestServer(t)

	body := []byte(`{"description": "Salute", "right_arm": {"shoulder": 20, "elbow": 150}}`)
	if rec := do(t, h, http.MethodPut, "/poses/salute", body); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/poses/salute", body); rec.Code != http.StatusOK {
		t.Errorf("redefine: expected 200, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/poses/bad", []byte("not json")); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: expected 400, got %d", rec.Code)
	}

	p, err := store.Pose("salute")
	if err != nil {
		t.Fatal(err)
	}
	if p.Description != "Salute" {
		t.Errorf("description = %q", p.Description)
	}

	rec := do(t, h, http.MethodGet, "/poses/salute", nil)
	if !strings.Contains(rec.Body.String(), `"description":"Salute"`) {
		t.Errorf("GET body = %s", rec.Body)
	}

	do(t, h, http.MethodPost, "/poses/salute", nil)
	cmds := drv.Commands()
	if len(cmds) != 2 || cmds[0] != (servo.Command{Channel: 3, Angle: 20}) || cmds[1] != (servo.Command{Channel: 4, Angle: 150}) {
		t.Errorf("commands = %v", cmds)
	}
}

func TestHandler_ExecuteSequence(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/sequences/hello", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var res sequenceResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Completed || res.Outcome != "partial" || len(res.Steps) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if res.Steps[1].Error == "" || res.Steps[2].Error != "" {
		t.Errorf("steps = %+v", res.Steps)
	}

	if rec := do(t, h, http.MethodPost, "/sequences/ghost", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_ResetAndState(t *testing.T) {
	h, drv, _ := newTestServer(t)
	do(t, h, http.MethodPost, "/poses/point", nil)

	rec := do(t, h, http.MethodGet, "/state", nil)
	var state struct {
		Limbs    map[string]map[string]float64 `json:"limbs"`
		Channels []float64                     `json:"channels"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if state.Limbs["right_arm"]["shoulder"] != 100 || len(state.Channels) != 16 {
		t.Errorf("state = %+v", state)
	}

	drv.Clear()
	if rec := do(t, h, http.MethodPost, "/reset", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if n := len(drv.Commands()); n != 6 {
		t.Errorf("reset issued %d commands, want 6", n)
	}
}

func TestHandler_Metrics(t *testing.T) {
	h, _, _ := newTestServer(t)
	do(t, h, http.MethodPost, "/poses/rest", nil)
	do(t, h, http.MethodPost, "/poses/ghost", nil)

	body := do(t, h, http.MethodGet, "/metrics", nil).Body.String()
	for _, want := range []string{
		`puppet_poses_executed_total{outcome="success"} 1`,
		"puppet_requests_total 2",
		"puppet_errors_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

// gateClock blocks every pause until released.
type gateClock struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gateClock) Sleep(ctx context.Context, d time.Duration) error {
	g.entered <- struct{}{}
	<-g.release
	return ctx.Err()
}

func TestHandler_CloseWaitsForMotion(t *testing.T) {
	drv := servo.NewSimDriver(16)
	motor := &servo.RecordingClock{}
	p, err := puppet.New(servo.NewController(drv, servo.WithClock(motor)), puppet.DefaultConfig().Limbs, puppet.WithClock(motor))
	if err != nil {
		t.Fatal(err)
	}
	store := choreo.NewStore()
	if err := store.LoadPoses(strings.NewReader(poses)); err != nil {
		t.Fatal(err)
	}
	if err := store.LoadSequences(strings.NewReader(`{"sequences": {"hold": {"steps": [{"pose": "point", "duration": 5}]}}}`)); err != nil {
		t.Fatal(err)
	}
	gate := &gateClock{entered: make(chan struct{}), release: make(chan struct{})}
	h := NewHandler(sequencer.New(p, store, sequencer.WithClock(gate)), nil, nil)
	routes := h.Routes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reqDone := make(chan *httptest.ResponseRecorder)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/sequences/hold", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, req)
		reqDone <- rec
	}()
	<-gate.entered

	closeDone := make(chan error, 1)
	go func() { closeDone <- h.Close(context.Background()) }()
	select {
	case <-closeDone:
		t.Fatal("Close returned while a sequence was holding")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	close(gate.release)

	rec := <-reqDone
	var res sequenceResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Completed {
		t.Errorf("interrupted sequence reported completed: %+v", res)
	}
	if err := <-closeDone; err != nil {
		t.Fatal(err)
	}

	// The reset comes after the sequence's move, so the puppet ends centered
	cmds := drv.Commands()
	if len(cmds) != 7 || cmds[0] != (servo.Command{Channel: 3, Angle: 100}) {
		t.Fatalf("commands = %v", cmds)
	}
	for _, c := range cmds[1:] {
		if c.Angle != servo.CenterAngle {
			t.Errorf("reset command %v not centered", c)
		}
	}
}

func TestHandler_RejectsMotionAfterClose(t *testing.T) {
	drv := servo.NewSimDriver(16)
	clock := &servo.RecordingClock{}
	p, err := puppet.New(servo.NewController(drv, servo.WithClock(clock)), puppet.DefaultConfig().Limbs, puppet.WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	store := choreo.NewStore()
	if err := store.LoadPoses(strings.NewReader(poses)); err != nil {
		t.Fatal(err)
	}
	h := NewHandler(sequencer.New(p, store, sequencer.WithClock(clock)), nil, nil)

	if err := h.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(drv.Commands()); n != 6 {
		t.Fatalf("Close issued %d commands, want 6", n)
	}
	drv.Clear()

	routes := h.Routes()
	for _, path := range []string{"/poses/rest", "/sequences/hello", "/reset"} {
		if rec := do(t, routes, http.MethodPost, path, nil); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("POST %s after Close: expected 503, got %d", path, rec.Code)
		}
	}
	if rec := do(t, routes, http.MethodGet, "/poses", nil); rec.Code != http.StatusOK {
		t.Errorf("GET /poses after Close: expected 200, got %d", rec.Code)
	}
	if n := len(drv.Commands()); n != 0 {
		t.Errorf("%d commands issued after Close, want 0", n)
	}
}
