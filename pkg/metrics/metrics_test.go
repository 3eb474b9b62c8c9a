package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gwillem/puppet/pkg/puppet"
	"github.com/gwillem/puppet/pkg/sequencer"
	"github.com/gwillem/puppet/pkg/servo"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestObserveCommand(t *testing.T) {
	m := New()

	m.ObserveCommand(3, 45, nil)
	m.ObserveCommand(3, 60, nil)
	m.ObserveCommand(4, 10, fmt.Errorf("%w: channel 4: nack", servo.ErrActuatorFault))
	m.ObserveCommand(5, 0, errors.New("not a fault"))

	body := scrape(t, m)
	assert.Contains(t, body, "puppet_servo_commands_total 4")
	assert.Contains(t, body, "puppet_actuator_faults_total 1")
	assert.Contains(t, body, `puppet_channel_angle_degrees{channel="3"} 60`)
	assert.NotContains(t, body, `channel="4"`, "failed commands do not move the gauge")
}

func TestObserveCommand_ControllerFault(t *testing.T) {
	m := New()
	drv := servo.NewSimDriver(16)
	ctrl := servo.NewController(drv, servo.WithClock(&servo.RecordingClock{}), servo.WithObserver(m.ObserveCommand))
	drv.FailOn(2, errors.New("i2c nack"))

	err := ctrl.Move(context.Background(), 2, 45, 0)
	assert.ErrorIs(t, err, servo.ErrActuatorFault)
	assert.NoError(t, ctrl.Move(context.Background(), 1, 30, 0))

	body := scrape(t, m)
	assert.Contains(t, body, "puppet_servo_commands_total 2")
	assert.Contains(t, body, "puppet_actuator_faults_total 1")
	assert.Contains(t, body, `puppet_channel_angle_degrees{channel="1"} 30`)
	assert.NotContains(t, body, `channel="2"`)
}

func TestObserveEvent(t *testing.T) {
	m := New()

	m.ObserveEvent(sequencer.Event{Kind: sequencer.PoseFinished, Pose: &sequencer.PoseReport{
		Outcome: sequencer.Partial,
		Skipped: []puppet.Skip{{Item: "tail", Err: puppet.ErrUnknownLimb}, {Item: "left_arm.knee", Err: puppet.ErrUnknownJoint}},
	}})
	m.ObserveEvent(sequencer.Event{Kind: sequencer.SequenceFinished, Sequence: &sequencer.SequenceReport{Outcome: sequencer.Success}})
	m.ObserveEvent(sequencer.Event{Kind: sequencer.StepStarted})

	body := scrape(t, m)
	assert.Contains(t, body, `puppet_poses_executed_total{outcome="partial"} 1`)
	assert.Contains(t, body, "puppet_skipped_items_total 2")
	assert.Contains(t, body, `puppet_sequences_executed_total{outcome="success"} 1`)
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "bad", http.StatusBadRequest)
		}
	}))

	for _, path := range []string{"/ok", "/bad", "/ok"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, "puppet_requests_total 3")
	assert.Contains(t, body, "puppet_errors_total 1")
}
