package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRecordSessionEndOutcomes(t *testing.T) {
	c := &Collector{StartTime: time.Now()}

	c.RecordSessionStart()
	c.RecordSessionStart()
	c.RecordSessionEnd("patient_survived")
	c.RecordSessionEnd("patient_died")
	c.RecordSessionEnd("abandoned")

	if c.SessionsStarted != 2 {
		t.Errorf("Expected 2 starts, got %d", c.SessionsStarted)
	}
	if c.SessionsEnded != 3 {
		t.Errorf("Expected 3 ends, got %d", c.SessionsEnded)
	}
	if c.PatientsSaved != 1 || c.PatientsDied != 1 {
		t.Errorf("Expected 1 saved / 1 died, got %d / %d", c.PatientsSaved, c.PatientsDied)
	}
}

func TestRecordTickTracksMax(t *testing.T) {
	c := &Collector{StartTime: time.Now()}

	c.RecordTick(2 * time.Millisecond)
	c.RecordTick(8 * time.Millisecond)
	c.RecordTick(1 * time.Millisecond)

	if c.TickCount != 3 {
		t.Errorf("Expected 3 ticks, got %d", c.TickCount)
	}
	if c.TickLatencyMax != int64(8*time.Millisecond) {
		t.Errorf("Expected max 8ms, got %d", c.TickLatencyMax)
	}
	if c.LastTickTime.IsZero() {
		t.Errorf("Expected last tick time to be set")
	}
}

func TestRecordEventWriteCountsErrors(t *testing.T) {
	c := &Collector{StartTime: time.Now()}

	c.RecordEventWrite(time.Millisecond, nil)
	c.RecordEventWrite(time.Millisecond, errors.New("db down"))

	if c.EventsWritten != 2 {
		t.Errorf("Expected 2 writes, got %d", c.EventsWritten)
	}
	if c.EventWriteErrors != 1 {
		t.Errorf("Expected 1 error, got %d", c.EventWriteErrors)
	}
}

func TestSnapshotShape(t *testing.T) {
	c := &Collector{StartTime: time.Now()}
	c.RecordTick(time.Millisecond)
	c.RecordWSConnection(1)
	c.RecordWSMessage(true)
	c.RecordWSMessage(false)

	snap := c.Snapshot()

	for _, section := range []string{"tick", "sessions", "events", "websocket"} {
		if _, ok := snap[section]; !ok {
			t.Errorf("Snapshot missing section %q", section)
		}
	}
	ws := snap["websocket"].(map[string]interface{})
	if ws["active_connections"].(int64) != 1 {
		t.Errorf("Expected 1 active connection, got %v", ws["active_connections"])
	}
}

func TestMetricsHandlerServesJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler()(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Metrics endpoint emitted invalid JSON: %v", err)
	}
	if _, ok := body["uptime_seconds"]; !ok {
		t.Errorf("Expected uptime in metrics payload")
	}
}
