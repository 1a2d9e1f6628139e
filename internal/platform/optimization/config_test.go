package optimization

import "testing"

func TestProfileSelection(t *testing.T) {
	if Profile("low").MaxSessionsPerInstance != LowResourceConfig().MaxSessionsPerInstance {
		t.Errorf("Expected low profile for \"low\"")
	}
	if Profile("stress").MaxSessionsPerInstance != StressTestConfig().MaxSessionsPerInstance {
		t.Errorf("Expected stress profile for \"stress\"")
	}
	// Unknown names fall back to defaults rather than failing startup.
	if Profile("garbage").MaxSessionsPerInstance != DefaultConfig().MaxSessionsPerInstance {
		t.Errorf("Expected default profile for an unknown name")
	}
}

func TestAnalyzeFlagsSlowWrites(t *testing.T) {
	metrics := map[string]interface{}{
		"events": map[string]interface{}{
			"max_write_lat_ms": 75.0,
			"errors":           int64(0),
		},
	}

	rec := Analyze(metrics)

	if !rec.IncreaseDBConnections {
		t.Errorf("Expected DB connection recommendation for slow writes")
	}
	if len(rec.Notes) == 0 {
		t.Errorf("Expected an explanatory note")
	}
}

func TestAnalyzeFlagsWebSocketBackpressure(t *testing.T) {
	metrics := map[string]interface{}{
		"websocket": map[string]interface{}{
			"errors": int64(3),
		},
	}

	rec := Analyze(metrics)

	if !rec.IncreaseBroadcastBuffer {
		t.Errorf("Expected broadcast buffer recommendation for WS errors")
	}
}

func TestAnalyzeQuietMetrics(t *testing.T) {
	metrics := map[string]interface{}{
		"tick":      map[string]interface{}{"max_latency_ms": 2.0},
		"events":    map[string]interface{}{"max_write_lat_ms": 1.0, "errors": int64(0)},
		"websocket": map[string]interface{}{"errors": int64(0)},
	}

	rec := Analyze(metrics)

	if rec.IncreaseDBConnections || rec.IncreaseBroadcastBuffer || len(rec.Notes) != 0 {
		t.Errorf("Expected no recommendations for healthy metrics, got %+v", rec)
	}
}

func TestApplyRecommendations(t *testing.T) {
	cfg := LowResourceConfig()

	out := ApplyRecommendations(cfg, &Recommendations{
		IncreaseBroadcastBuffer: true,
		IncreaseDBConnections:   true,
	})

	if out.BroadcastChannelBuffer != 32 || out.ClientSendBuffer != 16 {
		t.Errorf("Expected doubled buffers, got %d / %d", out.BroadcastChannelBuffer, out.ClientSendBuffer)
	}
	if out.DBMaxOpenConns != 7 {
		t.Errorf("Expected open conns 5*1.5=7, got %d", out.DBMaxOpenConns)
	}
}
