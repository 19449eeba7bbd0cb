package health

import (
	"testing"
	"time"
)

func TestMonitor_UnknownProviderNeutral(t *testing.T) {
	m := NewMonitor()

	snap := m.Snapshot("never-seen")
	if snap.SuccessRate != 1.0 {
		t.Errorf("Expected neutral success rate 1.0, got %f", snap.SuccessRate)
	}
	if snap.Uptime != 1.0 {
		t.Errorf("Expected neutral uptime 1.0, got %f", snap.Uptime)
	}
	if snap.Attempts != 0 {
		t.Errorf("Expected 0 attempts, got %d", snap.Attempts)
	}
}

func TestMonitor_SuccessRate(t *testing.T) {
	m := NewMonitor()

	m.RecordAttempt("p1", true, 100*time.Millisecond)
	m.RecordAttempt("p1", true, 200*time.Millisecond)
	m.RecordAttempt("p1", false, 300*time.Millisecond)
	m.RecordAttempt("p1", true, 400*time.Millisecond)

	snap := m.Snapshot("p1")
	if snap.SuccessRate != 0.75 {
		t.Errorf("Expected success rate 0.75, got %f", snap.SuccessRate)
	}
	if snap.AvgLatencyMs != 250 {
		t.Errorf("Expected avg latency 250ms, got %f", snap.AvgLatencyMs)
	}
	if snap.Attempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", snap.Attempts)
	}
}

func TestMonitor_WindowEviction(t *testing.T) {
	m := NewMonitorWithWindow(3, 0.95)

	// Three failures, then three successes; window keeps only the last 3.
	for i := 0; i < 3; i++ {
		m.RecordAttempt("p1", false, time.Millisecond)
	}
	for i := 0; i < 3; i++ {
		m.RecordAttempt("p1", true, time.Millisecond)
	}

	snap := m.Snapshot("p1")
	if snap.SuccessRate != 1.0 {
		t.Errorf("Expected success rate 1.0 after eviction, got %f", snap.SuccessRate)
	}
	if snap.Attempts != 3 {
		t.Errorf("Expected window of 3, got %d", snap.Attempts)
	}
}

func TestMonitor_UptimeDecays(t *testing.T) {
	m := NewMonitorWithWindow(10, 0.5)

	m.RecordAttempt("p1", true, time.Millisecond)
	if up := m.Snapshot("p1").Uptime; up != 1.0 {
		t.Fatalf("Expected uptime 1.0 after first success, got %f", up)
	}

	m.RecordAttempt("p1", false, time.Millisecond)
	up := m.Snapshot("p1").Uptime
	if up != 0.5 {
		t.Errorf("Expected uptime 0.5 after decay, got %f", up)
	}

	m.RecordAttempt("p1", false, time.Millisecond)
	up = m.Snapshot("p1").Uptime
	if up != 0.25 {
		t.Errorf("Expected uptime 0.25 after second failure, got %f", up)
	}
}

func TestMonitor_FailureIncrementsOnce(t *testing.T) {
	m := NewMonitor()

	m.RecordAttempt("p1", false, 50*time.Millisecond)

	snap := m.Snapshot("p1")
	if snap.Attempts != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", snap.Attempts)
	}
	if snap.SuccessRate != 0 {
		t.Errorf("Expected success rate 0, got %f", snap.SuccessRate)
	}
}

func TestMonitor_Providers(t *testing.T) {
	m := NewMonitor()

	m.RecordAttempt("p1", true, time.Millisecond)
	m.RecordAttempt("p2", false, time.Millisecond)

	names := m.Providers()
	if len(names) != 2 {
		t.Errorf("Expected 2 providers, got %d", len(names))
	}
}
