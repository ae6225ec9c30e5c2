package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig(limit int64) Config {
	return Config{
		MemoryLimitBytes:  limit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

func TestNewMonitor(t *testing.T) {
	config := testConfig(100 * 1024 * 1024)
	monitor := NewMonitor(config)
	if monitor == nil {
		t.Fatal("NewMonitor returned nil")
	}
	if monitor.limit != config.MemoryLimitBytes {
		t.Errorf("Expected limit %d, got %d", config.MemoryLimitBytes, monitor.limit)
	}
	if monitor.config.HighWaterMark != config.HighWaterMark {
		t.Errorf("Expected high water mark %.2f, got %.2f", config.HighWaterMark, monitor.config.HighWaterMark)
	}
}

func TestMonitorStartStop(_ *testing.T) {
	config := testConfig(100 * 1024 * 1024)
	config.CheckInterval = 20 * time.Millisecond

	monitor := NewMonitor(config)
	monitor.Start()
	time.Sleep(60 * time.Millisecond)

	monitor.Stop()
	monitor.Stop() // second stop is a no-op
}

func TestMonitorHysteresis(t *testing.T) {
	monitor := NewMonitor(testConfig(1000))

	steps := []struct {
		alloc      uint64
		wantPaused bool
	}{
		{500, false}, // below high water
		{800, false}, // between marks, not yet paused
		{900, true},  // above critical
		{800, true},  // between marks, stays paused
		{600, false}, // below high water, resumes
	}

	for _, step := range steps {
		monitor.update(step.alloc)
		if got := monitor.IsPaused(); got != step.wantPaused {
			t.Errorf("after alloc=%d IsPaused() = %v, want %v", step.alloc, got, step.wantPaused)
		}
	}
}

func TestMonitorShouldThrottle(t *testing.T) {
	monitor := NewMonitor(testConfig(1000))

	monitor.update(500)
	if monitor.ShouldThrottle() {
		t.Error("should not throttle below high water mark")
	}
	monitor.update(750)
	if !monitor.ShouldThrottle() {
		t.Error("should throttle above high water mark")
	}
}

func TestMonitorWait(t *testing.T) {
	monitor := NewMonitor(testConfig(1000))

	if err := monitor.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() on unpaused monitor = %v", err)
	}

	monitor.update(950)
	released := make(chan error, 1)
	go func() { released <- monitor.Wait(context.Background()) }()

	select {
	case <-released:
		t.Fatal("Wait() returned while paused")
	case <-time.After(30 * time.Millisecond):
	}

	monitor.update(100)
	select {
	case err := <-released:
		if err != nil {
			t.Errorf("Wait() after resume = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after memory recovered")
	}
}

func TestMonitorWaitHonorsContext(t *testing.T) {
	monitor := NewMonitor(testConfig(1000))
	monitor.update(990)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := monitor.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}

func TestMonitorWaitReleasedByStop(t *testing.T) {
	monitor := NewMonitor(testConfig(1000))
	monitor.update(990)

	done := make(chan error, 1)
	go func() { done <- monitor.Wait(context.Background()) }()
	monitor.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() after Stop = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not release waiter")
	}
}

func TestNilMonitor(t *testing.T) {
	var monitor *Monitor

	monitor.Start()
	monitor.Stop()
	if monitor.IsPaused() || monitor.ShouldThrottle() {
		t.Error("nil monitor must never apply backpressure")
	}
	if err := monitor.Wait(context.Background()); err != nil {
		t.Errorf("Wait() on nil monitor = %v", err)
	}
	if cur, limit, usage := monitor.GetStats(); cur != 0 || limit != 0 || usage != 0 {
		t.Error("nil monitor stats should be zero")
	}
}

func TestMonitorGetStats(t *testing.T) {
	monitor := NewMonitor(testConfig(1000))
	monitor.update(250)

	current, limit, usage := monitor.GetStats()
	if current != 250 || limit != 1000 || usage != 0.25 {
		t.Errorf("GetStats() = %d, %d, %v", current, limit, usage)
	}
}
