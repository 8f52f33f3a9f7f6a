package status

import (
	"testing"
	"time"
)

func TestBatchStatus_IsStale(t *testing.T) {
	tests := []struct {
		name   string
		age    time.Duration
		maxAge time.Duration
		want   bool
	}{
		{"fresh", 10 * time.Second, time.Minute, false},
		{"stale", 2 * time.Minute, time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &BatchStatus{LastUpdate: time.Now().Add(-tt.age)}
			if got := s.IsStale(tt.maxAge); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBatchStatus_IsTerminal(t *testing.T) {
	for _, p := range []Phase{PhaseNotStarted, PhaseInProgress, PhaseFailed} {
		s := &BatchStatus{Phase: p}
		if s.IsTerminal() {
			t.Errorf("IsTerminal() for %s = true, want false", p)
		}
	}
	s := &BatchStatus{Phase: PhaseComplete}
	if !s.IsTerminal() {
		t.Error("IsTerminal() for complete = false, want true")
	}
}

func TestBatchStatus_Progress(t *testing.T) {
	tests := []struct {
		name   string
		status BatchStatus
		want   float64
	}{
		{"nothing to do yet", BatchStatus{Phase: PhaseInProgress}, 0},
		{"nothing to do and complete", BatchStatus{Phase: PhaseComplete}, 1},
		{"half way", BatchStatus{Remaining: 10, Written: 5}, 0.5},
		{"dropped ids", BatchStatus{Phase: PhaseComplete, Remaining: 4, Written: 3}, 0.75},
		{"clamped", BatchStatus{Remaining: 2, Written: 3}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Progress(); got != tt.want {
				t.Errorf("Progress() = %v, want %v", got, tt.want)
			}
		})
	}
}
