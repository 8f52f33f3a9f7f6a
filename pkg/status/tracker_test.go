package status

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestNewTracker_NilClient(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewTracker(nil) should panic")
		}
	}()
	NewTracker(nil, zerolog.Nop())
}

func TestTracker_Record_RequiresRoot(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	tracker := NewTracker(client, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	if err := tracker.Record(context.Background(), BatchStatus{Phase: PhaseInProgress}); err == nil {
		t.Error("Record() without root should fail")
	}
}

func TestParseStatus(t *testing.T) {
	ts := time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC)
	fields := map[string]string{
		"phase":       "in_progress",
		"start":       "resumed",
		"total":       "10",
		"remaining":   "4",
		"written":     "2",
		"last_error":  "",
		"last_update": ts.Format(time.RFC3339Nano),
	}

	st, err := parseStatus("2020-03-01", fields)
	if err != nil {
		t.Fatalf("parseStatus() error = %v", err)
	}
	if st.Root != "2020-03-01" || st.Phase != PhaseInProgress || st.Start != "resumed" {
		t.Errorf("parseStatus() = %+v", st)
	}
	if st.Total != 10 || st.Remaining != 4 || st.Written != 2 {
		t.Errorf("counts = %d/%d/%d, want 10/4/2", st.Total, st.Remaining, st.Written)
	}
	if !st.LastUpdate.Equal(ts) {
		t.Errorf("LastUpdate = %v, want %v", st.LastUpdate, ts)
	}
}

func TestParseStatus_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"bad count", map[string]string{"phase": "complete", "written": "x"}},
		{"bad timestamp", map[string]string{"phase": "complete", "last_update": "yesterday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseStatus("b", tt.fields); err == nil {
				t.Error("parseStatus() should fail")
			}
		})
	}
}
