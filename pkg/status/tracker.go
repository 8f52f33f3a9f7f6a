package status

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrUnknownBatch is returned when no status has been recorded for a batch.
var ErrUnknownBatch = errors.New("unknown batch")

// Prometheus metrics for status tracking.
var (
	statusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rehydrate_status_updates_total",
		Help: "Total batch status updates written to Redis by phase",
	}, []string{"phase"})

	statusErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rehydrate_status_errors_total",
		Help: "Total failed batch status writes",
	})
)

// Tracker records batch status in Redis.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new status tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// Record stores the status of one batch and registers its root.
func (t *Tracker) Record(ctx context.Context, st BatchStatus) error {
	if st.Root == "" {
		return fmt.Errorf("batch root is required")
	}
	if st.LastUpdate.IsZero() {
		st.LastUpdate = time.Now()
	}

	key := RedisKeyBatchPrefix + st.Root

	// Store hash and set membership atomically
	pipe := t.redis.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"phase":       string(st.Phase),
		"start":       st.Start,
		"total":       st.Total,
		"remaining":   st.Remaining,
		"written":     st.Written,
		"last_error":  st.LastError,
		"last_update": st.LastUpdate.UTC().Format(time.RFC3339Nano),
	})
	pipe.SAdd(ctx, RedisKeyBatches, st.Root)

	if _, err := pipe.Exec(ctx); err != nil {
		statusErrorsTotal.Inc()
		return fmt.Errorf("store batch status in redis: %w", err)
	}

	statusUpdatesTotal.WithLabelValues(string(st.Phase)).Inc()

	t.logger.Debug().
		Str("batch", st.Root).
		Str("phase", string(st.Phase)).
		Int("written", st.Written).
		Int("remaining", st.Remaining).
		Msg("Batch status recorded")

	return nil
}

// Get retrieves the status of one batch.
// Returns ErrUnknownBatch if nothing was recorded for root.
func (t *Tracker) Get(ctx context.Context, root string) (*BatchStatus, error) {
	fields, err := t.redis.HGetAll(ctx, RedisKeyBatchPrefix+root).Result()
	if err != nil {
		return nil, fmt.Errorf("get batch status: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBatch, root)
	}

	st, err := parseStatus(root, fields)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// List returns the status of every recorded batch, ordered by root.
func (t *Tracker) List(ctx context.Context) ([]BatchStatus, error) {
	roots, err := t.redis.SMembers(ctx, RedisKeyBatches).Result()
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	slices.Sort(roots)

	out := make([]BatchStatus, 0, len(roots))
	for _, root := range roots {
		st, err := t.Get(ctx, root)
		if errors.Is(err, ErrUnknownBatch) {
			// Hash expired or was deleted by hand; the set entry is harmless
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}

func parseStatus(root string, fields map[string]string) (*BatchStatus, error) {
	st := &BatchStatus{
		Root:      root,
		Phase:     Phase(fields["phase"]),
		Start:     fields["start"],
		LastError: fields["last_error"],
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"total", &st.Total},
		{"remaining", &st.Remaining},
		{"written", &st.Written},
	}
	for _, f := range ints {
		raw, ok := fields[f.name]
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = v
	}

	if raw := fields["last_update"]; raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
		st.LastUpdate = ts
	}

	return st, nil
}
