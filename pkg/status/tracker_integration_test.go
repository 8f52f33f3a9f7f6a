//go:build integration

package status

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_RecordAndGet(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	ctx := context.Background()

	if _, err := tracker.Get(ctx, "2020-03-01"); !errors.Is(err, ErrUnknownBatch) {
		t.Fatalf("Get() on empty redis error = %v, want ErrUnknownBatch", err)
	}

	want := BatchStatus{Root: "2020-03-01", Phase: PhaseInProgress, Start: "fresh", Total: 3, Remaining: 3, Written: 2}
	if err := tracker.Record(ctx, want); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := tracker.Get(ctx, "2020-03-01")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Phase != want.Phase || got.Written != 2 || got.Total != 3 {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
	if got.LastUpdate.IsZero() {
		t.Error("LastUpdate should be set by Record()")
	}

	// Later updates overwrite the hash
	want.Phase = PhaseComplete
	want.Written = 3
	if err := tracker.Record(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err = tracker.Get(ctx, "2020-03-01")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsTerminal() || got.Written != 3 {
		t.Errorf("after completion Get() = %+v", got)
	}
}

func TestTracker_Integration_List(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	ctx := context.Background()

	for _, root := range []string{"b", "a", "c"} {
		if err := tracker.Record(ctx, BatchStatus{Root: root, Phase: PhaseInProgress}); err != nil {
			t.Fatal(err)
		}
	}
	// Dangling set member without a hash is skipped
	if err := redisClient.SAdd(ctx, RedisKeyBatches, "gone").Err(); err != nil {
		t.Fatal(err)
	}

	list, err := tracker.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List() = %d entries, want 3", len(list))
	}
	for i, root := range []string{"a", "b", "c"} {
		if list[i].Root != root {
			t.Errorf("List()[%d].Root = %q, want %q", i, list[i].Root, root)
		}
	}
}
