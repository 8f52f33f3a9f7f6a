// Command rehydrate fetches the records listed in every ID file of an input
// directory and writes one CSV per file to an output directory. Runs can be
// interrupted and restarted at any time; finished batches are skipped and
// unfinished ones resume where they stopped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/rehydrate/pkg/batch"
	"github.com/Sternrassler/rehydrate/pkg/checkpoint"
	"github.com/Sternrassler/rehydrate/pkg/hydrate"
	"github.com/Sternrassler/rehydrate/pkg/logging"
	"github.com/Sternrassler/rehydrate/pkg/lookup"
	"github.com/Sternrassler/rehydrate/pkg/metrics"
	"github.com/Sternrassler/rehydrate/pkg/status"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitSetup  = 2
)

const (
	defaultUA   = "rehydrate/0.1.0"
	defaultEnv  = ".env"
	defaultIn   = "id_files"
	defaultOut  = "hydrated_files"
	pingTimeout = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

// config is the resolved command configuration.
type config struct {
	InDir           string
	OutDir          string
	FlushEvery      int
	ContinueOnError bool
	BaseURL         string
	Token           string
	UserAgent       string
	RedisURL        string
	MetricsAddr     string
	LogLevel        logging.LogLevel
	LogPretty       bool
}

// loadConfig reads flags, falling back to environment variables for defaults.
func loadConfig(args []string, getenv func(string) string) (config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	var cfg config
	var logLevel string

	fsFlags := flag.NewFlagSet("rehydrate", flag.ContinueOnError)
	fsFlags.SetOutput(io.Discard)
	fsFlags.StringVar(&cfg.InDir, "in", env("IN_DIR", defaultIn), "directory of newline-delimited ID files (*.txt)")
	fsFlags.StringVar(&cfg.OutDir, "out", env("OUT_DIR", defaultOut), "directory for CSV output")
	fsFlags.StringVar(&cfg.BaseURL, "base-url", env("LOOKUP_BASE_URL", lookup.DefaultConfig("", "").BaseURL), "lookup API base URL")
	fsFlags.StringVar(&cfg.Token, "token", env("LOOKUP_TOKEN", ""), "lookup API bearer token")
	fsFlags.StringVar(&cfg.UserAgent, "user-agent", env("USER_AGENT", defaultUA), "User-Agent header")
	fsFlags.StringVar(&cfg.RedisURL, "redis-url", env("REDIS_URL", ""), "optional Redis URL for batch status")
	fsFlags.StringVar(&cfg.MetricsAddr, "metrics-addr", env("METRICS_ADDR", ""), "optional address for /metrics and /health")
	fsFlags.StringVar(&logLevel, "log-level", env("LOG_LEVEL", string(logging.LevelInfo)), "log level (debug, info, warn, error)")

	flushEvery, err := envInt(getenv, "FLUSH_EVERY", hydrate.DefaultFlushEvery)
	if err != nil {
		return cfg, err
	}
	continueOnError, err := envBool(getenv, "CONTINUE_ON_ERROR", false)
	if err != nil {
		return cfg, err
	}
	logPretty, err := envBool(getenv, "LOG_PRETTY", false)
	if err != nil {
		return cfg, err
	}
	fsFlags.IntVar(&cfg.FlushEvery, "flush-every", flushEvery, "rows buffered between appends")
	fsFlags.BoolVar(&cfg.ContinueOnError, "continue-on-error", continueOnError, "move on to the next batch after a failure")
	fsFlags.BoolVar(&cfg.LogPretty, "log-pretty", logPretty, "human-readable log output")

	if err := fsFlags.Parse(args); err != nil {
		return cfg, err
	}
	if fsFlags.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(fsFlags.Args(), " "))
	}

	cfg.LogLevel, err = logging.ParseLevel(logLevel)
	if err != nil {
		return cfg, err
	}
	if cfg.FlushEvery <= 0 {
		return cfg, fmt.Errorf("flush-every must be > 0 (got %d)", cfg.FlushEvery)
	}

	return cfg, nil
}

func envInt(getenv func(string) string, key string, def int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envBool(getenv func(string) string, key string, def bool) (bool, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// withEnvFile returns a getenv that falls back to the KEY=VALUE pairs in
// path. Variables set in the environment win. A missing file is not an error.
func withEnvFile(getenv func(string) string, path string) (func(string) string, error) {
	if path == "" {
		return getenv, nil
	}
	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return getenv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return vars[key]
	}, nil
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	envFile := getenv("ENV_FILE")
	if envFile == "" {
		envFile = defaultEnv
	}
	getenv, err := withEnvFile(getenv, envFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error! %v\n", err)
		return exitSetup
	}

	cfg, err := loadConfig(args, getenv)
	if err != nil {
		fmt.Fprintf(stderr, "Error! %v\n", err)
		return exitSetup
	}

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: stderr,
	})
	logger := logging.NewLogger("cli")

	if err := checkSetup(cfg); err != nil {
		logger.Error().Err(err).Msg("Setup failed")
		fmt.Fprintf(stderr, "Error! %v\n", err)
		return exitSetup
	}

	lookupCfg := lookup.DefaultConfig(cfg.Token, cfg.UserAgent)
	lookupCfg.BaseURL = cfg.BaseURL
	resolver, err := lookup.New(lookupCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error! %v\n", err)
		return exitSetup
	}

	opts := []hydrate.Option{hydrate.WithLogger(logging.NewLogger("hydrate"))}

	if cfg.RedisURL != "" {
		redisClient, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			// Status mirroring is optional; the artifacts stay authoritative
			logger.Warn().Err(err).Msg("Redis unavailable, batch status will not be recorded")
		} else {
			defer redisClient.Close()
			opts = append(opts, hydrate.WithStatus(status.NewTracker(redisClient, logging.NewLogger("status"))))
			logger.Info().Msg("Recording batch status in Redis")
		}
	}

	if cfg.MetricsAddr != "" {
		if _, err := metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
			fmt.Fprintf(stderr, "Error! %v\n", err)
			return exitSetup
		}
	}

	driver, err := hydrate.New(resolver, hydrate.Config{
		FlushEvery:      cfg.FlushEvery,
		ContinueOnError: cfg.ContinueOnError,
	}, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error! %v\n", err)
		return exitSetup
	}

	batches, err := batch.Enumerate(cfg.InDir, cfg.OutDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error! %v\n", err)
		return exitSetup
	}
	logger.Info().
		Int("batches", len(batches)).
		Str("in", cfg.InDir).
		Str("out", cfg.OutDir).
		Int("flush_every", cfg.FlushEvery).
		Msg("Starting run")

	sum, runErr := driver.Run(ctx, batches)
	report(stdout, sum)

	if runErr != nil {
		logger.Error().Err(runErr).Msg("Run stopped")
		fmt.Fprintf(stderr, "Error! %v\n", runErr)
		return exitFailed
	}
	if len(sum.Failed) > 0 {
		return exitFailed
	}
	return exitOK
}

// checkSetup verifies the run can start and creates the output directory.
func checkSetup(cfg config) error {
	info, err := os.Stat(cfg.InDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("could not find the directory of ID files %q", cfg.InDir)
	}

	if cfg.Token == "" {
		return fmt.Errorf("no lookup credentials: set LOOKUP_TOKEN (environment or %s) or pass -token", defaultEnv)
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

// connectRedis accepts a redis:// URL or a bare host:port.
func connectRedis(ctx context.Context, raw string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(raw, "://") {
		parsed, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: raw}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// report prints one line per batch.
func report(w io.Writer, sum hydrate.Summary) {
	failed := make(map[string]error, len(sum.Failed))
	for _, f := range sum.Failed {
		failed[f.Batch] = f.Err
	}

	for _, res := range sum.Results {
		if err, ok := failed[res.Batch]; ok {
			fmt.Fprintf(w, "%s: failed after %d rows: %v\n", res.Batch, res.Written, err)
			continue
		}

		switch res.Start {
		case checkpoint.StartComplete:
			fmt.Fprintf(w, "%s: already complete, skipped\n", res.Batch)
		case checkpoint.StartResumed:
			fmt.Fprintf(w, "%s: resumed, wrote %d of %d remaining rows (%d dropped)\n",
				res.Batch, res.Written, res.Remaining, res.Dropped())
		default:
			fmt.Fprintf(w, "%s: hydrated, wrote %d of %d rows (%d dropped)\n",
				res.Batch, res.Written, res.Remaining, res.Dropped())
		}
	}

	fmt.Fprintf(w, "%d batches, %d failed\n", len(sum.Results), len(sum.Failed))
}
