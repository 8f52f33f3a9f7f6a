// Package lookup resolves record IDs through an HTTP status-lookup endpoint.
//
// The Client implements hydrate.Resolver. IDs are sent in chunks of at most
// 100 per request. Transient failures (5xx, 429, network) are retried with
// exponential backoff inside the client; anything else ends the stream with
// a *LookupError. IDs the endpoint does not return are dropped silently.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/rehydrate/pkg/hydrate"
	"github.com/Sternrassler/rehydrate/pkg/logging"
	"github.com/rs/zerolog"
)

const (
	// LookupPath is the endpoint path appended to the base URL.
	LookupPath = "/1.1/statuses/lookup.json"

	// MaxChunkSize is the largest number of IDs the endpoint accepts per request.
	MaxChunkSize = 100
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the scheme and host of the API, e.g. "https://api.twitter.com".
	BaseURL string

	// Token is sent as a bearer token. It is passed through as-is.
	Token string

	// UserAgent header
	UserAgent string

	// ChunkSize is the number of IDs per request (1..MaxChunkSize).
	ChunkSize int

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// Retry
	Retry RetryConfig
}

// DefaultConfig returns a default configuration.
func DefaultConfig(token, userAgent string) Config {
	return Config{
		BaseURL:   "https://api.twitter.com",
		Token:     token,
		UserAgent: userAgent,
		ChunkSize: MaxChunkSize,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// Client looks up records over HTTP.
type Client struct {
	httpClient *http.Client
	endpoint   string
	config     Config
	logger     zerolog.Logger
}

// New creates a new lookup client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}

	if cfg.ChunkSize < 1 || cfg.ChunkSize > MaxChunkSize {
		return nil, fmt.Errorf("chunk_size must be in 1..%d (got %d)", MaxChunkSize, cfg.ChunkSize)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		endpoint: strings.TrimSuffix(base.String(), "/") + LookupPath,
		config:   cfg,
		logger:   logging.NewLogger("lookup"),
	}, nil
}

// Resolve implements hydrate.Resolver. Records are yielded chunk by chunk;
// the first failed chunk ends the stream with its error.
func (c *Client) Resolve(ctx context.Context, ids []string) iter.Seq2[hydrate.Record, error] {
	return func(yield func(hydrate.Record, error) bool) {
		for chunk := range slices.Chunk(ids, c.config.ChunkSize) {
			records, err := c.Lookup(ctx, chunk)
			if err != nil {
				yield(hydrate.Record{}, err)
				return
			}
			for _, rec := range records {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// Lookup fetches the records for up to ChunkSize ids in one request,
// retrying transient failures.
func (c *Client) Lookup(ctx context.Context, ids []string) ([]hydrate.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > c.config.ChunkSize {
		return nil, fmt.Errorf("lookup of %d ids exceeds chunk size %d", len(ids), c.config.ChunkSize)
	}

	var records []hydrate.Record
	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		var err error
		records, err = c.do(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	recordsTotal.Add(float64(len(records)))
	if dropped := len(ids) - len(records); dropped > 0 {
		droppedTotal.Add(float64(dropped))
		c.logger.Debug().
			Int("requested", len(ids)).
			Int("returned", len(records)).
			Msg("Lookup dropped ids")
	}

	return records, nil
}

func (c *Client) do(ctx context.Context, ids []string) ([]hydrate.Record, error) {
	q := url.Values{}
	q.Set("id", strings.Join(ids, ","))
	q.Set("tweet_mode", "extended")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.Observe(time.Since(startTime).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, &LookupError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

		errClass := classifyStatus(resp.StatusCode)
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Int("ids", len(ids)).
			Msg("Lookup request error")

		return nil, &LookupError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	var statuses []wireStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, &LookupError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "invalid response body",
			Err:        err,
		}
	}

	records := make([]hydrate.Record, 0, len(statuses))
	for _, s := range statuses {
		rec := s.record()
		if rec.ID == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// classifyStatus categorizes a non-200 response.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case code >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// wireStatus is the subset of the endpoint's JSON object that ends up in a row.
type wireStatus struct {
	ID            json.Number `json:"id"`
	IDStr         string      `json:"id_str"`
	Text          string      `json:"text"`
	FullText      string      `json:"full_text"`
	CreatedAt     string      `json:"created_at"`
	Lang          string      `json:"lang"`
	RetweetCount  int64       `json:"retweet_count"`
	FavoriteCount int64       `json:"favorite_count"`
	IsQuoteStatus bool        `json:"is_quote_status"`
	User          struct {
		ID         json.Number `json:"id"`
		IDStr      string      `json:"id_str"`
		Name       string      `json:"name"`
		ScreenName string      `json:"screen_name"`
	} `json:"user"`
}

func (s wireStatus) record() hydrate.Record {
	// id_str is exact; numeric ids exceed float64 precision in most JSON tooling
	id := s.IDStr
	if id == "" {
		id = s.ID.String()
	}
	userID := s.User.IDStr
	if userID == "" {
		userID = s.User.ID.String()
	}
	text := s.FullText
	if text == "" {
		text = s.Text
	}

	return hydrate.Record{
		ID:            id,
		Text:          text,
		CreatedAt:     s.CreatedAt,
		Lang:          s.Lang,
		RetweetCount:  s.RetweetCount,
		FavoriteCount: s.FavoriteCount,
		IsQuote:       s.IsQuoteStatus,
		User: hydrate.User{
			ID:         userID,
			Name:       s.User.Name,
			ScreenName: s.User.ScreenName,
		},
	}
}
