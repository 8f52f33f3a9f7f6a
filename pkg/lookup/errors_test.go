package lookup

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestLookupError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *LookupError
		want string
	}{
		{
			name: "without cause",
			err:  &LookupError{StatusCode: 503, ErrorClass: ErrorClassServer, Message: "503 Service Unavailable"},
			want: "lookup server error (status 503): 503 Service Unavailable",
		},
		{
			name: "with cause",
			err:  &LookupError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: errors.New("connection refused")},
			want: "lookup network error (status 0): request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLookupError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := fmt.Errorf("wrapped: %w", &LookupError{ErrorClass: ErrorClassDecode, Err: cause})

	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the cause")
	}
	if got := classOf(err); got != ErrorClassDecode {
		t.Errorf("classOf() = %q, want %q", got, ErrorClassDecode)
	}
	if got := classOf(errors.New("plain")); got != "" {
		t.Errorf("classOf(plain) = %q, want empty", got)
	}
	if !strings.Contains(err.Error(), "decode") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassRateLimit, true},
		{ErrorClassNetwork, true},
		{ErrorClassDecode, false},
		{"", false},
	}

	for _, tt := range tests {
		if got := shouldRetry(tt.class); got != tt.want {
			t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorClass
	}{
		{http.StatusTooManyRequests, ErrorClassRateLimit},
		{http.StatusInternalServerError, ErrorClassServer},
		{http.StatusBadGateway, ErrorClassServer},
		{http.StatusUnauthorized, ErrorClassClient},
		{http.StatusNotFound, ErrorClassClient},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.code); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
