package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/supportchat/pkg/idx"
)

// HeaderRequestID correlates a client request with backend logs.
const HeaderRequestID = "X-Request-ID"

// Transport is an http.RoundTripper that stamps every outgoing request with a
// request ID and logs the outcome. Headers and bodies are never logged since
// they carry credentials and tokens.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil). A nil logger means
// the logger is taken from the request context on every call.
func NewTransport(base http.RoundTripper, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	reqID := r.Header.Get(HeaderRequestID)
	if reqID == "" {
		reqID = idx.New().String()

		// RoundTrippers must not modify the caller's request.
		r = r.Clone(r.Context())
		r.Header.Set(HeaderRequestID, reqID)
	}

	logger := t.Logger
	if logger == nil {
		logger = FromContext(r.Context())
	}
	logger = logger.With(
		"req_id", reqID,
		"method", r.Method,
		"path", r.URL.Path,
	)

	resp, err := t.Base.RoundTrip(r)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Debug("http_request", "error", err, "duration_ms", duration)
		return nil, err
	}

	logger.Debug("http_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
