package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/nutriai/internal/infra/config"
)

const (
	retryBodyLimit   = 1 << 20 // 1 MiB
	retryCountHeader = "X-Retry-Count"
)

var errBodyTooLarge = errors.New("request body exceeds 1 MiB")

// retryPolicy replays buffered POST requests whose handler failed with a
// transient upstream status. Paths under an excluded prefix, such as the SSE
// stream, pass straight through.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
	exclude  []string
	logger   *slog.Logger
}

func withRetry(handler http.Handler, cfg config.RetryConfig, logger *slog.Logger) http.Handler {
	if !cfg.Enabled || cfg.MaxAttempts <= 1 {
		return handler
	}
	policy := &retryPolicy{
		attempts: cfg.MaxAttempts,
		backoff:  cfg.BaseBackoff,
		exclude:  cfg.Exclude,
		logger:   logger,
	}
	return policy.wrap(handler)
}

func (p *retryPolicy) applies(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	for _, prefix := range p.exclude {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return false
		}
	}
	return true
}

func (p *retryPolicy) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.applies(r) {
			next.ServeHTTP(w, r)
			return
		}
		body, err := bufferBody(r)
		if err != nil {
			status, code := http.StatusBadRequest, "invalid_request"
			if errors.Is(err, errBodyTooLarge) {
				status, code = http.StatusRequestEntityTooLarge, "payload_too_large"
			}
			writeJSONError(w, status, code, err.Error())
			return
		}

		var (
			resp    *bufferedResponse
			attempt int
		)
		for attempt = 1; ; attempt++ {
			resp = newBufferedResponse()
			replay := r.Clone(r.Context())
			replay.Body = io.NopCloser(bytes.NewReader(body))
			replay.ContentLength = int64(len(body))
			next.ServeHTTP(resp, replay)

			if attempt == p.attempts || !transientStatus(resp.status) {
				break
			}
			delay := p.backoff << (attempt - 1)
			p.logger.Warn("retrying request", "path", r.URL.Path, "status", resp.status, "attempt", attempt, "backoff", delay)
			if err := sleepContext(r.Context(), delay); err != nil {
				break
			}
		}
		if attempt > 1 {
			resp.header.Set(retryCountHeader, strconv.Itoa(attempt-1))
		}
		resp.writeTo(w)
	})
}

// transientStatus covers failures a replay can fix. 501 and 503 mean the
// generator is not configured and stay that way.
func transientStatus(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, retryBodyLimit+1))
	if err != nil {
		return nil, err
	}
	if len(data) > retryBodyLimit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody(code, message))
}

// bufferedResponse holds one attempt's response until the policy decides
// whether to keep it.
type bufferedResponse struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

// Flush is a no-op; gin calls it on streaming writers.
func (b *bufferedResponse) Flush() {}

func (b *bufferedResponse) writeTo(w http.ResponseWriter) {
	dst := w.Header()
	for key, values := range b.header {
		dst[key] = append([]string(nil), values...)
	}
	w.WriteHeader(b.status)
	if b.body.Len() > 0 {
		_, _ = w.Write(b.body.Bytes())
	}
}
