package log

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Transport logs every outgoing API call made through the wrapped RoundTripper.
type Transport struct {
	next   http.RoundTripper
	logger *zap.Logger
}

func NewTransport(next http.RoundTripper, l *zap.Logger, name string) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	if l == nil {
		l = zap.L()
	}
	return &Transport{
		next:   next,
		logger: l.WithOptions(zap.AddCallerSkip(1)).Named(name),
	}
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	t1 := time.Now()
	resp, err := t.next.RoundTrip(r)
	latency := time.Since(t1)

	fields := []zap.Field{
		zap.String("type", "http_client_request"),
		zap.String("http_method", r.Method),
		zap.String("http_host", r.URL.Host),
		zap.String("http_path", r.URL.Path),
		zap.String("http_query", r.URL.RawQuery),
		zap.Duration("latency", latency),
	}

	if err != nil {
		t.logger.Warn(fmt.Sprintf("HTTP request failed: %s", r.URL.Path), append(fields, zap.Error(err))...)
		return resp, err
	}

	fields = append(fields,
		zap.Int("http_status_code", resp.StatusCode),
		zap.String("http_status_text", statusLabel(resp.StatusCode)),
	)

	msg := fmt.Sprintf("HTTP request completed: %s", r.URL.Path)
	switch {
	case resp.StatusCode >= 500:
		t.logger.Error(msg, fields...)
	case resp.StatusCode >= 400:
		t.logger.Warn(msg, fields...)
	default:
		t.logger.Debug(msg, fields...)
	}

	return resp, nil
}

func statusLabel(status int) string {
	switch {
	case status >= 100 && status < 300:
		return fmt.Sprintf("%d OK", status)
	case status >= 300 && status < 400:
		return fmt.Sprintf("%d Redirect", status)
	case status >= 400 && status < 500:
		return fmt.Sprintf("%d Client Error", status)
	case status >= 500:
		return fmt.Sprintf("%d Server Error", status)
	default:
		return fmt.Sprintf("%d Unknown", status)
	}
}
