package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"3tcapital/ms_ecommerce_audit/internal/core/requestlog"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/config"
	ctxutil "3tcapital/ms_ecommerce_audit/internal/infrastructure/context"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/security"
)

// RecordPublisher ships a captured exchange to the audit pipeline.
type RecordPublisher interface {
	Publish(ctx context.Context, rec requestlog.Record) error
}

// bufferedWriter holds the downstream response in memory. Headers are
// shared with the real writer so they reach the client untouched.
type bufferedWriter struct {
	w           http.ResponseWriter
	body        bytes.Buffer
	statusCode  int
	wroteHeader bool
}

func (bw *bufferedWriter) Header() http.Header {
	return bw.w.Header()
}

func (bw *bufferedWriter) WriteHeader(code int) {
	if bw.wroteHeader {
		return
	}
	bw.statusCode = code
	bw.wroteHeader = true
}

func (bw *bufferedWriter) Write(b []byte) (int, error) {
	if !bw.wroteHeader {
		bw.WriteHeader(http.StatusOK)
	}
	return bw.body.Write(b)
}

func (bw *bufferedWriter) status() int {
	if bw.statusCode == 0 {
		return http.StatusOK
	}
	return bw.statusCode
}

// flush copies the buffered status and body to the client. Nothing is sent
// when the handler produced no output, leaving the writer free for
// middleware further out (chi's Recoverer writes a 500 after a panic).
func (bw *bufferedWriter) flush() error {
	if !bw.wroteHeader && bw.body.Len() == 0 {
		return nil
	}
	bw.w.WriteHeader(bw.status())
	_, err := bw.w.Write(bw.body.Bytes())
	return err
}

// Capturer records request/response exchanges and publishes them to the
// audit pipeline. It counts the publishes still in flight so shutdown can
// wait for them before the publisher is closed.
type Capturer struct {
	cfg       config.AuditSettings
	publisher RecordPublisher
	log       *slog.Logger
	skip      []string

	mu       sync.Mutex
	inflight int
	idle     chan struct{} // closed when inflight drops to zero
}

func NewCapturer(cfg config.AuditSettings, publisher RecordPublisher, log *slog.Logger) *Capturer {
	skip := make([]string, 0, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		if p = strings.TrimSuffix(strings.TrimSpace(p), "/"); p != "" {
			skip = append(skip, p)
		}
	}
	return &Capturer{cfg: cfg, publisher: publisher, log: log, skip: skip}
}

// Capture is NewCapturer(...).Middleware for callers that never drain.
func Capture(cfg config.AuditSettings, publisher RecordPublisher, log *slog.Logger) func(http.Handler) http.Handler {
	return NewCapturer(cfg, publisher, log).Middleware
}

// skipped reports whether path is a skip entry or lies below one.
func (c *Capturer) skipped(path string) bool {
	for _, p := range c.skip {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Middleware buffers the response while the handler runs and always copies
// it to the client before publishing starts. Publishing runs detached with
// its own timeout; its failures are logged and never reach the caller.
func (c *Capturer) Middleware(next http.Handler) http.Handler {
	if !c.cfg.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.skipped(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		var requestBody []byte
		if r.Body != nil && r.Body != http.NoBody {
			body, err := io.ReadAll(r.Body)
			_ = r.Body.Close()
			if err != nil {
				c.log.Warn("failed to buffer request body", "error", err, "path", r.URL.Path)
			}
			requestBody = body
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		bw := &bufferedWriter{w: w}
		captured := false
		defer func() {
			if err := bw.flush(); err != nil {
				c.log.Debug("failed to deliver buffered response", "error", err, "path", r.URL.Path)
			}
			if captured {
				rec := buildRecord(r, bw, requestBody, c.cfg)
				c.begin()
				go func() {
					defer c.end()
					publish(c.publisher, rec, c.cfg.PublishTimeout, c.log)
				}()
			}
		}()

		next.ServeHTTP(bw, r)
		captured = true
	})
}

func (c *Capturer) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == 0 {
		c.idle = make(chan struct{})
	}
	c.inflight++
}

func (c *Capturer) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight == 0 {
		close(c.idle)
		c.idle = nil
	}
}

// Drain waits for the publishes in flight when it is called, or until ctx
// is done.
func (c *Capturer) Drain(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	if idle == nil {
		return nil
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildRecord(r *http.Request, bw *bufferedWriter, requestBody []byte, cfg config.AuditSettings) requestlog.Record {
	return requestlog.Record{
		TimestampUTC:    time.Now().UTC(),
		TraceID:         traceID(r),
		Method:          r.Method,
		Path:            r.URL.Path,
		StatusCode:      bw.status(),
		RequestBody:     security.CaptureBody(requestBody, cfg.MaxBodySize),
		ResponseBody:    security.CaptureBody(bw.body.Bytes(), cfg.MaxBodySize),
		RequestHeaders:  security.FlattenHeaders(r.Header, cfg.RedactHeaders),
		ResponseHeaders: security.FlattenHeaders(bw.Header(), cfg.RedactHeaders),
	}
}

func traceID(r *http.Request) string {
	if id := ctxutil.GetTraceID(r.Context()); id != "" {
		return id
	}
	if id := chimw.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.NewString()
}

func publish(publisher RecordPublisher, rec requestlog.Record, timeout time.Duration, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while publishing request log", "panic", r, "trace_id", rec.TraceID)
		}
	}()

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := publisher.Publish(ctx, rec); err != nil {
		log.Warn("failed to publish request log",
			"error", err,
			"trace_id", rec.TraceID,
			"method", rec.Method,
			"path", rec.Path,
			"status", rec.StatusCode,
		)
		return
	}
	log.Debug("request log published", "trace_id", rec.TraceID, "path", rec.Path)
}
