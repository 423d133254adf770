package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/trendora/api/internal/platform/auth"
	"github.com/trendora/api/internal/platform/httpx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
	anonymousScope    = "anonymous"
	maxKeyLength      = 255
	maxBodyBytes      = 1 << 20
)

var guardedMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// Logger abstracts the logging dependency used inside the middleware.
type Logger interface {
	Printf(format string, args ...any)
}

// MiddlewareOption customises middleware behaviour.
type MiddlewareOption func(*guard)

// WithHeader overrides the header carrying the client key.
func WithHeader(name string) MiddlewareOption {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.header = name
		}
	}
}

// WithTTL sets how long completed responses are replayable.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithLogger reports store failures that do not change the response.
func WithLogger(logger Logger) MiddlewareOption {
	return func(g *guard) { g.logger = logger }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) MiddlewareOption {
	return func(g *guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

type guard struct {
	store  Store
	header string
	ttl    time.Duration
	clock  func() time.Time
	logger Logger
	next   http.Handler
}

// Middleware replays the first response for a repeated Idempotency-Key on POST, PUT and PATCH.
// Keys are scoped to the authenticated user. A nil store disables the check.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	base := guard{store: store, header: defaultHeaderName, ttl: DefaultTTL, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&base)
		}
	}
	return func(next http.Handler) http.Handler {
		g := base
		g.next = next
		return &g
	}
}

// attempt identifies one guarded request.
type attempt struct {
	rawKey      string
	key         string
	fingerprint string
}

func (g *guard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !guardedMethods[r.Method] {
		g.next.ServeHTTP(w, r)
		return
	}

	a, rejection, ok := g.prepare(r)
	if !ok {
		httpx.WriteError(r.Context(), w, rejection)
		return
	}

	reservation, err := g.store.Reserve(r.Context(), a.key, a.fingerprint, g.clock().UTC(), g.ttl)
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		httpx.WriteError(r.Context(), w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusUnprocessableEntity))
		return
	case err != nil:
		g.logf("idempotency: reserve %s: %v", a.rawKey, err)
		httpx.WriteError(r.Context(), w, httpx.NewError("idempotency_store_error", "unable to process idempotency key", http.StatusServiceUnavailable))
		return
	}

	switch reservation.State {
	case ReservationStateCompleted:
		replay(w, reservation.Record)
	case ReservationStatePending:
		httpx.WriteError(r.Context(), w, httpx.NewError("idempotency_in_progress", "another request is processing this idempotency key", http.StatusConflict))
	default:
		g.run(w, r, a)
	}
}

func (g *guard) prepare(r *http.Request) (attempt, httpx.Error, bool) {
	raw := strings.TrimSpace(r.Header.Get(g.header))
	switch {
	case raw == "":
		return attempt{}, httpx.NewError("idempotency_key_required", "missing "+g.header+" header", http.StatusBadRequest), false
	case len(raw) > maxKeyLength:
		return attempt{}, httpx.NewError("idempotency_key_invalid", "idempotency key too long", http.StatusBadRequest), false
	}
	body, err := bufferBody(r)
	if err != nil {
		return attempt{}, httpx.NewError("idempotency_read_body_failed", "unable to read request body", http.StatusBadRequest), false
	}
	return newAttempt(r, raw, body), httpx.Error{}, true
}

func newAttempt(r *http.Request, raw string, body []byte) attempt {
	scope := requesterScope(r.Context())
	return attempt{
		rawKey:      raw,
		key:         raw + "|" + scope,
		fingerprint: fingerprint(r, body, scope),
	}
}

// run executes the handler against a buffer, stores non-5xx results and then flushes.
func (g *guard) run(w http.ResponseWriter, r *http.Request, a attempt) {
	capture := &capturedResponse{header: http.Header{}}
	g.next.ServeHTTP(capture, r)

	ctx := r.Context()
	if capture.code() >= http.StatusInternalServerError {
		g.release(ctx, a)
	} else {
		resp := Response{Status: capture.code(), Headers: capture.header.Clone(), Body: capture.body.Bytes()}
		if err := g.store.SaveResponse(ctx, a.key, a.fingerprint, resp, g.clock().UTC(), g.ttl); err != nil {
			g.logf("idempotency: save %s: %v", a.rawKey, err)
			g.release(ctx, a)
		}
	}
	if err := capture.flush(w); err != nil {
		g.logf("idempotency: flush %s: %v", a.rawKey, err)
	}
}

func (g *guard) release(ctx context.Context, a attempt) {
	if err := g.store.Release(ctx, a.key, a.fingerprint); err != nil {
		g.logf("idempotency: release %s: %v", a.rawKey, err)
	}
}

func (g *guard) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}

// bufferBody reads the body once and rewinds it for the handler.
func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBodyBytes {
		return nil, httpx.ErrBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func requesterScope(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && strings.TrimSpace(identity.UID) != "" {
		return strings.TrimSpace(identity.UID)
	}
	return anonymousScope
}

func fingerprint(r *http.Request, body []byte, scope string) string {
	bodyHash := ""
	if len(body) > 0 {
		bodyHash = sha256Hex(body)
	}
	parts := []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Header.Get("Content-Type"),
		scope,
		bodyHash,
	}
	return sha256Hex([]byte(strings.Join(parts, "\n")))
}

func replay(w http.ResponseWriter, record Record) {
	header := w.Header()
	for name, values := range headersFromRecord(record.ResponseHeaders) {
		header[name] = values
	}
	header.Set(replayHeaderName, "true")
	w.WriteHeader(max(record.ResponseStatus, http.StatusOK))
	_, _ = w.Write(record.ResponseBody)
}

// capturedResponse buffers a handler's output until the outcome is stored.
type capturedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (c *capturedResponse) Header() http.Header { return c.header }

func (c *capturedResponse) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
}

func (c *capturedResponse) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return c.body.Write(p)
}

func (c *capturedResponse) code() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *capturedResponse) flush(w http.ResponseWriter) error {
	dst := w.Header()
	for name, values := range c.header {
		dst[name] = values
	}
	w.WriteHeader(c.code())
	if c.body.Len() == 0 {
		return nil
	}
	_, err := w.Write(c.body.Bytes())
	return err
}
