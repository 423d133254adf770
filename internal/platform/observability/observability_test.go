package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trendora/api/internal/platform/requestctx"
)

func TestTraceMiddlewareContinuesCloudTrace(t *testing.T) {
	const traceID = "105445aa7843bc8bf206b12000100000"
	var got requestctx.TraceInfo
	handler := TraceMiddleware("proj")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = requestctx.Trace(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set(cloudTraceHeader, traceID+"/1;o=1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, traceID, got.TraceID)
	assert.Equal(t, "proj", got.ProjectID)
	assert.True(t, got.Sampled)
	assert.Equal(t, traceID+"/1;o=1", rec.Header().Get(cloudTraceHeader))
}

func TestParseCloudTraceContextRejectsMalformed(t *testing.T) {
	for _, header := range []string{"", "abc/1", "105445aa7843bc8bf206b12000100000/", "105445aa7843bc8bf206b12000100000/xyz"} {
		_, ok := parseCloudTraceContext(header)
		assert.False(t, ok, header)
	}
}

func TestRequestLoggerRecordsStatusAndUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := InjectLoggerMiddleware(zap.New(core))(RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestctx.SetUserID(r.Context(), "user-1")
		w.WriteHeader(http.StatusNotFound)
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Equal(t, "user-1", fields["user_id"])
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestRecoveryMiddlewareWritesJSON500(t *testing.T) {
	handler := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_server_error")
}
