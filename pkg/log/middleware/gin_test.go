package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"moff.io/moff-connector/pkg/log/meta"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRecoveredHTTPLogSetsMetadata(t *testing.T) {
	var requestID, caller string
	router := gin.New()
	router.Use(RecoveredHTTPLog())
	router.GET("/ping", func(ctx *gin.Context) {
		requestID = meta.String(ctx.Request.Context(), meta.KeyRequestID)
		caller = meta.String(ctx.Request.Context(), meta.KeyCaller)
		ctx.JSON(http.StatusOK, gin.H{"code": 0})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", requestID)
	assert.Equal(t, "abc", w.Header().Get("x-request-id"))
	assert.Equal(t, "192.0.2.1", caller)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get("x-request-id"), 32)
}

func TestRecoveredHTTPLogRecovers(t *testing.T) {
	router := gin.New()
	router.Use(RecoveredHTTPLog())
	router.GET("/panic", func(ctx *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Server internal error")
}

func TestTimeoutHTTP(t *testing.T) {
	var deadline time.Time
	router := gin.New()
	router.Use(TimeoutHTTP(time.Second))
	router.GET("/", func(ctx *gin.Context) {
		deadline, _ = ctx.Request.Context().Deadline()
		ctx.Status(http.StatusNoContent)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestRequestHeaderFilter(t *testing.T) {
	filtered := requestHeaderFilter(map[string][]string{
		"Authorization": {"Bearer x"},
		"Accept":        {"a", "b"},
	})
	assert.Equal(t, map[string]string{"accept": "a;b"}, filtered)
}
