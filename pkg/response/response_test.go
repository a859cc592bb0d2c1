package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-clearance-api/internal/models"
	appErrors "github.com/noah-isme/sma-clearance-api/pkg/errors"
	"github.com/noah-isme/sma-clearance-api/pkg/logger"
	"github.com/noah-isme/sma-clearance-api/pkg/middleware/requestid"
)

func newRouter(t *testing.T, handler gin.HandlerFunc) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(zap.New(core)))
	r.GET("/x", handler)
	return r, logs
}

func TestErrorEchoesRequestIDAndLogsServerFailures(t *testing.T) {
	r, logs := newRouter(t, func(c *gin.Context) {
		Error(c, errors.New("connection reset"))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "trace-1")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":{"code":"INTERNAL_ERROR","message":"internal server error","status":500},"meta":{"requestId":"trace-1"}}`, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	failures := logs.FilterMessage("request failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "trace-1", failures[0].ContextMap()["request_id"])
}

func TestClientErrorsAreNotLogged(t *testing.T) {
	r, logs := newRouter(t, func(c *gin.Context) {
		Error(c, appErrors.Clone(appErrors.ErrForbidden, "role LIBRARY may not set status"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, logs.FilterMessage("request failed").All())
}

func TestJSONWithPagination(t *testing.T) {
	r, _ := newRouter(t, func(c *gin.Context) {
		JSON(c, http.StatusOK, []string{"a"}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.JSONEq(t, `{"data":["a"],"pagination":{"page":1,"page_size":20,"total_count":1}}`, w.Body.String())
}
