package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/api/tags/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/tags/:id", "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/tags/3", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/tags/4", nil))
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/tags/:id", "200"))

	assert.Equal(t, before+2, after)
}

func TestRecordRelation(t *testing.T) {
	before := testutil.ToFloat64(RelationChanges.WithLabelValues("favorite", "add"))
	RecordRelation("favorite", "add")
	assert.Equal(t, before+1, testutil.ToFloat64(RelationChanges.WithLabelValues("favorite", "add")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())
	ShoppingListDownloads.Inc()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "foodgram_shopping_list_downloads_total"))
}
