package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRouter_Setup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	var order []string
	group := NewDomainGroup("jobs", "/label-jobs").
		Use(func(c *gin.Context) { order = append(order, "mw"); c.Next() }).
		GET("/:id", func(c *gin.Context) { order = append(order, "get"); c.String(http.StatusOK, c.Param("id")) }).
		DELETE("/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	NewRouter(engine, WithAPIVersion("v2")).Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/label-jobs/abc", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, []string{"mw", "get"}, order)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v2/label-jobs/abc", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/label-jobs/abc", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, "jobs", group.Name())
	assert.Equal(t, "/label-jobs", group.Prefix())
}
