package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/cardiac/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var r Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func TestGinJSON(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	GinJSON(c, "test data")

	assert.Equal(t, http.StatusOK, w.Code)
	r := decode(t, w)
	assert.Equal(t, 200, r.Code)
	assert.Equal(t, "success", r.Message)
	assert.Equal(t, "test data", r.Data)
}

func TestGinJSONEDomainError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	GinJSONE(c, errors.ErrToggleInFlight.WithMetadata(map[string]string{"device_id": "dev-1"}))

	assert.Equal(t, http.StatusConflict, w.Code)
	r := decode(t, w)
	assert.Equal(t, http.StatusConflict, r.Code)
	assert.Equal(t, errors.ErrToggleInFlight.Message, r.Message)
	assert.Equal(t, "dev-1", r.Metadata["device_id"])
	assert.True(t, c.IsAborted())
	assert.Len(t, c.Errors, 1)
}

func TestGinJSONEPlainError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	GinJSONE(c, fmt.Errorf("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "boom", decode(t, w).Message)
}

func TestGinJSONENil(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	GinJSONE(c, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, defaultErrorMessage, decode(t, w).Message)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 401, StatusFor(401))
	assert.Equal(t, 503, StatusFor(503))
	assert.Equal(t, 500, StatusFor(10001))
	assert.Equal(t, 500, StatusFor(200))
}
