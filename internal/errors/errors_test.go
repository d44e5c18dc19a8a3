package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagError_MessageAndUnwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := NewPersistenceError("save", "/tmp/tag_index.json", cause)

	assert.Equal(t, "persistence operation failed: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "/tmp/tag_index.json", err.Context["path"])
}

func TestHasCode_FollowsWrapping(t *testing.T) {
	err := fmt.Errorf("classify: %w", NewModelError("model not loaded", nil))

	assert.True(t, HasCode(err, CodeModel))
	assert.False(t, HasCode(err, CodeAsset))
	assert.False(t, HasCode(io.EOF, CodeModel))
	assert.Equal(t, CodeModel, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(io.EOF))
}

func TestToGinResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/profiles/nope", nil)

	HandleNotFound(c, "profile", "nope")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "profile not found", body["error"])
	assert.Equal(t, CodeNotFound, body["code"])
	details := body["details"].(map[string]interface{})
	assert.Equal(t, "nope", details["id"])
}

func TestHandleError_PlainErrorIsInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/tags/query", nil)

	HandleError(c, io.EOF)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(hclog.NewNullLogger()))
	r.GET("/boom", func(c *gin.Context) {
		panic("generator exploded")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodePanic, body["code"])
}

func TestCaptureStack(t *testing.T) {
	frames := CaptureStack(0)
	require.NotEmpty(t, frames)
	assert.Equal(t, "TestCaptureStack", frames[0].Function)
	assert.Equal(t, "github.com/mantonx/mediatags/internal/errors", frames[0].Package)

	pkg, fn := splitFuncName("github.com/a/b.(*T).M")
	assert.Equal(t, "github.com/a/b", pkg)
	assert.Equal(t, "(*T).M", fn)

	err := NewPanicError(io.EOF)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "panic recovered: unexpected value", NewPanicError("unexpected value").Error())
}
