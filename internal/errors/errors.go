package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/mediatags/internal/logger"
)

// Error codes shared by the scan pipeline and the HTTP surface
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeInternal      = "INTERNAL_ERROR"
	CodeConfiguration = "CONFIGURATION_ERROR"
	CodeAsset         = "ASSET_ERROR"
	CodeModel         = "MODEL_ERROR"
	CodePersistence   = "PERSISTENCE_ERROR"
	CodeGenerator     = "GENERATOR_ERROR"
)

// TagError represents a structured error with HTTP context
type TagError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Cause      error                  `json:"-"`
	HTTPStatus int                    `json:"-"`
}

func (e *TagError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *TagError) Unwrap() error {
	return e.Cause
}

// ToGinResponse sends the error as a standardized JSON response
func (e *TagError) ToGinResponse(c *gin.Context) {
	statusCode := e.HTTPStatus
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}

	response := gin.H{
		"error": e.Message,
		"code":  e.Code,
	}

	if len(e.Context) > 0 {
		response["details"] = e.Context
	}

	logger.Error("HTTP error response",
		"status", statusCode,
		"code", e.Code,
		"message", e.Message,
		"path", c.Request.URL.Path,
		"method", c.Request.Method)

	c.JSON(statusCode, response)
}

// Common error constructors
func NewValidationError(message string, field string) *TagError {
	return &TagError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Context:    map[string]interface{}{"field": field},
	}
}

func NewNotFoundError(resource string, id string) *TagError {
	return &TagError{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
		Context:    map[string]interface{}{"resource": resource, "id": id},
	}
}

func NewInternalError(message string, cause error) *TagError {
	return &TagError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewConfigurationError reports a profile, layer or generator wiring problem
func NewConfigurationError(message string, unit string, cause error) *TagError {
	return &TagError{
		Code:       CodeConfiguration,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Context:    map[string]interface{}{"unit": unit},
		Cause:      cause,
	}
}

// NewAssetError reports a per-asset problem such as a missing or unreadable file
func NewAssetError(assetID string, message string, cause error) *TagError {
	return &TagError{
		Code:       CodeAsset,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Context:    map[string]interface{}{"asset_id": assetID},
		Cause:      cause,
	}
}

// NewModelError reports an unusable or inconsistent model description
func NewModelError(message string, cause error) *TagError {
	return &TagError{
		Code:       CodeModel,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewPersistenceError(operation string, path string, cause error) *TagError {
	return &TagError{
		Code:       CodePersistence,
		Message:    "persistence operation failed",
		HTTPStatus: http.StatusInternalServerError,
		Context:    map[string]interface{}{"operation": operation, "path": path},
		Cause:      cause,
	}
}

func NewGeneratorError(layerID string, assetID string, cause error) *TagError {
	return &TagError{
		Code:       CodeGenerator,
		Message:    "generator failed",
		HTTPStatus: http.StatusInternalServerError,
		Context:    map[string]interface{}{"layer": layerID, "asset_id": assetID},
		Cause:      cause,
	}
}

// HasCode reports whether err, or any error it wraps, is a TagError with the given code
func HasCode(err error, code string) bool {
	var te *TagError
	if stderrors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost TagError in err's chain, or CodeInternal
func CodeOf(err error) string {
	var te *TagError
	if stderrors.As(err, &te) {
		return te.Code
	}
	return CodeInternal
}

// HTTP helpers to eliminate duplicate error handling

// HandleValidationError sends a validation error response
func HandleValidationError(c *gin.Context, message string, field string) {
	NewValidationError(message, field).ToGinResponse(c)
}

// HandleNotFound sends a not found error response
func HandleNotFound(c *gin.Context, resource string, id string) {
	NewNotFoundError(resource, id).ToGinResponse(c)
}

// HandleInternalError sends an internal server error response
func HandleInternalError(c *gin.Context, message string, err error) {
	NewInternalError(message, err).ToGinResponse(c)
}

// HandleError sends err as a response, keeping the status of a TagError when present
func HandleError(c *gin.Context, err error) {
	var te *TagError
	if stderrors.As(err, &te) {
		te.ToGinResponse(c)
		return
	}
	NewInternalError("request failed", err).ToGinResponse(c)
}
