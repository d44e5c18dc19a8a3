package errors

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/logger"
)

// CodePanic marks errors recovered from a panic
const CodePanic = "PANIC"

const maxStackDepth = 32

// StackFrame represents a single frame in a stack trace
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Package  string `json:"package"`
}

func (f StackFrame) String() string {
	return fmt.Sprintf("%s.%s (%s:%d)", f.Package, f.Function, f.File, f.Line)
}

// CaptureStack returns up to maxStackDepth frames of the calling goroutine,
// skipping the innermost skip frames.
func CaptureStack(skip int) []StackFrame {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	stack := make([]StackFrame, 0, n)
	for {
		frame, more := frames.Next()
		pkg, fn := splitFuncName(frame.Function)
		stack = append(stack, StackFrame{
			Function: fn,
			File:     frame.File,
			Line:     frame.Line,
			Package:  pkg,
		})
		if !more {
			break
		}
	}
	return stack
}

// splitFuncName splits "github.com/a/b.(*T).M" into package and function
func splitFuncName(name string) (string, string) {
	lastSlash := strings.LastIndex(name, "/")
	if lastSlash < 0 {
		lastSlash = 0
	}
	if dot := strings.Index(name[lastSlash:], "."); dot >= 0 {
		return name[:lastSlash+dot], name[lastSlash+dot+1:]
	}
	return "", name
}

// FormatStack renders frames one per line
func FormatStack(frames []StackFrame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.String()
	}
	return out
}

// NewPanicError wraps a recovered value
func NewPanicError(recovered interface{}) *TagError {
	cause, ok := recovered.(error)
	if !ok {
		cause = fmt.Errorf("%v", recovered)
	}
	return &TagError{
		Code:       CodePanic,
		Message:    "panic recovered",
		Cause:      cause,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// RecoveryMiddleware turns handler panics into a JSON 500 and logs the stack
func RecoveryMiddleware(log hclog.Logger) gin.HandlerFunc {
	log = logger.OrNull(log)

	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		err := NewPanicError(recovered)
		log.Error("panic in HTTP handler",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", err.Cause,
			"stack", FormatStack(CaptureStack(2)))

		c.AbortWithStatusJSON(err.HTTPStatus, gin.H{
			"error": err.Message,
			"code":  err.Code,
		})
	})
}
