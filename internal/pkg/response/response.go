package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/vectors/internal/pkg/errcode"
	appErr "github.com/xxxsen/vectors/internal/pkg/errors"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

// CodeOf maps an error from the vectorize pipeline to its API code.
func CodeOf(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, appErr.ErrPoisoned):
		return errcode.ErrModelPoisoned
	case errors.Is(err, appErr.ErrUnauthorized):
		return errcode.ErrUnauthorized
	case errors.Is(err, appErr.ErrInvalid):
		return errcode.ErrInvalid
	case errors.Is(err, appErr.ErrInputShape):
		return errcode.ErrInputShape
	case errors.Is(err, appErr.ErrDecode):
		return errcode.ErrDecode
	case errors.Is(err, appErr.ErrConstruction):
		return errcode.ErrModelInit
	case errors.Is(err, appErr.ErrInvocation):
		return errcode.ErrModelInvoke
	case errors.Is(err, appErr.ErrUnsupported):
		return errcode.ErrUnsupported
	default:
		return errcode.ErrInternal
	}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}
