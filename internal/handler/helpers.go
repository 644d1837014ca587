package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vectors/internal/middleware"
	appErr "github.com/xxxsen/vectors/internal/pkg/errors"
	"github.com/xxxsen/vectors/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("client", c.GetString(middleware.ContextClientKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("field", appErr.FieldOf(err)),
		zap.Error(err),
	)
	response.Error(c, response.CodeOf(err), err.Error())
}
