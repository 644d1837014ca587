package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/vectors/internal/middleware"
)

type RouterDeps struct {
	Vectors   *VectorHandler
	Metrics   http.Handler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/status", deps.Vectors.Status)
	if deps.Metrics != nil {
		api.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	authGroup := api.Group("")
	if len(deps.JWTSecret) > 0 {
		authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	}
	authGroup.POST("/ready", deps.Vectors.Ready)
	authGroup.POST("/vectorize/fields", deps.Vectors.Fields)
	authGroup.POST("/vectorize/batch", deps.Vectors.Batch)
	authGroup.POST("/vectorize/text", deps.Vectors.Text)
	authGroup.POST("/vectorize/image", deps.Vectors.Image)
}
