package handler

import (
	"encoding/base64"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/vectors/internal/pkg/errcode"
	"github.com/xxxsen/vectors/internal/pkg/response"
	"github.com/xxxsen/vectors/internal/record"
	"github.com/xxxsen/vectors/internal/service"
	"github.com/xxxsen/vectors/internal/vectorizer"
)

type VectorHandler struct {
	vectors *service.VectorService
}

func NewVectorHandler(vectors *service.VectorService) *VectorHandler {
	return &VectorHandler{vectors: vectors}
}

type readyRequest struct {
	RootDir string `json:"root_dir"`
}

type fieldsRequest struct {
	Record   record.Record             `json:"record"`
	Mappings []vectorizer.FieldMapping `json:"mappings"`
}

type batchRequest struct {
	Records  []record.Record           `json:"records"`
	Mappings []vectorizer.FieldMapping `json:"mappings"`
}

type textRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type imageRequest struct {
	Data  string `json:"data"`
	Model string `json:"model"`
}

func (h *VectorHandler) Status(c *gin.Context) {
	response.Success(c, h.vectors.Status(c.Request.Context()))
}

func (h *VectorHandler) Ready(c *gin.Context) {
	var req readyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RootDir == "" {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	applied := h.vectors.OnReady(c.Request.Context(), req.RootDir)
	response.Success(c, gin.H{"applied": applied, "status": h.vectors.Status(c.Request.Context())})
}

func (h *VectorHandler) Fields(c *gin.Context) {
	var req fieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	out, err := h.vectors.VectorizeFields(c.Request.Context(), req.Record, req.Mappings)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"record": out})
}

func (h *VectorHandler) Batch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	out, err := h.vectors.VectorizeFieldsBatch(c.Request.Context(), req.Records, req.Mappings)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"records": out})
}

func (h *VectorHandler) Text(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	vec, err := h.vectors.VectorizeText(c.Request.Context(), req.Text, req.Model)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"vector": vec, "dimensions": len(vec)})
}

func (h *VectorHandler) Image(c *gin.Context) {
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		response.Error(c, errcode.ErrDecode, "data must be base64")
		return
	}
	vec, err := h.vectors.VectorizeImage(c.Request.Context(), data, req.Model)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"vector": vec, "dimensions": len(vec)})
}
