package api

import (
	"net/http"
	"strconv"

	"gocausal/app"
	"gocausal/domain/core"
	"gocausal/internal/causal"
	"gocausal/internal/errors"
	"gocausal/internal/modeldef"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 20

// ImpactHandler serves causal models and interventional queries
type ImpactHandler struct {
	service *app.ImpactService
}

// NewImpactHandler creates a new impact handler
func NewImpactHandler(service *app.ImpactService) *ImpactHandler {
	return &ImpactHandler{service: service}
}

// RegisterRoutes mounts the handler on router
func (h *ImpactHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	{
		api.POST("/models", h.CreateModel)
		api.GET("/models", h.ListModels)
		api.GET("/models/:id", h.GetModel)
		api.DELETE("/models/:id", h.DeleteModel)
		api.POST("/models/:id/impact", h.Impact)
		api.POST("/models/:id/impact/batch", h.Batch)
		api.GET("/models/:id/impacts", h.History)
		api.POST("/impact", h.InlineImpact)
	}
}

// Health reports liveness
func (h *ImpactHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateModel stores a model definition
func (h *ImpactHandler) CreateModel(c *gin.Context) {
	var def modeldef.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model definition: " + err.Error()})
		return
	}

	record, err := h.service.CreateModel(c.Request.Context(), &def)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// ListModels returns every stored model
func (h *ImpactHandler) ListModels(c *gin.Context) {
	records, err := h.service.ListModels(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": records})
}

// GetModel returns one stored model
func (h *ImpactHandler) GetModel(c *gin.Context) {
	id, ok := modelID(c)
	if !ok {
		return
	}
	record, err := h.service.GetModel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// DeleteModel removes a stored model
func (h *ImpactHandler) DeleteModel(c *gin.Context) {
	id, ok := modelID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteModel(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Impact answers one query on a stored model
func (h *ImpactHandler) Impact(c *gin.Context) {
	id, ok := modelID(c)
	if !ok {
		return
	}
	var q causal.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}

	impact, err := h.service.Impact(c.Request.Context(), id, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newImpactResponse(impact))
}

// Batch answers several queries on a stored model
func (h *ImpactHandler) Batch(c *gin.Context) {
	id, ok := modelID(c)
	if !ok {
		return
	}
	var req BatchImpactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch: " + err.Error()})
		return
	}

	results, err := h.service.Batch(c.Request.Context(), id, req.Queries)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]BatchItemResponse, len(results))
	for i, r := range results {
		items[i] = BatchItemResponse{Query: r.Query}
		if r.Err != nil {
			items[i].Error = r.Err.Error()
			continue
		}
		items[i].Impact = newImpactResponse(r.Impact)
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

// History lists the latest query outcomes of a stored model
func (h *ImpactHandler) History(c *gin.Context) {
	id, ok := modelID(c)
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	impacts, err := h.service.History(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"impacts": impacts})
}

// InlineImpact answers a query on a model sent with the request
func (h *ImpactHandler) InlineImpact(c *gin.Context) {
	var req InlineImpactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	impact, err := h.service.ImpactInline(c.Request.Context(), req.Model, req.Query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newImpactResponse(impact))
}

func modelID(c *gin.Context) (core.ModelID, bool) {
	id, err := core.ParseModelID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeInvalidInput, errors.CodeValidationError:
		status = http.StatusBadRequest
	case errors.CodeDatabaseError:
		status = http.StatusServiceUnavailable
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
