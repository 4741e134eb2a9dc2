package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mindmatch/internal/service"
)

// ThoughtHandler expone la publicacion y el listado de pensamientos.
type ThoughtHandler struct {
	logger      *zap.Logger
	thoughtServ *service.ThoughtService
}

func NewThoughtHandler(logger *zap.Logger, thoughtServ *service.ThoughtService) *ThoughtHandler {
	return &ThoughtHandler{
		logger:      logger,
		thoughtServ: thoughtServ,
	}
}

// PostThought maneja POST /thoughts.
func (h *ThoughtHandler) PostThought(c *gin.Context) {
	var req struct {
		UserID  string `json:"user_id" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post thought request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := h.thoughtServ.RecordThought(c.Request.Context(), req.UserID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAggregationFailed):
			// El pensamiento ya esta guardado; solo el patron quedo desactualizado.
			c.JSON(http.StatusCreated, gin.H{
				"thought":         result.Thought,
				"pattern":         result.Pattern,
				"pattern_updated": false,
				"pattern_error":   "pattern update failed",
			})
		case errors.Is(err, service.ErrInvalidThought):
			c.JSON(http.StatusBadRequest, gin.H{"error": "thought must be 1-1000 characters"})
		case errors.Is(err, service.ErrInvalidUser):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, service.ErrRateLimited):
			var rle *service.RateLimitedError
			if errors.As(err, &rle) {
				c.Header("Retry-After", retryAfterSeconds(rle.RetryAfter))
			}
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		case errors.Is(err, service.ErrClassificationUnavailable):
			h.logger.Warn("classification unavailable", zap.String("user_id", req.UserID), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "classification unavailable"})
		default:
			h.logger.Error("record thought failed", zap.String("user_id", req.UserID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record thought"})
		}
		return
	}

	if result.RateRemaining >= 0 {
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.RateRemaining))
	}
	c.JSON(http.StatusCreated, result)
}

// retryAfterSeconds redondea hacia arriba; Retry-After no acepta fracciones ni cero.
func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// ListRecent maneja GET /thoughts.
func (h *ThoughtHandler) ListRecent(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	thoughts, err := h.thoughtServ.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list thoughts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list thoughts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"thoughts": thoughts})
}

// ListByUser maneja GET /users/:id/thoughts.
func (h *ThoughtHandler) ListByUser(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	thoughts, err := h.thoughtServ.ListByUser(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidUser) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("list user thoughts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list thoughts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"thoughts": thoughts})
}
