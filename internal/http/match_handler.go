package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mindmatch/internal/service"
)

// MatchHandler expone el ranking de compatibilidad.
type MatchHandler struct {
	logger    *zap.Logger
	matchServ *service.MatchService
}

func NewMatchHandler(logger *zap.Logger, matchServ *service.MatchService) *MatchHandler {
	return &MatchHandler{
		logger:    logger,
		matchServ: matchServ,
	}
}

// GetMatches maneja GET /users/:id/matches?limit=.
func (h *MatchHandler) GetMatches(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	userID := c.Param("id")
	matches, err := h.matchServ.GetMatches(c.Request.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidUser) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("get matches failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute matches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}
