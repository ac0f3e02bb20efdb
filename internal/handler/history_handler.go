package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/journey-reconciler/internal/service"
	appErrors "github.com/noah-isme/journey-reconciler/pkg/errors"
	"github.com/noah-isme/journey-reconciler/pkg/response"
)

type historyGetter interface {
	Get(ctx context.Context, studentID string) (*service.Analysis, error)
}

// HistoryHandler serves derived program histories.
type HistoryHandler struct {
	history historyGetter
}

// NewHistoryHandler constructs the handler.
func NewHistoryHandler(history historyGetter) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// Get godoc
// GET /students/:id/history
func (h *HistoryHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student id is required"))
		return
	}
	analysis, err := h.history.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analysis)
}
