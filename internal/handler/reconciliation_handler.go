package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/journey-reconciler/internal/dto"
	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/service"
	appErrors "github.com/noah-isme/journey-reconciler/pkg/errors"
	"github.com/noah-isme/journey-reconciler/pkg/middleware/requestid"
	"github.com/noah-isme/journey-reconciler/pkg/response"
)

type batchRunner interface {
	Run(ctx context.Context, req service.BatchRequest) (*models.BatchSummary, error)
}

// ReconciliationHandler triggers batch runs over HTTP.
type ReconciliationHandler struct {
	batches batchRunner
	logger  *zap.Logger

	// background is the parent context for async runs; it outlives the request.
	background context.Context
	inflight   sync.WaitGroup
}

// NewReconciliationHandler constructs the handler. Async runs derive from ctx.
func NewReconciliationHandler(ctx context.Context, batches batchRunner, logger *zap.Logger) *ReconciliationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &ReconciliationHandler{batches: batches, logger: logger, background: ctx}
}

// Trigger godoc
// POST /reconciliations
// Runs a reconciliation batch. With "async": true the run continues after the
// response and only its run ID is returned.
func (h *ReconciliationHandler) Trigger(c *gin.Context) {
	var req dto.ReconciliationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
			return
		}
	}
	batch := service.BatchRequest{
		RunID:               uuid.NewString(),
		BatchSize:           req.BatchSize,
		ConfidenceThreshold: req.ConfidenceThreshold,
		StudentIDs:          req.StudentIDs,
		Workers:             req.Workers,
		Mode:                req.Mode,
	}

	log := h.logger.With(zap.String("run_id", batch.RunID), zap.String("request_id", requestid.Value(c)))

	if req.Async {
		// Outlives the request: keeps its ID, not its cancellation.
		ctx := requestid.WithContext(h.background, requestid.Value(c))
		h.inflight.Add(1)
		go func() {
			defer h.inflight.Done()
			if _, err := h.batches.Run(ctx, batch); err != nil {
				log.Error("async reconciliation failed", zap.Error(err))
			}
		}()
		response.Accepted(c, dto.ReconciliationAccepted{RunID: batch.RunID, Status: "accepted", StartedAt: time.Now().UTC()})
		return
	}

	summary, err := h.batches.Run(c.Request.Context(), batch)
	if err != nil {
		if summary != nil {
			log.Warn("reconciliation aborted with partial summary", zap.Int("processed", summary.StudentsProcessed))
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// Wait blocks until every async run has returned or ctx is done. Call it
// after the server stops accepting requests and before closing the stores.
func (h *ReconciliationHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
