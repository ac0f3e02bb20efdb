package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/journey-reconciler/internal/decoder"
	"github.com/noah-isme/journey-reconciler/internal/dto"
	appErrors "github.com/noah-isme/journey-reconciler/pkg/errors"
	"github.com/noah-isme/journey-reconciler/pkg/response"
)

type tokenDecoder interface {
	Decode(token, programCode string) decoder.Result
}

// DecodeHandler decodes a single legacy token for troubleshooting.
type DecodeHandler struct {
	decoder tokenDecoder
}

// NewDecodeHandler constructs the handler.
func NewDecodeHandler(d tokenDecoder) *DecodeHandler {
	return &DecodeHandler{decoder: d}
}

// Decode godoc
// GET /decode?token=...&program=...
func (h *DecodeHandler) Decode(c *gin.Context) {
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token query parameter is required"))
		return
	}
	program := strings.ToUpper(strings.TrimSpace(c.Query("program")))
	response.JSON(c, http.StatusOK, DecodeView(token, program, h.decoder.Decode(token, program)))
}

// DecodeView converts a decoder result into its response shape.
func DecodeView(token, program string, res decoder.Result) dto.DecodeResponse {
	out := dto.DecodeResponse{
		Token:       token,
		ProgramCode: program,
		Reference:   res.Reference,
		MatchedRule: res.MatchedRule,
		Warnings:    make([]dto.DecodeWarning, 0, len(res.Warnings)),
	}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, dto.DecodeWarning{Code: string(w.Code), Message: w.Message})
	}
	return out
}
