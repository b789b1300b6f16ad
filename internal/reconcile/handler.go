package reconcile

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spendlog/service/internal/apperr"
	"github.com/spendlog/service/internal/middleware"
	"github.com/spendlog/service/internal/response"
)

// Handler holds HTTP handlers for orphan reconciliation.
type Handler struct {
	svc *Service
}

// NewHandler creates a new reconcile Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the orphan endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Count)
	r.Delete("/", h.Clear)
}

// CountResponse is the body of GET /orphans.
type CountResponse struct {
	Count int `json:"count"`
}

// Count godoc
//
//	@Summary	Count orphaned objects
//	@Tags		orphans
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	response.Envelope{data=CountResponse}
//	@Failure	502	{object}	response.Envelope
//	@Router		/orphans [get]
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	n, err := h.svc.CountOrphans(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, CountResponse{Count: n})
}

// Clear godoc
//
//	@Summary		Delete orphaned objects
//	@Description	Deletes every stored object under the caller's prefix that no receipt references. Partial failure returns 502 with the outcome.
//	@Tags			orphans
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=Outcome}
//	@Failure		502	{object}	response.Envelope{data=Outcome}
//	@Router			/orphans [delete]
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	out, err := h.svc.ClearOrphans(r.Context(), userID)
	if err != nil {
		if out.Found > 0 && errors.Is(err, apperr.ErrUpstream) {
			response.JSON(w, http.StatusBadGateway, response.Envelope{
				Success: false, Data: out, Error: apperr.Message(err),
			})
			return
		}
		response.FromError(w, err)
		return
	}
	response.OK(w, out)
}
