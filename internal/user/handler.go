package user

import (
	"net/http"

	"github.com/spendlog/service/internal/middleware"
	"github.com/spendlog/service/internal/response"
)

// Handler serves the account endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new user Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetMe godoc
//
//	@Summary	Get current user
//	@Tags		users
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	response.Envelope{data=User}
//	@Failure	401	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Failure	502	{object}	response.Envelope
//	@Router		/users/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	u, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, u)
}
