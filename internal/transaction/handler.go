package transaction

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spendlog/service/internal/middleware"
	"github.com/spendlog/service/internal/response"
	"github.com/spendlog/service/internal/validation"
)

// Handler holds HTTP handlers for transaction endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new transaction Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the transaction endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/summary", h.Summary)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Edit)
	r.Delete("/{id}", h.Delete)
}

// List godoc
//
//	@Summary		List transactions
//	@Description	Returns the caller's transactions, newest first.
//	@Tags			transactions
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]Transaction}
//	@Failure		401	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/transactions [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	out, err := h.svc.List(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, out)
}

// Summary godoc
//
//	@Summary		Transaction totals
//	@Description	Returns the caller's running balance: income minus expenses.
//	@Tags			transactions
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=Summary}
//	@Failure		401	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/transactions/summary [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	sum, err := h.svc.Summary(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, sum)
}

// Get godoc
//
//	@Summary		Get transaction
//	@Description	Returns one transaction with its receipt images.
//	@Tags			transactions
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Transaction ID"
//	@Success		200	{object}	response.Envelope{data=Transaction}
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/transactions/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	t, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, t)
}

// Create godoc
//
//	@Summary		Create transaction
//	@Tags			transactions
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		Input	true	"Transaction"
//	@Success		201		{object}	response.Envelope{data=Transaction}
//	@Failure		400		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Router			/transactions [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	var in Input
	if err := validation.Decode(r.Body, &in); err != nil {
		response.FromError(w, err)
		return
	}
	t, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, t)
}

// Edit godoc
//
//	@Summary		Edit transaction
//	@Tags			transactions
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string	true	"Transaction ID"
//	@Param			request	body		Input	true	"Transaction"
//	@Success		200		{object}	response.Envelope{data=Transaction}
//	@Failure		400		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/transactions/{id} [put]
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	var in Input
	if err := validation.Decode(r.Body, &in); err != nil {
		response.FromError(w, err)
		return
	}
	t, err := h.svc.Edit(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, t)
}

// Delete godoc
//
//	@Summary		Delete transaction
//	@Description	Deletes the transaction, its receipt rows and their stored objects.
//	@Tags			transactions
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Transaction ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/transactions/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, map[string]bool{"deleted": true})
}
