package receipt

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spendlog/service/internal/middleware"
	"github.com/spendlog/service/internal/response"
	"github.com/spendlog/service/internal/validation"
)

// Handler holds HTTP handlers for receipt endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new receipt Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the receipt endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/upload-url", h.UploadURL)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/download-url", h.DownloadURL)
	r.Put("/{id}", h.Edit)
	r.Delete("/{id}", h.Delete)
}

// UploadURL godoc
//
//	@Summary		Request a signed upload URL
//	@Description	Returns a key under the caller's prefix and a short-lived URL for a direct PUT to object storage. Nothing is recorded until the upload is confirmed.
//	@Tags			receipts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		UploadRequest	true	"File type and size"
//	@Success		200		{object}	response.Envelope{data=UploadResponse}
//	@Failure		400		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/receipts/upload-url [post]
func (h *Handler) UploadURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	var req UploadRequest
	if err := validation.Decode(r.Body, &req); err != nil {
		response.FromError(w, err)
		return
	}
	out, err := h.svc.IssueUploadURL(r.Context(), userID, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, out)
}

// Create godoc
//
//	@Summary		Confirm an uploaded receipt
//	@Tags			receipts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateInput	true	"Receipt"
//	@Success		201		{object}	response.Envelope{data=Image}
//	@Failure		400		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/receipts [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	var in CreateInput
	if err := validation.Decode(r.Body, &in); err != nil {
		response.FromError(w, err)
		return
	}
	img, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, img)
}

// Get godoc
//
//	@Summary	Get receipt
//	@Tags		receipts
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Receipt ID"
//	@Success	200	{object}	response.Envelope{data=Image}
//	@Failure	403	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Router		/receipts/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	img, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, img)
}

// DownloadURL godoc
//
//	@Summary	Request a signed download URL
//	@Tags		receipts
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Receipt ID"
//	@Success	200	{object}	response.Envelope{data=DownloadResponse}
//	@Failure	403	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Router		/receipts/{id}/download-url [get]
func (h *Handler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	out, err := h.svc.DownloadURL(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, out)
}

// Edit godoc
//
//	@Summary		Edit receipt
//	@Description	Updates the title. A non-empty path replaces the stored key after confirming the new upload; the old object is left for reconciliation.
//	@Tags			receipts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string		true	"Receipt ID"
//	@Param			request	body		EditInput	true	"Changes"
//	@Success		200		{object}	response.Envelope{data=Image}
//	@Failure		400		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/receipts/{id} [put]
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	var in EditInput
	if err := validation.Decode(r.Body, &in); err != nil {
		response.FromError(w, err)
		return
	}
	img, err := h.svc.Edit(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, img)
}

// Delete godoc
//
//	@Summary	Delete receipt
//	@Tags		receipts
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Receipt ID"
//	@Success	200	{object}	response.Envelope
//	@Failure	403	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Failure	502	{object}	response.Envelope
//	@Router		/receipts/{id} [delete]
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
