package backup

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/spendlog/service/internal/middleware"
	"github.com/spendlog/service/internal/response"
	"github.com/spendlog/service/internal/validation"
)

// MaxImportBytes bounds the size of an import body.
const MaxImportBytes = 16 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler holds HTTP handlers for backup endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new backup Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the backup endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/export", h.Export)
	r.Get("/export.xlsx", h.ExportXLSX)
	r.Post("/import", h.Import)
}

// Export godoc
//
//	@Summary	Export transactions and receipts
//	@Tags		backup
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	Document
//	@Failure	502	{object}	response.Envelope
//	@Router		/backup/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	doc, err := h.svc.Export(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", attachment(doc, "json"))
	response.JSON(w, http.StatusOK, doc)
}

// ExportXLSX godoc
//
//	@Summary	Export transactions and receipts as a spreadsheet
//	@Tags		backup
//	@Produce	application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Security	BearerAuth
//	@Success	200	{file}		binary
//	@Failure	502	{object}	response.Envelope
//	@Router		/backup/export.xlsx [get]
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	doc, err := h.svc.Export(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, doc); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("render workbook")
		response.InternalError(w)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", attachment(doc, "xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Import godoc
//
//	@Summary		Import transactions and receipts
//	@Description	Recreates every record of an exported document for the caller with fresh ids. The document is rejected as a whole if any record is invalid.
//	@Tags			backup
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		Document	true	"Exported document"
//	@Success		201		{object}	response.Envelope{data=ImportResult}
//	@Failure		400		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/backup/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	var doc Document
	if err := validation.Decode(http.MaxBytesReader(w, r.Body, MaxImportBytes), &doc); err != nil {
		response.FromError(w, err)
		return
	}
	out, err := h.svc.Import(r.Context(), userID, &doc)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, out)
}

func attachment(doc *Document, ext string) string {
	return fmt.Sprintf(`attachment; filename="spendlog-%s.%s"`, doc.ExportedAt.Format("20060102-150405"), ext)
}
