package web

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/dto"
	"github.com/BakiChantier/chantier-direct-sub000/internal/service"
)

// UploadDocument stores a compliance document / Enregistre un justificatif
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	file, header, ok := formFile(w, r, limitOr(h.container.Config.Storage.MaxDocumentBytes, 10<<20), true)
	if !ok {
		return
	}
	defer file.Close()

	expiresAt, err := dto.ParseDate(r.FormValue("expires_at"))
	if err != nil {
		validationResponse(w, map[string]string{"expires_at": err.Error()})
		return
	}

	doc, err := h.container.Documents.Upload(r.Context(), user, service.UploadInput{
		Type:         domain.DocumentType(strings.ToUpper(strings.TrimSpace(r.FormValue("type")))),
		OriginalName: header.Filename,
		ExpiresAt:    expiresAt,
		Body:         file,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewDocumentResponse(doc, time.Now()))
}

// ListDocuments returns the caller's documents and verification / Retourne les justificatifs et la vérification
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	docs, verification, err := h.container.Documents.List(r.Context(), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	now := time.Now()
	resp := dto.DocumentListResponse{
		Documents:    make([]dto.DocumentResponse, 0, len(docs)),
		Verification: dto.NewVerificationDTO(verification),
	}
	for i := range docs {
		resp.Documents = append(resp.Documents, dto.NewDocumentResponse(&docs[i], now))
	}
	jsonResponse(w, resp)
}

// DocumentStatus returns the verification aggregate only / Retourne uniquement l'état de vérification
func (h *Handler) DocumentStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	verification, err := h.container.Documents.VerificationOf(r.Context(), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewVerificationDTO(verification))
}

// DeleteDocument removes a pending or rejected document / Supprime un justificatif en attente ou refusé
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.container.Documents.Delete(r.Context(), user, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadDocument streams a stored document / Télécharge un justificatif
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	canReview := h.hasPermission(r, user, domain.PermissionDocumentsVerify)
	doc, body, err := h.container.Documents.Open(r.Context(), user, canReview, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer body.Close()

	name := doc.OriginalName
	if name == "" {
		name = "document-" + strconv.FormatInt(doc.ID, 10)
	}
	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
	w.Header().Set("Cache-Control", "private, no-store")
	if doc.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("document download interrupted", "document_id", doc.ID, "err", err)
	}
}

// DocumentQueue lists documents awaiting review / Liste les justificatifs à examiner
func (h *Handler) DocumentQueue(w http.ResponseWriter, r *http.Request) {
	status := domain.DocumentStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status == "" {
		status = domain.DocumentPending
	}
	if !status.IsValid() {
		validationResponse(w, map[string]string{"status": "unknown document status"})
		return
	}

	page := pageFrom(r)
	docs, total, err := h.container.Documents.Queue(r.Context(), status, page)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	now := time.Now()
	out := make([]dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, dto.NewDocumentResponse(d, now))
	}
	jsonResponse(w, map[string]any{
		"documents":  out,
		"pagination": dto.NewPagination(page.Number, page.Size, total),
	})
}

// ValidateDocument approves a document / Valide un justificatif
func (h *Handler) ValidateDocument(w http.ResponseWriter, r *http.Request) {
	reviewerID, _ := UserIDFrom(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.DocumentReviewRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	expiresAt, err := dto.ParseDate(req.ExpiresAt)
	if err != nil {
		validationResponse(w, map[string]string{"expires_at": err.Error()})
		return
	}

	doc, err := h.container.Documents.Validate(r.Context(), reviewerID, id, expiresAt)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewDocumentResponse(doc, time.Now()))
}

// RejectDocument refuses a document with a reason / Refuse un justificatif avec un motif
func (h *Handler) RejectDocument(w http.ResponseWriter, r *http.Request) {
	reviewerID, _ := UserIDFrom(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := h.container.Documents.Reject(r.Context(), reviewerID, id, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewDocumentResponse(doc, time.Now()))
}
