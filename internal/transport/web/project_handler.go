package web

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/dto"
)

const multipartMemory = 8 << 20

// formFile reads the "file" part of a bounded multipart body / Lit la partie "file" d'un corps multipart borné
func formFile(w http.ResponseWriter, r *http.Request, limit int64, required bool) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(w, "file too large", http.StatusRequestEntityTooLarge)
			return nil, nil, false
		}
		ErrorResponse(w, "Invalid multipart body", http.StatusBadRequest)
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, nil, true
		}
		validationResponse(w, map[string]string{"file": "is required"})
		return nil, nil, false
	}
	return file, header, true
}

func limitOr(v, def int64) int64 {
	if v > 0 {
		return v
	}
	return def
}

// CreateProject posts a project for moderation / Publie un chantier soumis à modération
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req dto.ProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, fields := req.Input()
	if fields != nil {
		validationResponse(w, fields)
		return
	}

	p, err := h.container.Projects.Create(r.Context(), user, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewProjectResponse(p))
}

// MyProjects lists the caller's projects / Liste les chantiers de l'appelant
func (h *Handler) MyProjects(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	projects, err := h.container.Projects.ListMine(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, map[string]any{"projets": dto.NewProjectList(projects)})
}

// UpdateProject edits an open project / Modifie un chantier ouvert
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, fields := req.Input()
	if fields != nil {
		validationResponse(w, fields)
		return
	}

	p, err := h.container.Projects.Update(r.Context(), user, id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewProjectResponse(p))
}

// CancelProject cancels an open or awarded project / Annule un chantier
func (h *Handler) CancelProject(w http.ResponseWriter, r *http.Request) {
	h.projectTransition(w, r, func(user *domain.User, id int64) (*domain.Projet, error) {
		return h.container.Projects.Cancel(r.Context(), user, id)
	})
}

// CompleteProject closes an awarded project / Clôture un chantier attribué
func (h *Handler) CompleteProject(w http.ResponseWriter, r *http.Request) {
	h.projectTransition(w, r, func(user *domain.User, id int64) (*domain.Projet, error) {
		return h.container.Projects.Complete(r.Context(), user, id)
	})
}

func (h *Handler) projectTransition(w http.ResponseWriter, r *http.Request, apply func(*domain.User, int64) (*domain.Projet, error)) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := apply(user, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewProjectResponse(p))
}

// ListProjects is the public catalogue of open projects / Catalogue public des chantiers ouverts
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProjectFilter{
		Trade:      q.Get("trade"),
		City:       q.Get("city"),
		PostalCode: q.Get("postal_code"),
		Query:      q.Get("q"),
	}

	fields := map[string]string{}
	for name, dst := range map[string]**int64{"budget_min": &filter.BudgetMin, "budget_max": &filter.BudgetMax} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		euros, err := strconv.ParseFloat(raw, 64)
		if err != nil || euros < 0 {
			fields[name] = "must be a positive amount"
			continue
		}
		cents := dto.Cents(euros)
		*dst = &cents
	}
	since, err := dto.ParseDate(q.Get("since"))
	if err != nil {
		fields["since"] = err.Error()
	}
	if len(fields) > 0 {
		validationResponse(w, fields)
		return
	}
	filter.Since = since

	page := pageFrom(r)
	projects, total, err := h.container.Projects.ListPublic(r.Context(), filter, page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.ProjectListResponse{
		Projets:    dto.NewProjectList(projects),
		Pagination: dto.NewPagination(page.Number, page.Size, total),
	})
}

// GetProject shows a project to anyone allowed to see it / Affiche un chantier visible par l'appelant
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.container.Projects.Get(r.Context(), h.optionalUser(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewProjectResponse(p))
}

// UploadProjectImage attaches a photo / Ajoute une photo au chantier
func (h *Handler) UploadProjectImage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	file, _, ok := formFile(w, r, limitOr(h.container.Config.Storage.MaxImageBytes, 5<<20), true)
	if !ok {
		return
	}
	defer file.Close()

	img, err := h.container.Projects.AddImage(r.Context(), user, id, file)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewImageResponse(img))
}

// DeleteProjectImage removes a photo / Supprime une photo
func (h *Handler) DeleteProjectImage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	imageID, ok := pathID(w, r, "imageId")
	if !ok {
		return
	}
	if err := h.container.Projects.DeleteImage(r.Context(), user, id, imageID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
