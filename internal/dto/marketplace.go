package dto

import (
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/service"
)

// ProjectRequest creates or edits a project / Crée ou modifie un chantier
// Amounts are euros, dates are lenient strings.
type ProjectRequest struct {
	Title       string   `json:"titre" validate:"required,max=200"`
	Description string   `json:"description" validate:"required,max=10000"`
	Trade       string   `json:"corps_metier" validate:"required,max=100"`
	City        string   `json:"ville" validate:"required,max=100"`
	PostalCode  string   `json:"code_postal" validate:"required,len=5,numeric"`
	BudgetMin   *float64 `json:"budget_min" validate:"omitempty,gte=0"`
	BudgetMax   *float64 `json:"budget_max" validate:"omitempty,gte=0"`
	StartDate   string   `json:"date_debut"`
	Deadline    string   `json:"date_limite"`
}

// Input converts the request; fields holds date errors / Convertit la requête, fields contient les erreurs de date
func (r ProjectRequest) Input() (service.ProjectInput, map[string]string) {
	in := service.ProjectInput{
		Title:       r.Title,
		Description: r.Description,
		Trade:       r.Trade,
		City:        r.City,
		PostalCode:  r.PostalCode,
		BudgetMin:   CentsPtr(r.BudgetMin),
		BudgetMax:   CentsPtr(r.BudgetMax),
	}
	fields := map[string]string{}
	var err error
	if in.StartDate, err = ParseDate(r.StartDate); err != nil {
		fields["date_debut"] = err.Error()
	}
	if in.Deadline, err = ParseDate(r.Deadline); err != nil {
		fields["date_limite"] = err.Error()
	}
	if len(fields) > 0 {
		return in, fields
	}
	return in, nil
}

// ImageResponse is a project photo / Photo de chantier
type ImageResponse struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Position int    `json:"position"`
}

// NewImageResponse converts a project image / Convertit une photo
func NewImageResponse(img *domain.ProjectImage) ImageResponse {
	return ImageResponse{ID: img.ID, URL: img.URL, MimeType: img.MimeType, Size: img.Size, Position: img.Position}
}

// ProjectResponse is a project card / Fiche chantier
type ProjectResponse struct {
	ID              int64           `json:"id"`
	OwnerID         int64           `json:"donneur_ordre_id"`
	Title           string          `json:"titre"`
	Description     string          `json:"description"`
	Trade           string          `json:"corps_metier"`
	City            string          `json:"ville"`
	PostalCode      string          `json:"code_postal"`
	BudgetMin       *float64        `json:"budget_min"`
	BudgetMax       *float64        `json:"budget_max"`
	StartDate       *string         `json:"date_debut"`
	Deadline        *string         `json:"date_limite"`
	Moderation      string          `json:"statut_moderation"`
	RejectionReason string          `json:"motif_refus,omitempty"`
	Status          string          `json:"statut"`
	AwardedOfferID  *int64          `json:"offre_retenue_id,omitempty"`
	OfferCount      int             `json:"nombre_offres"`
	Images          []ImageResponse `json:"images"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewProjectResponse converts a project / Convertit un chantier
func NewProjectResponse(p *domain.Projet) ProjectResponse {
	images := make([]ImageResponse, 0, len(p.Images))
	for i := range p.Images {
		images = append(images, NewImageResponse(&p.Images[i]))
	}
	return ProjectResponse{
		ID:              p.ID,
		OwnerID:         p.OwnerID,
		Title:           p.Title,
		Description:     p.Description,
		Trade:           p.Trade,
		City:            p.City,
		PostalCode:      p.PostalCode,
		BudgetMin:       EurosPtr(p.BudgetMin),
		BudgetMax:       EurosPtr(p.BudgetMax),
		StartDate:       dateOnly(p.StartDate),
		Deadline:        dateOnly(p.Deadline),
		Moderation:      string(p.Moderation),
		RejectionReason: p.RejectionReason,
		Status:          string(p.Status),
		AwardedOfferID:  p.AwardedOfferID,
		OfferCount:      p.OfferCount,
		Images:          images,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// NewProjectList converts projects / Convertit une liste de chantiers
func NewProjectList(projects []*domain.Projet) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, NewProjectResponse(p))
	}
	return out
}

// ProjectListResponse is the paginated listing / Liste paginée
type ProjectListResponse struct {
	Projets    []ProjectResponse `json:"projets"`
	Pagination Pagination        `json:"pagination"`
}

// OfferRequest submits a bid / Dépose une offre
type OfferRequest struct {
	ProjectID int64   `json:"projet_id" validate:"required,gt=0"`
	Amount    float64 `json:"montant" validate:"gt=0"`
	DelayDays int     `json:"delai_jours" validate:"gt=0,max=3650"`
	Message   string  `json:"message" validate:"max=5000"`
}

// Input converts the bid / Convertit l'offre
func (r OfferRequest) Input() service.OfferInput {
	return service.OfferInput{
		ProjectID: r.ProjectID,
		Amount:    Cents(r.Amount),
		DelayDays: r.DelayDays,
		Message:   r.Message,
	}
}

// OfferResponse is a bid / Offre
type OfferResponse struct {
	ID              int64      `json:"id"`
	ProjectID       int64      `json:"projet_id"`
	SubcontractorID int64      `json:"sous_traitant_id"`
	Amount          float64    `json:"montant"`
	DelayDays       int        `json:"delai_jours"`
	Message         string     `json:"message"`
	Status          string     `json:"statut"`
	ProjectTitle    string     `json:"projet_titre,omitempty"`
	ProjectStatus   string     `json:"projet_statut,omitempty"`
	CompanyName     string     `json:"entreprise,omitempty"`
	Rating          *RatingDTO `json:"note,omitempty"`
	Verification    string     `json:"statut_verification,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewOfferResponse converts a bid / Convertit une offre
func NewOfferResponse(o *domain.Offre) OfferResponse {
	return OfferResponse{
		ID:              o.ID,
		ProjectID:       o.ProjectID,
		SubcontractorID: o.SubcontractorID,
		Amount:          Euros(o.Amount),
		DelayDays:       o.DelayDays,
		Message:         o.Message,
		Status:          string(o.Status),
		ProjectTitle:    o.ProjectTitle,
		ProjectStatus:   string(o.ProjectStatus),
		CompanyName:     o.CompanyName,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// NewOfferList converts bids / Convertit des offres
func NewOfferList(offers []*domain.Offre) []OfferResponse {
	out := make([]OfferResponse, 0, len(offers))
	for _, o := range offers {
		out = append(out, NewOfferResponse(o))
	}
	return out
}

// NewOfferViews converts the owner view of bids / Vue des offres pour le donneur d'ordre
func NewOfferViews(views []service.OfferView) []OfferResponse {
	out := make([]OfferResponse, 0, len(views))
	for _, v := range views {
		resp := NewOfferResponse(v.Offre)
		rating := ratingDTO(v.Rating)
		resp.Rating = &rating
		resp.Verification = string(v.Verification)
		out = append(out, resp)
	}
	return out
}

// MessageRequest sends a private message / Envoie un message privé
type MessageRequest struct {
	RecipientID int64  `json:"recipient_id" validate:"required,gt=0"`
	ProjectID   *int64 `json:"projet_id" validate:"omitempty,gt=0"`
	Body        string `json:"body" validate:"required,max=5000"`
}

// Input converts the message / Convertit le message
func (r MessageRequest) Input() service.MessageInput {
	return service.MessageInput{RecipientID: r.RecipientID, ProjectID: r.ProjectID, Body: r.Body}
}

// MarkReadRequest marks a thread read / Marque une conversation comme lue
type MarkReadRequest struct {
	With int64 `json:"with" validate:"required,gt=0"`
}

// MessageResponse is a private message / Message privé
type MessageResponse struct {
	ID          int64      `json:"id"`
	SenderID    int64      `json:"sender_id"`
	RecipientID int64      `json:"recipient_id"`
	ProjectID   *int64     `json:"projet_id,omitempty"`
	Body        string     `json:"body"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewMessageResponse converts a message / Convertit un message
func NewMessageResponse(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		ProjectID:   m.ProjectID,
		Body:        m.Body,
		ReadAt:      m.ReadAt,
		CreatedAt:   m.CreatedAt,
	}
}

// NewMessageList converts messages / Convertit des messages
func NewMessageList(msgs []*domain.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewMessageResponse(m))
	}
	return out
}

// ConversationResponse summarizes one thread / Résumé d'une conversation
type ConversationResponse struct {
	CounterpartID      int64           `json:"interlocuteur_id"`
	CounterpartCompany string          `json:"interlocuteur"`
	LastMessage        MessageResponse `json:"dernier_message"`
	UnreadCount        int             `json:"non_lus"`
}

// NewConversationList converts conversations / Convertit les conversations
func NewConversationList(convs []domain.Conversation) []ConversationResponse {
	out := make([]ConversationResponse, 0, len(convs))
	for i := range convs {
		c := &convs[i]
		out = append(out, ConversationResponse{
			CounterpartID:      c.CounterpartID,
			CounterpartCompany: c.CounterpartCompany,
			LastMessage:        NewMessageResponse(&c.LastMessage),
			UnreadCount:        c.UnreadCount,
		})
	}
	return out
}

// DocumentReviewRequest validates or rejects a document / Valide ou refuse un justificatif
type DocumentReviewRequest struct {
	ExpiresAt string `json:"expires_at"`
	Reason    string `json:"reason" validate:"max=1000"`
}

// DocumentResponse is an uploaded compliance file / Justificatif téléversé
type DocumentResponse struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	Type            string     `json:"type"`
	OriginalName    string     `json:"nom_fichier"`
	MimeType        string     `json:"mime_type"`
	Size            int64      `json:"taille"`
	Status          string     `json:"statut"`
	RejectionReason string     `json:"motif_refus,omitempty"`
	ExpiresAt       *string    `json:"expires_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	UploadedAt      time.Time  `json:"uploaded_at"`
}

// NewDocumentResponse converts a document with its status at now / Convertit le document avec son statut effectif
func NewDocumentResponse(d *domain.Document, now time.Time) DocumentResponse {
	return DocumentResponse{
		ID:              d.ID,
		UserID:          d.UserID,
		Type:            string(d.Type),
		OriginalName:    d.OriginalName,
		MimeType:        d.MimeType,
		Size:            d.Size,
		Status:          string(d.EffectiveStatus(now)),
		RejectionReason: d.RejectionReason,
		ExpiresAt:       dateOnly(d.ExpiresAt),
		ReviewedAt:      d.ReviewedAt,
		UploadedAt:      d.UploadedAt,
	}
}

// DocumentListResponse is GET /api/documents / Réponse de GET /api/documents
type DocumentListResponse struct {
	Documents    []DocumentResponse `json:"documents"`
	Verification VerificationDTO    `json:"verification"`
}

// EvaluationRequest rates the other party of a project / Évalue l'autre partie
type EvaluationRequest struct {
	ProjectID int64  `json:"projet_id" validate:"required,gt=0"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"max=2000"`
}

// Input converts the evaluation / Convertit l'évaluation
func (r EvaluationRequest) Input() service.EvaluationInput {
	return service.EvaluationInput{ProjectID: r.ProjectID, Rating: r.Rating, Comment: r.Comment}
}

// EvaluationResponse is one rating / Une évaluation
type EvaluationResponse struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"projet_id"`
	EvaluatorID int64     `json:"evaluateur_id"`
	EvaluatedID int64     `json:"evalue_id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewEvaluationResponse converts an evaluation / Convertit une évaluation
func NewEvaluationResponse(e *domain.Evaluation) EvaluationResponse {
	return EvaluationResponse{
		ID:          e.ID,
		ProjectID:   e.ProjectID,
		EvaluatorID: e.EvaluatorID,
		EvaluatedID: e.EvaluatedID,
		Rating:      e.Rating,
		Comment:     e.Comment,
		CreatedAt:   e.CreatedAt,
	}
}

// EvaluationListResponse lists ratings with their average / Liste des notes avec la moyenne
type EvaluationListResponse struct {
	Evaluations []EvaluationResponse `json:"evaluations"`
	Rating      RatingDTO            `json:"rating"`
}

// NewEvaluationList converts ratings / Convertit les évaluations
func NewEvaluationList(evals []*domain.Evaluation, summary domain.RatingSummary) EvaluationListResponse {
	out := make([]EvaluationResponse, 0, len(evals))
	for _, e := range evals {
		out = append(out, NewEvaluationResponse(e))
	}
	return EvaluationListResponse{Evaluations: out, Rating: ratingDTO(summary)}
}

// ReferenceResponse is a portfolio entry / Réalisation du portfolio
type ReferenceResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"titre"`
	Description string    `json:"description,omitempty"`
	Year        int       `json:"annee,omitempty"`
	City        string    `json:"ville,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewReferenceResponse converts a reference / Convertit une réalisation
func NewReferenceResponse(r *domain.Reference) ReferenceResponse {
	return ReferenceResponse{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Year:        r.Year,
		City:        r.City,
		ImageURL:    r.ImageURL,
		CreatedAt:   r.CreatedAt,
	}
}

// ReasonRequest carries a mandatory reason / Motif obligatoire
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// ContactRequest is the public contact form / Formulaire de contact public
type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"required,min=10,max=5000"`
}

// Input converts the form / Convertit le formulaire
func (r ContactRequest) Input() service.ContactInput {
	return service.ContactInput{Name: r.Name, Email: r.Email, Subject: r.Subject, Message: r.Message}
}

// StatsResponse is the admin dashboard / Tableau de bord admin
type StatsResponse struct {
	UsersByRole          map[string]int `json:"users_by_role"`
	ProjectsByModeration map[string]int `json:"projects_by_moderation"`
	OffersByStatus       map[string]int `json:"offers_by_status"`
	DocumentsPending     int            `json:"documents_pending"`
}

// NewStatsResponse converts the snapshot / Convertit l'instantané
func NewStatsResponse(s *domain.Stats) StatsResponse {
	resp := StatsResponse{
		UsersByRole:          map[string]int{},
		ProjectsByModeration: map[string]int{},
		OffersByStatus:       map[string]int{},
		DocumentsPending:     s.DocumentsPending,
	}
	for k, v := range s.UsersByRole {
		resp.UsersByRole[string(k)] = v
	}
	for k, v := range s.ProjectsByModeration {
		resp.ProjectsByModeration[string(k)] = v
	}
	for k, v := range s.OffersByStatus {
		resp.OffersByStatus[string(k)] = v
	}
	return resp
}
