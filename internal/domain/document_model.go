package domain

import "time"

// DocumentType is a compliance document kind / Type de document administratif
type DocumentType string

const (
	DocumentKbis               DocumentType = "KBIS"
	DocumentUrssaf             DocumentType = "URSSAF"
	DocumentAssuranceDecennale DocumentType = "ASSURANCE_DECENNALE"
	DocumentAssuranceRCPro     DocumentType = "ASSURANCE_RC_PRO"
	DocumentRIB                DocumentType = "RIB"
	DocumentOther              DocumentType = "AUTRE"
)

// IsValid checks the document type / Vérifie le type de document
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentKbis, DocumentUrssaf, DocumentAssuranceDecennale, DocumentAssuranceRCPro, DocumentRIB, DocumentOther:
		return true
	}
	return false
}

// DocumentStatus is the review state of one uploaded document / État de revue d'un document
type DocumentStatus string

const (
	DocumentPending   DocumentStatus = "PENDING"
	DocumentValidated DocumentStatus = "VALIDATED"
	DocumentRejected  DocumentStatus = "REJECTED"
	DocumentExpired   DocumentStatus = "EXPIRED"
)

// IsValid checks the document status / Vérifie le statut du document
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentPending, DocumentValidated, DocumentRejected, DocumentExpired:
		return true
	}
	return false
}

// VerificationStatus is the aggregate state of a user's documents / État agrégé des documents d'un utilisateur
type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationPending  VerificationStatus = "PENDING"
	VerificationBlocked  VerificationStatus = "BLOCKED"
)

// Document is an uploaded compliance file / Fichier justificatif téléversé
type Document struct {
	ID              int64
	UserID          int64
	Type            DocumentType
	FileKey         string
	OriginalName    string
	MimeType        string
	Size            int64
	Status          DocumentStatus
	RejectionReason string
	ExpiresAt       *time.Time
	ReviewedBy      *int64
	ReviewedAt      *time.Time
	UploadedAt      time.Time
}

// EffectiveStatus returns the status at now, expiring validated documents / Statut effectif à l'instant donné
func (d *Document) EffectiveStatus(now time.Time) DocumentStatus {
	if d.Status == DocumentValidated && d.ExpiresAt != nil && d.ExpiresAt.Before(now) {
		return DocumentExpired
	}
	return d.Status
}

// RequiredDocuments lists document types a role must provide / Documents exigés pour un rôle
func RequiredDocuments(role UserRole) []DocumentType {
	switch role {
	case RoleSousTraitant:
		return []DocumentType{DocumentKbis, DocumentUrssaf, DocumentAssuranceDecennale, DocumentAssuranceRCPro}
	case RoleDonneurOrdre:
		return []DocumentType{DocumentKbis, DocumentUrssaf}
	default:
		return nil
	}
}

// latestByType keeps the most recent upload per type / Garde le dernier envoi par type
func latestByType(docs []Document) map[DocumentType]*Document {
	latest := make(map[DocumentType]*Document, len(docs))
	for i := range docs {
		d := &docs[i]
		cur, ok := latest[d.Type]
		if !ok || d.UploadedAt.After(cur.UploadedAt) || (d.UploadedAt.Equal(cur.UploadedAt) && d.ID > cur.ID) {
			latest[d.Type] = d
		}
	}
	return latest
}

// AggregateVerification classifies a user's documents / Classe les documents d'un utilisateur
//
// VERIFIED when every required type's latest document is validated and current,
// PENDING when at least one is still under review, BLOCKED otherwise.
func AggregateVerification(role UserRole, docs []Document, now time.Time) VerificationStatus {
	required := RequiredDocuments(role)
	if len(required) == 0 {
		return VerificationVerified
	}

	latest := latestByType(docs)
	allValid, anyPending := true, false
	for _, t := range required {
		d, ok := latest[t]
		if !ok {
			allValid = false
			continue
		}
		switch d.EffectiveStatus(now) {
		case DocumentValidated:
		case DocumentPending:
			allValid = false
			anyPending = true
		default:
			allValid = false
		}
	}

	switch {
	case allValid:
		return VerificationVerified
	case anyPending:
		return VerificationPending
	default:
		return VerificationBlocked
	}
}

// MissingDocuments lists the required types the member still has to upload / Documents à téléverser
// A type is missing when it was never uploaded or its latest upload is
// rejected or expired. A pending upload awaits review and is not missing.
func MissingDocuments(role UserRole, docs []Document, now time.Time) []DocumentType {
	latest := latestByType(docs)
	missing := []DocumentType{}
	for _, t := range RequiredDocuments(role) {
		d, ok := latest[t]
		if !ok {
			missing = append(missing, t)
			continue
		}
		if s := d.EffectiveStatus(now); s == DocumentRejected || s == DocumentExpired {
			missing = append(missing, t)
		}
	}
	return missing
}
