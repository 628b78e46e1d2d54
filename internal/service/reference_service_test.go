package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/storage"
)

func TestReferenceService_Create(t *testing.T) {
	h := newHarness(t)
	sub := h.user(domain.RoleSousTraitant, "st@chantier.test", "Toits du Rhône")
	owner := h.user(domain.RoleDonneurOrdre, "do@chantier.test", "Maître BTP")
	nextYear := time.Now().Year() + 1

	tests := []struct {
		name      string
		user      *domain.User
		in        ReferenceInput
		wantErr   error
		wantImage bool
	}{
		{name: "donneur d'ordre", user: owner, in: ReferenceInput{Title: "Siège social"}, wantErr: ErrForbidden},
		{name: "missing title", user: sub, in: ReferenceInput{Title: "  "}, wantErr: ErrValidation},
		{name: "year too old", user: sub, in: ReferenceInput{Title: "Église", Year: 1900}, wantErr: ErrValidation},
		{name: "year too far", user: sub, in: ReferenceInput{Title: "Projet futur", Year: nextYear + 1}, wantErr: ErrValidation},
		{name: "pdf image", user: sub, in: ReferenceInput{Title: "Plan", Image: pdf()}, wantErr: storage.ErrUnsupportedType},
		{name: "without image", user: sub, in: ReferenceInput{Title: "Halle de marché", Year: 2021, City: "Villeurbanne"}},
		{name: "next year", user: sub, in: ReferenceInput{Title: "Groupe scolaire", Year: nextYear}},
		{name: "with image", user: sub, in: ReferenceInput{Title: "Couverture zinc", Image: png()}, wantImage: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := h.references.Create(h.ctx, tt.user, tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() unexpected error = %v", err)
			}
			if tt.wantImage {
				if !strings.HasPrefix(ref.ImageURL, "/uploads/references/") {
					t.Errorf("Create() image URL = %q", ref.ImageURL)
				}
				if exists, _ := afero.Exists(h.fs, ref.ImageKey); !exists {
					t.Errorf("Create() image %q not stored", ref.ImageKey)
				}
			} else if ref.ImageKey != "" {
				t.Errorf("Create() image key = %q, want none", ref.ImageKey)
			}
		})
	}

	refs, err := h.references.ListByUser(h.ctx, sub.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("ListByUser() = %d references, want 3", len(refs))
	}
	for _, r := range refs {
		if r.ImageKey != "" && r.ImageURL == "" {
			t.Errorf("ListByUser() reference %d has no image URL", r.ID)
		}
	}
}

func TestReferenceService_Delete(t *testing.T) {
	h := newHarness(t)
	sub := h.user(domain.RoleSousTraitant, "st@chantier.test", "Toits du Rhône")
	other := h.user(domain.RoleSousTraitant, "other@chantier.test", "Autre")

	ref, err := h.references.Create(h.ctx, sub, ReferenceInput{Title: "Couverture zinc", Image: png()})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := h.references.Delete(h.ctx, other, ref.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Delete() by stranger error = %v, want ErrForbidden", err)
	}
	if err := h.references.Delete(h.ctx, sub, ref.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if exists, _ := afero.Exists(h.fs, ref.ImageKey); exists {
		t.Error("Delete() should remove the image")
	}
	if err := h.references.Delete(h.ctx, sub, ref.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Second Delete() error = %v, want ErrNotFound", err)
	}
}
