package ports

import (
	"context"
	"io"
)

// FileStorage stores uploaded files under opaque keys / Stocke les fichiers sous des clés opaques
type FileStorage interface {
	// Save writes r under key and returns the bytes written / Écrit r sous la clé
	Save(ctx context.Context, key string, r io.Reader) (int64, error)

	// Open reads the file at key / Lit le fichier
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the file, missing keys are ignored / Supprime le fichier
	Delete(ctx context.Context, key string) error

	// URL returns the public address of key / Retourne l'URL publique
	URL(key string) string
}
