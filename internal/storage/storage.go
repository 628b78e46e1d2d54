// Package storage keeps uploaded files on an afero filesystem.
// Production uses the OS filesystem rooted at storage.root; tests use an
// in-memory filesystem. Keys are slash separated and never absolute.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"

	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

var _ ports.FileStorage = (*Local)(nil)

// ErrInvalidKey is returned for keys escaping the root / Clé hors de la racine
var ErrInvalidKey = errors.New("invalid storage key")

// Local stores files on an afero filesystem / Stocke les fichiers sur un système afero
type Local struct {
	fs        afero.Fs
	publicURL string
}

// NewLocal creates storage rooted at dir on the OS filesystem / Crée un stockage sur disque
func NewLocal(dir, publicURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), publicURL), nil
}

// New wraps any afero filesystem / Enveloppe un système de fichiers afero
func New(fs afero.Fs, publicURL string) *Local {
	return &Local{fs: fs, publicURL: strings.TrimRight(publicURL, "/")}
}

// Fs exposes the filesystem for the /uploads/ file server / Expose le FS pour le serveur de fichiers
func (l *Local) Fs() afero.Fs {
	return l.fs
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)[1:]
	if k == "" || k != strings.TrimPrefix(key, "/") || strings.HasPrefix(k, "..") {
		return "", ErrInvalidKey
	}
	return k, nil
}

// Save writes r under key / Écrit r sous la clé
func (l *Local) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	k, err := cleanKey(key)
	if err != nil {
		return 0, err
	}
	if err := l.fs.MkdirAll(path.Dir(k), 0o755); err != nil {
		return 0, err
	}
	f, err := l.fs.OpenFile(k, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		l.fs.Remove(k)
		return 0, err
	}
	return n, nil
}

// Open reads the file at key / Lit le fichier
func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	return l.fs.Open(k)
}

// Delete removes the file, missing keys are ignored / Supprime le fichier
func (l *Local) Delete(_ context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(k); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// URL returns the public address of key / Retourne l'URL publique
func (l *Local) URL(key string) string {
	return l.publicURL + "/" + strings.TrimPrefix(key, "/")
}

// NewKey builds a unique key such as projets/12/2Ab...xyz.jpg / Construit une clé unique
func NewKey(prefix, ext string) string {
	return path.Join(prefix, ksuid.New().String()+ext)
}

// ctxReader stops copying once ctx is done / Arrête la copie quand le contexte expire
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
