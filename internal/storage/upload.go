package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/gabriel-vasile/mimetype"

	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

var (
	// ErrTooLarge is returned when the upload exceeds its limit / Fichier trop volumineux
	ErrTooLarge = errors.New("file too large")
	// ErrUnsupportedType is returned for a sniffed type outside the allow list / Type non autorisé
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmpty is returned for zero-byte uploads / Fichier vide
	ErrEmpty = errors.New("empty file")
)

// Allowed MIME types per upload kind / Types MIME autorisés par usage
var (
	DocumentTypes = []string{"application/pdf", "image/jpeg", "image/png"}
	ImageTypes    = []string{"image/jpeg", "image/png", "image/webp"}
)

// Object describes a stored upload / Décrit un fichier stocké
type Object struct {
	Key      string
	URL      string
	MimeType string
	Size     int64
}

// sniffLen covers every signature mimetype needs for the allowed types
const sniffLen = 3072

// Put sniffs, bounds and stores r under prefix / Détecte le type, borne la taille et stocke r
//
// The content type comes from the bytes, never from the client header.
func Put(ctx context.Context, fs ports.FileStorage, prefix string, r io.Reader, limit int64, allowed []string) (*Object, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmpty
	}

	mt := mimetype.Detect(head)
	mime := ""
	for m := mt; m != nil; m = m.Parent() {
		if slices.Contains(allowed, m.String()) {
			mime = m.String()
			break
		}
	}
	if mime == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
	}

	key := NewKey(prefix, mt.Extension())
	// One byte past the limit tells us the file is too large / Un octet de plus signale le dépassement
	n, err := fs.Save(ctx, key, io.LimitReader(br, limit+1))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if n > limit {
		fs.Delete(ctx, key)
		return nil, ErrTooLarge
	}

	return &Object{Key: key, URL: fs.URL(key), MimeType: mime, Size: n}, nil
}
