package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ErrBackupUnsupported is returned for in-memory or non-SQLite databases / Sauvegarde impossible
var ErrBackupUnsupported = errors.New("backup only supports file-backed sqlite databases")

// Backup snapshots the SQLite database with VACUUM INTO / Sauvegarde la base SQLite
type Backup struct {
	db            *sql.DB
	fs            afero.Fs
	source        string // Database file name / Nom du fichier de base
	memory        bool
	dir           string
	retentionDays int
	now           func() time.Time
}

// NewBackup prepares a backup job; dsn is the sqlite DSN / Prépare la tâche de sauvegarde
func NewBackup(database *sql.DB, fs afero.Fs, dsn, dir string, retentionDays int) *Backup {
	memory := strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
	source := dsn
	if idx := strings.Index(source, "?"); idx >= 0 {
		source = source[:idx]
	}
	source = strings.TrimPrefix(source, "file:")
	return &Backup{
		db:            database,
		fs:            fs,
		source:        source,
		memory:        memory,
		dir:           dir,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Run creates one snapshot then prunes old ones / Crée un instantané puis purge les anciens
func (b *Backup) Run(ctx context.Context) error {
	path, err := b.snapshot(ctx)
	if err != nil {
		return err
	}
	slog.Info("database backup created", "path", path)

	removed, err := b.prune()
	if err != nil {
		return fmt.Errorf("backup cleanup: %w", err)
	}
	if removed > 0 {
		slog.Info("old backups removed", "count", removed)
	}
	return nil
}

// filename returns the snapshot name for t / Nom du fichier pour t
func (b *Backup) filename(t time.Time) string {
	return fmt.Sprintf("%s.backup-%s.db", filepath.Base(b.source), t.Format("20060102-150405"))
}

func (b *Backup) snapshot(ctx context.Context) (string, error) {
	if b.source == "" || b.memory {
		return "", ErrBackupUnsupported
	}
	if err := b.fs.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	path := filepath.Join(b.dir, b.filename(b.now()))
	// VACUUM INTO takes no bind parameter / VACUUM INTO n'accepte pas de paramètre
	query := fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(path, "'", "''"))
	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return "", fmt.Errorf("backup execution failed: %w", err)
	}
	return path, nil
}

// prune deletes snapshots older than the retention window / Supprime les sauvegardes expirées
func (b *Backup) prune() (int, error) {
	if b.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := b.now().AddDate(0, 0, -b.retentionDays)

	entries, err := afero.ReadDir(b.fs, b.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.Contains(name, ".backup-") || !strings.HasSuffix(name, ".db") {
			continue
		}
		if !entry.ModTime().Before(cutoff) {
			continue
		}
		if err := b.fs.Remove(filepath.Join(b.dir, name)); err != nil {
			slog.Warn("failed to delete old backup", "file", name, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}
