// Package migrations embeds the SQL schema for every supported database.
package migrations

import "embed"

// FS holds one directory per database type / Un répertoire par type de base
//
//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
