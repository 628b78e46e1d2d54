package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/db"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Gère le schéma de la base de données",
	}

	direction := func(dir db.MigrateDirection) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			database, dbType, err := c.openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()
			if err := db.Migrate(database, dbType, c.cfg.Database.MigrationsPath, dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations %s appliquées.\n", dir)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Applique toutes les migrations", Args: cobra.NoArgs, RunE: direction(db.MigrateUp)},
		&cobra.Command{Use: "down", Short: "Annule toutes les migrations", Args: cobra.NoArgs, RunE: direction(db.MigrateDown)},
		&cobra.Command{
			Use:   "version",
			Short: "Affiche la version du schéma",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				database, dbType, err := c.openDatabase()
				if err != nil {
					return err
				}
				defer database.Close()
				m, err := db.NewMigrator(database, dbType, c.cfg.Database.MigrationsPath)
				if err != nil {
					return err
				}
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aucune migration appliquée.")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}

// openDatabase connects without the rest of the container / Connexion seule, sans conteneur
func (c *cli) openDatabase() (*sql.DB, db.DatabaseType, error) {
	dbType := db.ParseDatabaseType(c.cfg.Database.Type)
	database, err := db.NewDatabaseInitializer(dbType).Initialize(db.DatabaseConfig{
		Type:         dbType,
		DSN:          c.cfg.Database.DSN,
		MaxOpenConns: c.cfg.Database.MaxOpenConns,
		MaxIdleConns: c.cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, dbType, fmt.Errorf("failed to initialize %s database: %w", dbType, err)
	}
	return database, dbType, nil
}
