package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/BakiChantier/chantier-direct-sub000/internal/app"
	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/logging"
	"github.com/BakiChantier/chantier-direct-sub000/internal/transport/web"
)

// cli carries what every subcommand shares / État partagé par les sous-commandes
type cli struct {
	cfg         *config.Config
	closeLogger func() error
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "chantier",
		Short:        "Chantier Direct, la place de marché des donneurs d'ordre et sous-traitants",
		Version:      web.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger, closeFn := logging.New(cfg.Logging, os.Stderr, cfg.IsProduction())
			slog.SetDefault(logger)
			c.cfg, c.closeLogger = cfg, closeFn
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.closeLogger != nil {
				return c.closeLogger()
			}
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newCreateAdminCmd(c),
		newStatsCmd(c),
		newJobsCmd(c),
	)
	return root
}

// container opens the full dependency graph / Ouvre le conteneur complet
// Migrations are applied on open.
func (c *cli) container() (*app.Container, error) {
	return app.NewContainer(c.cfg)
}
