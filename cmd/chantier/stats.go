package main

import (
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
)

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Affiche les statistiques de la place de marché",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := c.container()
			if err != nil {
				return err
			}
			defer container.Close()

			stats, err := container.Moderation.Stats(cmd.Context())
			if err != nil {
				return err
			}
			renderStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func renderStats(w io.Writer, stats *domain.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Catégorie", "Valeur", "Nombre"})

	appendGroup(t, "Utilisateurs", stats.UsersByRole)
	appendGroup(t, "Chantiers", stats.ProjectsByModeration)
	appendGroup(t, "Offres", stats.OffersByStatus)
	t.AppendRow(table.Row{"Documents", "en attente", stats.DocumentsPending})
	t.Render()
}

// appendGroup writes one sorted block of counters / Écrit un bloc de compteurs trié
func appendGroup[K ~string](t table.Writer, label string, counts map[K]int) {
	keys := make([]string, 0, len(counts))
	total := 0
	for k, n := range counts {
		keys = append(keys, string(k))
		total += n
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.AppendRow(table.Row{label, k, counts[K(k)]})
	}
	t.AppendRow(table.Row{label, "total", total})
	t.AppendSeparator()
}
