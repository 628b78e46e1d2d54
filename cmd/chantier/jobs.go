package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/BakiChantier/chantier-direct-sub000/internal/scheduler"
)

func newJobsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Liste ou exécute les tâches de maintenance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Liste les tâches planifiées",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := c.container()
			if err != nil {
				return err
			}
			defer container.Close()
			renderJobs(cmd.OutOrStdout(), container.Scheduler.Jobs())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "run <name>",
		Short:     "Exécute une tâche immédiatement",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{scheduler.JobTokenPurge, scheduler.JobDocumentExpiry, scheduler.JobBackup},
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := c.container()
			if err != nil {
				return err
			}
			defer container.Close()

			start := time.Now()
			if err := container.RunJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tâche %s terminée en %s.\n", args[0], time.Since(start).Round(time.Millisecond))
			return nil
		},
	})
	return cmd
}

func renderJobs(w io.Writer, jobs []scheduler.Status) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Tâche", "Planification", "Prochaine exécution"})
	for i, j := range jobs {
		next := "-"
		if !j.Next.IsZero() {
			next = j.Next.Format(time.DateTime)
		}
		t.AppendRow(table.Row{i + 1, j.Name, j.Spec, next})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(jobs)})
	t.Render()
}
