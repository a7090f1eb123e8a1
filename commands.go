package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Martin-Hayot/auctionhub/internal/app"
	"github.com/Martin-Hayot/auctionhub/internal/database"
	"github.com/Martin-Hayot/auctionhub/pkg/types"
	"github.com/Martin-Hayot/auctionhub/pkg/utils"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := database.MigrateUp(c.cfg); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "Migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert every migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := database.MigrateDown(c.cfg); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "Migrations reverted")
				return nil
			},
		},
	)
	return cmd
}

func newSeedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace all auctions with sample data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				now := time.Now()
				created, err := seed(cmd.Context(), a.Store, now)
				if err != nil {
					return err
				}
				for _, auction := range created {
					fmt.Fprintln(c.out, formatAuction(auction, now))
				}
				fmt.Fprintf(c.out, "Seeded database with %d sample auctions\n", len(created))
				return nil
			})
		},
	}
}

func newCleanupCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired auctions now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				deleted, err := a.Maintenance.CleanupNow(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Cleaned up %d expired auction(s)\n", deleted)
				return nil
			})
		},
	}
}

func newBackupCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create and inspect JSON snapshots",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a manual snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				desc, err := a.Maintenance.BackupNow(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Backup created: %s (%s KB, %d auctions, %d cron logs)\n",
					desc.Filename, desc.SizeKB, desc.TotalAuctions, desc.TotalCronLogs)
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				snapshots, err := a.Archiver.ListSnapshots(cmd.Context())
				if err != nil {
					return err
				}
				t := newTable(c)
				t.AppendHeader(table.Row{"File", "Created", "Size (KB)", "Auctions", "Cron Logs", "Type"})
				for _, s := range snapshots {
					t.AppendRow(table.Row{
						s.Filename,
						s.CreatedAt.Local().Format(time.DateTime),
						s.SizeKB,
						s.TotalAuctions,
						s.TotalCronLogs,
						s.BackupType,
					})
				}
				t.AppendFooter(table.Row{"Total", len(snapshots)})
				t.Render()
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <filename>",
		Short: "Print a snapshot's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				snapshot, err := a.Archiver.ReadSnapshot(args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(snapshot)
			})
		},
	}

	cmd.AddCommand(create, list, show)
	return cmd
}

func newJobsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List and run scheduled jobs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				t := newTable(c)
				t.AppendHeader(table.Row{"Job", "Schedule"})
				for _, info := range a.Scheduler.Jobs() {
					t.AppendRow(table.Row{info.Name, info.Spec})
				}
				t.Render()
				return nil
			})
		},
	}

	run := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a job once and record it in the job log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				entry, err := a.Scheduler.Fire(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s: %s: %s\n", entry.JobName, entry.Status, entry.Message)
				if entry.Status == types.JobStatusError {
					return fmt.Errorf("job %s failed", entry.JobName)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, run)
	return cmd
}

const (
	defaultLogLimit = 50
	maxLogLimit     = 100
)

// logLimit maps the --limit flag onto the range the job log query accepts.
func logLimit(n int) int {
	if n <= 0 {
		return defaultLogLimit
	}
	return min(n, maxLogLimit)
}

func newLogsCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent job log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app.App) error {
				logs, err := a.Store.ListJobLogs(cmd.Context(), logLimit(limit))
				if err != nil {
					return err
				}
				t := newTable(c)
				t.AppendHeader(table.Row{"ID", "Job", "Status", "Message", "Executed"})
				for _, entry := range logs {
					t.AppendRow(table.Row{
						entry.ID,
						entry.JobName,
						entry.Status,
						entry.Message,
						entry.ExecutedAt.Local().Format(time.DateTime),
					})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultLogLimit, "number of entries to show (at most 100)")
	return cmd
}

func newTable(c *cli) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetStyle(table.StyleLight)
	return t
}

// formatAuction renders one auction for the seed summary.
func formatAuction(a types.Auction, now time.Time) string {
	return fmt.Sprintf("#%d %s %s (%s)", a.ID, a.Title, utils.FormatPrice(a.StartingPrice), utils.FormatTimeLeft(a.EndTime, now))
}
