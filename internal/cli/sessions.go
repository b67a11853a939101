package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"cortex/workspace/internal/db"
	"cortex/workspace/internal/model"
	"cortex/workspace/internal/service"
)

const displayTimeLayout = "2006-01-02 15:04"

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	var (
		limit       int
		sessionType string
		from, to    string
	)
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := openLocal(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer local.Close()

			sessions, apiErr := local.sessions.ListSessions(cmd.Context(), localUserID, service.ListSessionsInput{
				Limit:       limit,
				SessionType: sessionType,
				DateFrom:    from,
				DateTo:      to,
			})
			if apiErr != nil {
				return apiErr
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), sessionsTable(sessions))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of sessions")
	cmd.Flags().StringVar(&sessionType, "type", "", "work, short_break or long_break")
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD)")
	return cmd
}

func sessionsTable(sessions []model.PomodoroSession) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		done := "no"
		if s.Completed {
			done = "yes"
		}
		task := ""
		if s.TaskID != nil {
			task = *s.TaskID
		}
		rows = append(rows, []string{
			shortID(s.ID),
			string(s.SessionType),
			fmt.Sprintf("%d/%d", s.ActualDurationMinutes, s.DurationMinutes),
			done,
			s.StartedAt.Local().Format(displayTimeLayout),
			task,
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TYPE", "MIN", "DONE", "STARTED", "TASK").
		Rows(rows...).
		String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := openLocal(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer local.Close()

			stats, apiErr := local.sessions.Stats(cmd.Context(), localUserID, days)
			if apiErr != nil {
				return apiErr
			}
			writeStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days, today included")
	return cmd
}

func writeStats(w io.Writer, stats *service.Stats) {
	fmt.Fprintf(w, "Last %d days\n", stats.PeriodDays)
	fmt.Fprintf(w, "Total sessions: %d (%d completed, %.1f%%)\n",
		stats.TotalSessions, stats.CompletedSessions, stats.CompletionRate)
	fmt.Fprintf(w, "Pomodoros: %d, %d focus minutes, %.1f per day\n",
		stats.CompletedWorkSessions, stats.TotalFocusMinutes, stats.AverageDailySessions)
	fmt.Fprintf(w, "Today: %d pomodoros, %d focus minutes\n", stats.TodaySessions, stats.TodayFocusMinutes)

	rows := make([][]string, 0, len(stats.Daily))
	for _, day := range stats.Daily {
		rows = append(rows, []string{day.Date, strconv.Itoa(day.WorkSessions), strconv.Itoa(day.FocusMinutes)})
	}
	fmt.Fprintln(w, table.New().
		Border(lipgloss.NormalBorder()).
		Headers("DATE", "POMODOROS", "MINUTES").
		Rows(rows...).
		String())
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		days   int
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recent sessions as JSON or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "csv" {
				return fmt.Errorf("unknown format %q: use json or csv", format)
			}
			local, err := openLocal(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer local.Close()

			export, apiErr := local.sessions.Export(cmd.Context(), localUserID, days)
			if apiErr != nil {
				return apiErr
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if format == "csv" {
				return service.WriteSessionsCSV(w, export.Sessions)
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(export)
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "number of days, today included")
	cmd.Flags().StringVar(&format, "format", "json", "json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.OpenSQLite(opts.dbPath)
			if err != nil {
				return err
			}
			defer database.Close()

			source := db.MigrationSource(opts.migrationsDir)
			if !statusOnly {
				if err := db.RunMigrations(database, source); err != nil {
					return err
				}
			}
			statuses, err := db.MigrationStatus(database, source)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range statuses {
				state := "pending"
				if m.Applied {
					state = "applied"
				}
				fmt.Fprintf(out, "%-8s %s\n", state, m.Name)
			}
			if !statusOnly {
				fmt.Fprintf(out, "migrations applied to %s\n", opts.dbPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "list migrations without applying them")
	return cmd
}
