package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"cortex/workspace/internal/logging"
	"cortex/workspace/internal/service"
	"cortex/workspace/internal/tui"
)

const writeGrace = 5 * time.Second

func newTimerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "timer",
		Short: "Run the pomodoro timer in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := opts.settingsStore().LoadSettings(cmd.Context())
			if err != nil {
				return err
			}

			local, err := openLocal(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer local.Close()

			// The alternate screen owns the terminal; logs go to a file when asked for.
			if logging.CurrentLevel() >= logging.LevelInfo {
				logFile, err := tea.LogToFile(filepath.Join(os.TempDir(), "cortex-timer.log"), appName)
				if err != nil {
					return err
				}
				defer logFile.Close()
			} else {
				logging.SetOutput(io.Discard)
				defer logging.SetOutput(os.Stderr)
			}

			timerModel, err := tui.New(tui.Options{
				Settings:    settings,
				Recorder:    service.NewSessionRecorder(local.sessions, localUserID),
				Bell:        os.Stderr,
				CallTimeout: writeGrace,
			})
			if err != nil {
				return err
			}

			if _, err := tea.NewProgram(timerModel, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
				return err
			}
			if !timerModel.Wait(writeGrace) {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: last session may not have been saved")
			}
			return nil
		},
	}
}
