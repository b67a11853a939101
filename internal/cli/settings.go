package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cortex/workspace/internal/service"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the timer settings",
	}
	cmd.AddCommand(newSettingsGetCmd(opts), newSettingsSetCmd(opts))
	return cmd
}

func newSettingsGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current settings as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := opts.settingsStore().LoadSettings(cmd.Context())
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(settings)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", opts.settingsPath, out)
			return nil
		},
	}
}

func newSettingsSetCmd(opts *rootOptions) *cobra.Command {
	var (
		work, shortBreak, longBreak, interval, volume int
		autoStart, sound                              bool
		theme                                         string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change individual settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var patch service.SettingsPatch
			if flags.Changed("work") {
				patch.WorkDurationMinutes = &work
			}
			if flags.Changed("short-break") {
				patch.ShortBreakMinutes = &shortBreak
			}
			if flags.Changed("long-break") {
				patch.LongBreakMinutes = &longBreak
			}
			if flags.Changed("interval") {
				patch.LongBreakInterval = &interval
			}
			if flags.Changed("auto-start") {
				patch.AutoStartNext = &autoStart
			}
			if flags.Changed("sound") {
				patch.SoundEnabled = &sound
			}
			if flags.Changed("volume") {
				patch.SoundVolume = &volume
			}
			if flags.Changed("theme") {
				patch.Theme = &theme
			}

			store := opts.settingsStore()
			current, err := store.LoadSettings(cmd.Context())
			if err != nil {
				return err
			}
			updated := patch.Apply(current)
			if err := store.SaveSettings(cmd.Context(), updated); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "saved: work=%dm short=%dm long=%dm interval=%d auto_start=%t sound=%t volume=%d theme=%s\n",
				updated.WorkDurationMinutes, updated.ShortBreakMinutes, updated.LongBreakMinutes,
				updated.LongBreakInterval, updated.AutoStartNext, updated.SoundEnabled,
				updated.SoundVolume, updated.Theme)
			return nil
		},
	}
	cmd.Flags().IntVar(&work, "work", 25, "work session minutes (1-120)")
	cmd.Flags().IntVar(&shortBreak, "short-break", 5, "short break minutes (1-120)")
	cmd.Flags().IntVar(&longBreak, "long-break", 15, "long break minutes (1-120)")
	cmd.Flags().IntVar(&interval, "interval", 4, "work sessions before a long break")
	cmd.Flags().BoolVar(&autoStart, "auto-start", false, "start the next session automatically")
	cmd.Flags().BoolVar(&sound, "sound", true, "ring the bell when a session ends")
	cmd.Flags().IntVar(&volume, "volume", 50, "tone volume (0-100)")
	cmd.Flags().StringVar(&theme, "theme", "classic", "colour theme")
	return cmd
}
