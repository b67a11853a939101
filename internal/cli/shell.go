package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"cortex/workspace/internal/logging"
)

func newShellCmd(opts *rootOptions) *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run cortex commands interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveShell(cmd.OutOrStdout(), prompt, opts)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "cortex> ", "prompt string")
	return cmd
}

func runInteractiveShell(out io.Writer, prompt string, opts *rootOptions) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), "cortex-shell.history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(out, "Interactive shell. Type 'help' for examples, 'exit' to leave.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}
		if !runShellLine(out, line, opts) {
			return nil
		}
	}
}

// runShellLine executes one shell input line and reports whether the shell
// should keep reading.
func runShellLine(out io.Writer, line string, opts *rootOptions) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return true
	case "exit", "quit":
		fmt.Fprintln(out, "Bye!")
		return false
	case "help":
		printShellHelp(out)
		return true
	}

	tokens, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintf(out, "parse error: %v\n", err)
		return true
	}
	if len(tokens) == 0 {
		return true
	}
	switch tokens[0] {
	case "log":
		if err := handleShellLog(out, tokens[1:]); err != nil {
			fmt.Fprintf(out, "log: %v\n", err)
		}
		return true
	case "shell":
		fmt.Fprintln(out, "already in the shell")
		return true
	}

	if err := executeArgs(out, tokens, opts); err != nil {
		fmt.Fprintf(out, "command error: %v\n", err)
	}
	return true
}

// executeArgs runs args on a fresh command tree that inherits the shell's
// database, settings file and log level. Flags on the line take precedence.
func executeArgs(out io.Writer, args []string, opts *rootOptions) error {
	root := NewRootCmd()
	inherited := []string{
		"--db=" + opts.dbPath,
		"--settings=" + opts.settingsPath,
		"--log-level=" + logging.CurrentLevel().String(),
	}
	root.SetArgs(append(inherited, args...))
	root.SetOut(out)
	root.SetErr(out)
	return root.Execute()
}

func handleShellLog(out io.Writer, args []string) error {
	fs := pflag.NewFlagSet("log", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		vcount int
		level  string
	)
	fs.CountVarP(&vcount, "verbose", "v", "increase verbosity")
	fs.StringVar(&level, "level", "", "error|warn|info|debug")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case level != "":
		parsed, err := logging.ParseLevel(level)
		if err != nil {
			return err
		}
		logging.SetLevel(parsed)
	case vcount > 0:
		logging.SetVerbosity(vcount)
	}
	fmt.Fprintf(out, "log level: %s\n", logging.CurrentLevel())
	return nil
}

func printShellHelp(out io.Writer) {
	fmt.Fprintln(out, `Examples:
  settings get                    # show timer settings
  settings set --work 50          # change a setting
  sessions --limit 10             # recent sessions
  stats --days 30                 # summary for the last 30 days
  export --format csv -o out.csv  # export sessions
  log -vv | log --level warn      # change log verbosity
  exit / quit                     # leave the shell`)
}
