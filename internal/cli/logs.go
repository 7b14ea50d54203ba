package cli

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexander-akhmetov/mat/internal/progress"
)

var (
	logsFollow bool
	logsList   bool
	logsRecent int
	logsDir    string
)

var logsCmd = &cobra.Command{
	Use:   "logs [project]",
	Short: "Show build logs",
	Long: `Show build logs from the logs directory (~/.local/state/mat/logs/ by
default, logs_dir in config).

Options:
  --list, -l       List recent log files
  --follow, -f     Tail the active or most recent log file
  --recent N       Show last N log files (default: 10)

Examples:
  mat logs            # Show the most recent build log
  mat logs todo-app   # Show the most recent log for a project
  mat logs -l         # List recent logs
  mat logs -f         # Follow the running build`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output in real-time")
	logsCmd.Flags().BoolVarP(&logsList, "list", "l", false, "List recent log files")
	logsCmd.Flags().IntVar(&logsRecent, "recent", 10, "Number of recent logs to show")
	logsCmd.Flags().StringVar(&logsDir, "logs-dir", "", "Logs directory (default: from config)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir := logsDir
	if dir == "" {
		cfg, err := loadConfig("")
		if err != nil {
			return err
		}
		dir = cfg.LogsDir
	}

	project := ""
	if len(args) == 1 {
		project = args[0]
	}

	out := cmd.OutOrStdout()
	switch {
	case logsList:
		return listLogs(out, dir, project, logsRecent)
	case logsFollow:
		return followLogs(out, dir, project)
	default:
		return showLatestLog(out, dir, project)
	}
}

// listLogs lists recent log files.
func listLogs(out io.Writer, dir, project string, recent int) error {
	logs, err := progress.FindLogs(dir, project)
	if err != nil {
		return fmt.Errorf("failed to find logs: %w", err)
	}

	if len(logs) == 0 {
		fmt.Fprintln(out, "No log files found.")
		fmt.Fprintf(out, "Log directory: %s\n", dir)
		return nil
	}

	fmt.Fprintf(out, "Recent log files (showing %d):\n", min(recent, len(logs)))
	fmt.Fprintln(out, strings.Repeat("-", 60))

	for i, lf := range logs {
		if i >= recent {
			break
		}
		status := ""
		if lf.IsActive {
			status = " [ACTIVE]"
		}
		fmt.Fprintf(out, "  %s  %-30s%s\n",
			lf.Timestamp.Format("2006-01-02 15:04:05"),
			lf.Project,
			status,
		)
		fmt.Fprintf(out, "    %s\n", lf.Path)
	}

	return nil
}

// showLatestLog prints the most recent log file.
func showLatestLog(out io.Writer, dir, project string) error {
	lf, err := progress.FindLatestLog(dir, project)
	if err != nil {
		return fmt.Errorf("failed to find log: %w", err)
	}
	if lf == nil {
		if project != "" {
			fmt.Fprintf(out, "No logs found for project: %s\n", project)
		} else {
			fmt.Fprintln(out, "No logs found.")
		}
		fmt.Fprintln(out, "Tip: Use 'mat logs -l' to list all logs")
		return nil
	}

	fmt.Fprintf(out, "Log for %s (%s):\n", lf.Project, lf.Timestamp.Format("2006-01-02 15:04:05"))
	if lf.IsActive {
		fmt.Fprintln(out, "[ACTIVE BUILD]")
	}
	fmt.Fprintln(out, strings.Repeat("-", 60))

	data, err := os.ReadFile(lf.Path)
	if err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// followLogs tails the active or most recent log file.
func followLogs(out io.Writer, dir, project string) error {
	logs, err := progress.FindLogs(dir, project)
	if err != nil {
		return fmt.Errorf("failed to find logs: %w", err)
	}
	if len(logs) == 0 {
		fmt.Fprintln(out, "No logs found to follow.")
		return nil
	}

	lf := logs[0]
	for _, l := range logs {
		if l.IsActive {
			lf = l
			break
		}
	}
	if lf.IsActive {
		fmt.Fprintf(out, "Following active build: %s\n", lf.Project)
	} else {
		fmt.Fprintf(out, "No active build found. Following most recent log: %s\n", lf.Project)
	}
	fmt.Fprintln(out, strings.Repeat("-", 60))

	tail := exec.Command("tail", "-f", lf.Path)
	tail.Stdout = out
	tail.Stderr = os.Stderr

	if err := tail.Start(); err != nil {
		return fmt.Errorf("failed to start tail: %w", err)
	}
	return tail.Wait()
}
