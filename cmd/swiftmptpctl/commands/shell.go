package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const shellPrompt = "swiftmptpctl> "

// shellCommands lists the available commands for the interactive shell help output.
var shellCommands = []struct {
	name string
	desc string
}{
	{"ports list", "List every port and whether it is bound"},
	{"ports watch", "Poll the port table until interrupted"},
	{"sockets list", "List every bound or connected socket"},
	{"config dump", "Print the effective daemon configuration"},
	{"version", "Print build information"},
	{"help", "Show this help message"},
	{"exit / quit", "Leave the interactive shell"},
}

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive swiftmptpctl shell",
		Long:  "Launches a simple REPL that dispatches swiftmptpctl subcommands. Type 'help', 'exit', or 'quit'.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd.Root())
		},
	}
}

// runShell reads one line at a time from stdin and resolves it against
// the command tree rooted at rootCmd, invoking the matched leaf command
// directly rather than re-parsing the whole tree on every line.
func runShell(root *cobra.Command) error {
	printShellBanner()

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print(shellPrompt)

		raw, readErr := reader.ReadString('\n')
		line := strings.TrimSpace(raw)

		switch {
		case line == "exit" || line == "quit":
			return nil
		case line == "help" || line == "?":
			printShellHelp()
		case line != "":
			dispatchShellLine(root, line)
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}

			return fmt.Errorf("read stdin: %w", readErr)
		}
	}
}

// dispatchShellLine resolves line's first tokens to a registered leaf
// command via Cobra's own command tree (Find) and runs it directly,
// rather than replaying the line through the root command's Execute.
func dispatchShellLine(root *cobra.Command, line string) {
	fields := strings.Fields(line)

	target, remaining, err := root.Find(fields)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return
	}

	if target == root || target.RunE == nil {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q (type 'help')\n", fields[0])
		return
	}

	if err := target.Flags().Parse(remaining); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return
	}

	target.SetContext(context.Background())

	if err := target.RunE(target, target.Flags().Args()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
}

// printShellBanner prints a welcome message when the shell starts.
func printShellBanner() {
	fmt.Println("swiftmptpctl interactive shell. Type 'help' for available commands, 'exit' to quit.")
	fmt.Println()
}

// printShellHelp prints a formatted list of available shell commands.
func printShellHelp() {
	fmt.Println("Available commands:")
	fmt.Println()

	for _, cmd := range shellCommands {
		fmt.Printf("  %-30s %s\n", cmd.name, cmd.desc)
	}

	fmt.Println()
}
