// Command vizlab-logs compiles the raw JSONL journals of recorded sessions
// into human-readable transcripts, against whichever storage backend the
// VIZLAB_* environment selects.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vizlab/internal/compilelog"
	"vizlab/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "vizlab-logs <session_id>|all",
		Short: "Compile session journals into readable logs",
		Long: `Compile the raw events.jsonl and chat.jsonl journals of one session
(or every session) into log.txt, per-problem event logs, and chat
transcripts, written back next to the journals.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := zap.NewNop()
			if verbose {
				var err error
				if log, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}
			store, err := storage.Open(cmd.Context())
			if err != nil {
				return err
			}
			compiler := compilelog.New(store, log)

			if args[0] == "all" {
				results, err := compiler.CompileAll(cmd.Context())
				if err != nil {
					return err
				}
				for sid, res := range results {
					printResult(cmd, sid, res)
				}
				return nil
			}

			res, err := compiler.CompileSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printResult(cmd, args[0], res)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func printResult(cmd *cobra.Command, sessionID string, res compilelog.Result) {
	if res.FullLog == "" {
		cmd.Printf("[!] %s: no events\n", sessionID)
	} else {
		cmd.Printf("[✓] %s: %s (%d problem logs)\n", sessionID, res.FullLog, len(res.ProblemLogs))
	}
	for _, p := range res.ChatLogs {
		cmd.Printf("[✓] %s: %s\n", sessionID, p)
	}
}
