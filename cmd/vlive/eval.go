package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paranoid-AF/vlive/session"
)

func newEvalCmd(flags *globalFlags) *cobra.Command {
	var (
		expr    string
		idle    time.Duration
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "eval [file|-]",
		Short: "Submit source for evaluation and print what comes back",
		Long: `Submit source for evaluation and print the log and results that come back.
The source is read from the file argument, from stdin when it is "-", or
from --expr. The command exits once the evaluator has been quiet for --idle.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd.InOrStdin(), expr, args)
			if err != nil {
				return err
			}
			return oneShot(cmd.Context(), *flags, cmd.OutOrStdout(), idle, timeout, func(s *session.Session) error {
				return s.SubmitEval(src)
			})
		},
	}
	cmd.Flags().StringVarP(&expr, "expr", "e", "", "source text to evaluate")
	cmd.Flags().DurationVar(&idle, "idle", time.Second, "exit after no output for this long")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "exit after this long regardless of output")
	return cmd
}

// readSource picks the source from --expr, a file, or stdin for "-".
func readSource(stdin io.Reader, expr string, args []string) (string, error) {
	switch {
	case expr != "" && len(args) > 0:
		return "", fmt.Errorf("use either --expr or a file argument, not both")
	case expr != "":
		return expr, nil
	case len(args) == 0:
		return "", fmt.Errorf("nothing to evaluate: pass a file, - for stdin, or --expr")
	}

	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	src := strings.TrimRight(string(data), "\n")
	if strings.TrimSpace(src) == "" {
		return "", fmt.Errorf("source %s is empty", args[0])
	}
	return src, nil
}
