package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paranoid-AF/vlive/command"
	"github.com/Paranoid-AF/vlive/session"
)

func newDeclareCmd(flags *globalFlags) *cobra.Command {
	var (
		decl    command.Declaration
		in, out string
		dryRun  bool
		idle    time.Duration
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "declare",
		Short: "Import a standard component into the session",
		Example: `  vlive declare --std led --target board --loc 0,0 --out 8
  vlive declare --std switch --in 4 --instantiate --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if decl.InputWidth, err = command.ParseWidth("input", in); err != nil {
				return err
			}
			if decl.OutputWidth, err = command.ParseWidth("output", out); err != nil {
				return err
			}
			if dryRun {
				cmds, err := decl.Commands()
				if err != nil {
					return err
				}
				for _, c := range cmds {
					fmt.Fprintln(cmd.OutOrStdout(), c)
				}
				return nil
			}
			if err := decl.Validate(); err != nil {
				return err
			}
			return oneShot(cmd.Context(), *flags, cmd.OutOrStdout(), idle, timeout, func(s *session.Session) error {
				return s.SubmitDeclaration(decl)
			})
		},
	}
	cmd.Flags().StringVar(&decl.Standard, "std", "", "standard component name (required)")
	cmd.Flags().StringVar(&decl.Target, "target", "", "target the component is bound to")
	cmd.Flags().StringVar(&decl.Location, "loc", "", "location of the component")
	cmd.Flags().StringVar(&in, "in", "", "input port width, empty or 0 for none")
	cmd.Flags().StringVar(&out, "out", "", "output port width, empty or 0 for none")
	cmd.Flags().BoolVar(&decl.Instantiate, "instantiate", false, "also instantiate the module")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the commands instead of sending them")
	cmd.Flags().DurationVar(&idle, "idle", time.Second, "exit after no output for this long")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "exit after this long regardless of output")
	return cmd
}
