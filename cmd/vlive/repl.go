package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Paranoid-AF/vlive/command"
	"github.com/Paranoid-AF/vlive/results"
	"github.com/Paranoid-AF/vlive/session"
)

const prompt = "> "

const replHelp = `commands:
  :decl std=<name> [target=..] [loc=..] [in=N] [out=N] [inst]
               import a standard component
  :list        list results
  :show        print the selected result
  :select N    select result N
  :rm N        remove result N
  :clear       clear the log
  :status      print the last status value
  :open        connect, or reconnect after a disconnect
  :quit        exit
anything else is sent for evaluation
`

func newReplCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepl(cmd.Context(), *flags)
		},
	}
}

func runRepl(ctx context.Context, flags globalFlags) error {
	editor, err := NewEditor()
	if err != nil {
		return err
	}
	defer editor.Close()

	sess, err := newSession(flags, &textView{out: editor})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Run(ctx)
	})
	g.Go(func() error {
		defer sess.Close()
		// A signal ends the session; closing the tty unblocks ReadLine.
		stop := context.AfterFunc(ctx, editor.Close)
		defer stop()

		editor.Print("vlive repl, :help for commands\n")
		r := &repl{sess: sess, out: editor}
		r.open(ctx)
		for {
			line, err := editor.ReadLine(prompt)
			if errors.Is(err, ErrInterrupt) {
				continue
			}
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if r.exec(ctx, line) {
				return nil
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type repl struct {
	sess *session.Session
	out  printer
}

// exec runs one input line and reports whether the repl should exit.
func (r *repl) exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ":") {
		r.check(r.sess.SubmitEval(line))
		return false
	}

	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	switch name {
	case ":quit", ":q":
		return true
	case ":help", ":h":
		r.out.Print(replHelp)
	case ":open":
		r.open(ctx)
	case ":decl":
		decl, err := parseDeclArgs(args)
		if err != nil {
			r.check(err)
			return false
		}
		r.check(r.sess.SubmitDeclaration(decl))
	case ":list", ":ls":
		entries, err := r.sess.Entries()
		if err != nil {
			r.check(err)
			return false
		}
		cur, _, _ := r.sess.Current()
		r.out.Print(formatEntries(entries, cur.Ref))
	case ":show":
		cur, ok, err := r.sess.Current()
		switch {
		case err != nil:
			r.check(err)
		case !ok:
			r.out.Print("nothing selected\n")
		default:
			r.out.Print(formatEntry(cur, true))
		}
	case ":select", ":rm":
		ref, err := parseRef(args)
		if err != nil {
			r.check(err)
			return false
		}
		if name == ":select" {
			r.check(r.sess.Select(ref))
		} else {
			r.check(r.sess.Remove(ref))
		}
	case ":clear":
		r.check(r.sess.ClearLog())
	case ":status":
		if v, fresh := r.sess.Status(); fresh {
			r.out.Print("status: " + v + "\n")
		} else {
			r.out.Print("status: unknown\n")
		}
	default:
		r.out.Print(fmt.Sprintf("unknown command %s, :help for commands\n", name))
	}
	return false
}

func (r *repl) open(ctx context.Context) {
	if err := r.sess.Open(ctx); err != nil {
		r.check(err)
	}
}

func (r *repl) check(err error) {
	if err != nil {
		r.out.Print("error: " + err.Error() + "\n")
	}
}

// parseDeclArgs parses the key=value arguments of :decl.
func parseDeclArgs(args []string) (command.Declaration, error) {
	var decl command.Declaration
	for _, arg := range args {
		key, value, hasValue := strings.Cut(arg, "=")
		if !hasValue {
			if key == "inst" || key == "instantiate" {
				decl.Instantiate = true
				continue
			}
			return decl, fmt.Errorf("expected key=value, got %q", arg)
		}
		var err error
		switch key {
		case "std":
			decl.Standard = value
		case "target":
			decl.Target = value
		case "loc":
			decl.Location = value
		case "in":
			decl.InputWidth, err = command.ParseWidth("input", value)
		case "out":
			decl.OutputWidth, err = command.ParseWidth("output", value)
		default:
			return decl, fmt.Errorf("unknown declaration field %q", key)
		}
		if err != nil {
			return decl, err
		}
	}
	return decl, decl.Validate()
}

func parseRef(args []string) (results.Ref, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one result number")
	}
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid result number %q", args[0])
	}
	return results.Ref(n), nil
}
