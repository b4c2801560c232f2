package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Paranoid-AF/vlive"
	"github.com/Paranoid-AF/vlive/results"
	"github.com/Paranoid-AF/vlive/session"
	"github.com/Paranoid-AF/vlive/transport"
)

// resolveURL applies --url over $VLIVE_URL over the config file.
func resolveURL(flags globalFlags, cfg *vlive.Config) string {
	if flags.url != "" {
		return flags.url
	}
	return vlive.ResolveServerURL(cfg)
}

// newSession builds a session from configuration. The caller runs and opens it.
func newSession(flags globalFlags, view session.View) (*session.Session, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	for _, w := range vlive.ValidateConfig(cfg) {
		slog.Warn("config warning", "warning", w)
	}

	url := resolveURL(flags, cfg)
	conn := transport.New(url,
		transport.WithHandshakeTimeout(vlive.ResolveHandshakeTimeout(cfg)),
		transport.WithWriteTimeout(vlive.ResolveWriteTimeout(cfg)),
		transport.WithOrigin(cfg.Server.Origin),
	)

	opts := []session.Option{
		session.WithPollInterval(vlive.ResolvePollInterval(cfg)),
		session.WithStaleAfter(vlive.ResolveStaleAfter(cfg)),
	}
	if cfg.Results.Snapshot {
		opts = append(opts, session.WithSnapshot(vlive.SnapshotPath()))
	}
	slog.Debug("session configured", "url", url)
	return session.New(conn, view, opts...), nil
}

// activityView wraps a view and signals every callback on activity, so a
// one-shot command can wait for the evaluator to go quiet.
type activityView struct {
	session.View
	activity chan struct{}
}

func newActivityView(v session.View) *activityView {
	return &activityView{View: v, activity: make(chan struct{}, 1)}
}

func (v *activityView) touch() {
	select {
	case v.activity <- struct{}{}:
	default:
	}
}

func (v *activityView) LogAppended(text string) {
	v.View.LogAppended(text)
	v.touch()
}

func (v *activityView) SelectionChanged(entry results.Entry, ok bool) {
	v.View.SelectionChanged(entry, ok)
	v.touch()
}

// oneShot connects, runs submit and keeps the session alive until no log
// or result has arrived for idle, or until timeout has passed.
func oneShot(ctx context.Context, flags globalFlags, out io.Writer, idle, timeout time.Duration, submit func(*session.Session) error) error {
	view := newActivityView(&textView{out: writerPrinter{w: out}, quiet: true})
	sess, err := newSession(flags, view)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Run(ctx)
	})
	g.Go(func() error {
		defer sess.Close()
		if err := sess.Open(ctx); err != nil {
			return err
		}
		if err := submit(sess); err != nil {
			return err
		}

		deadline := time.NewTimer(timeout)
		defer deadline.Stop()
		quiet := time.NewTimer(idle)
		defer quiet.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-deadline.C:
				slog.Debug("timed out waiting for results", "timeout", timeout)
				return nil
			case <-quiet.C:
				return nil
			case <-view.activity:
				quiet.Reset(idle)
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
