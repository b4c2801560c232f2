package event

import (
	"fmt"
	"log/slog"

	"github.com/Paranoid-AF/vlive/results"
)

// LogSink receives log fragments in arrival order.
type LogSink interface {
	AppendLog(text string)
}

// ResultSink stores evaluation results. *results.Cache satisfies it.
type ResultSink interface {
	Upsert(displayText, value string) results.Ref
	Select(ref results.Ref) error
}

// StatusSink holds the latest status value.
type StatusSink interface {
	SetStatus(value string)
}

// Router dispatches each parsed event to exactly one sink.
type Router struct {
	Log     LogSink
	Results ResultSink
	Status  StatusSink
	// Report receives every parse and dispatch error. It may be nil.
	Report func(error)
}

// Route parses raw and dispatches the event. Errors are reported and
// returned; they never stop the router from handling later frames.
func (r *Router) Route(raw string) (Event, error) {
	ev, err := Parse(raw)
	if err != nil {
		r.report(err)
		return nil, err
	}
	if err := r.Dispatch(ev); err != nil {
		r.report(err)
		return ev, err
	}
	return ev, nil
}

// Dispatch hands ev to its sink. An EvalResult is upserted and the
// upserted entry is selected, whether it was inserted or replaced.
func (r *Router) Dispatch(ev Event) error {
	switch ev := ev.(type) {
	case Log:
		r.Log.AppendLog(ev.Text)
	case EvalResult:
		ref := r.Results.Upsert(ev.DisplayText, ev.Value)
		if err := r.Results.Select(ref); err != nil {
			return fmt.Errorf("select %q: %w", ev.DisplayText, err)
		}
	case Frequency:
		r.Status.SetStatus(ev.Value)
	default:
		return fmt.Errorf("event: unhandled event type %T", ev)
	}
	return nil
}

func (r *Router) report(err error) {
	if r.Report != nil {
		r.Report(err)
		return
	}
	slog.Warn("dropping inbound frame", "error", err)
}
