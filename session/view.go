package session

import (
	"github.com/Paranoid-AF/vlive/results"
	"github.com/Paranoid-AF/vlive/transport"
)

// View receives rendering callbacks. Every method is called from the
// session's event loop, one at a time, so implementations need no locking
// against each other. They must not call the session's blocking methods
// (Select, Remove, ClearLog, Entries, Current, Close).
type View interface {
	// LogAppended reports a log fragment, verbatim.
	LogAppended(text string)
	// LogCleared reports that the log should be emptied.
	LogCleared()
	// EntriesChanged reports the full result list after any change.
	EntriesChanged(entries []results.Entry)
	// SelectionChanged reports the selected entry; ok is false when the
	// selection became empty.
	SelectionChanged(entry results.Entry, ok bool)
	// StatusChanged reports a new status value.
	StatusChanged(value string)
	// ConnectionChanged reports a transport lifecycle transition.
	ConnectionChanged(state transport.State)
	// Error reports a problem that did not stop the session.
	Error(err error)
}

// NopView ignores every callback. Embed it to implement only part of View.
type NopView struct{}

func (NopView) LogAppended(string) {}
func (NopView) LogCleared() {}
func (NopView) EntriesChanged([]results.Entry) {}
func (NopView) SelectionChanged(results.Entry, bool) {}
func (NopView) StatusChanged(string) {}
func (NopView) ConnectionChanged(transport.State) {}
func (NopView) Error(error) {}
