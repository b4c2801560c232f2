package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/Paranoid-AF/vlive/results"
	"github.com/Paranoid-AF/vlive/session"
	"github.com/Paranoid-AF/vlive/transport"
)

// crlfWriter converts \n to \r\n, needed because raw mode disables the
// kernel's NL→CRNL translation.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	replaced := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	_, err := c.w.Write(replaced)
	return len(p), err // report original length to caller
}

// printer is where a view writes. *Editor keeps the prompt intact.
type printer interface {
	Print(s string)
}

type writerPrinter struct {
	w io.Writer
}

func (p writerPrinter) Print(s string) {
	io.WriteString(p.w, s)
}

// textView renders session callbacks as plain lines.
type textView struct {
	out printer
	// quiet suppresses connection and status lines.
	quiet bool
}

var _ session.View = (*textView)(nil)

func (v *textView) LogAppended(text string) {
	v.out.Print(withNewline(text))
}

func (v *textView) LogCleared() {
	if !v.quiet {
		v.out.Print("-- log cleared --\n")
	}
}

func (v *textView) EntriesChanged([]results.Entry) {}

func (v *textView) SelectionChanged(entry results.Entry, ok bool) {
	if !ok {
		return
	}
	v.out.Print(formatEntry(entry, true))
}

func (v *textView) StatusChanged(value string) {
	if !v.quiet {
		v.out.Print("status: " + value + "\n")
	}
}

func (v *textView) ConnectionChanged(state transport.State) {
	if !v.quiet {
		v.out.Print("* connection " + state.String() + "\n")
	}
}

func (v *textView) Error(err error) {
	v.out.Print("error: " + err.Error() + "\n")
}

// formatEntry renders one result. The value is indented under its display
// text when full is set.
func formatEntry(e results.Entry, full bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s\n", e.Ref, e.DisplayText)
	if full && e.Value != "" {
		for _, line := range strings.Split(strings.TrimRight(e.Value, "\n"), "\n") {
			b.WriteString("    ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// formatEntries renders the result list, marking the selected entry.
func formatEntries(entries []results.Entry, selected results.Ref) string {
	if len(entries) == 0 {
		return "no results\n"
	}
	var b strings.Builder
	for _, e := range entries {
		mark := "  "
		if e.Ref == selected {
			mark = "* "
		}
		b.WriteString(mark)
		b.WriteString(formatEntry(e, false))
	}
	return b.String()
}

func withNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
