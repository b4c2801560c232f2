// Package command builds the text commands sent to a live evaluator.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Command prefixes understood by the evaluator. The evaluator splits each
// frame at the first ':' and ignores prefixes it does not know.
const (
	EvalPrefix = "eval:"
	FreqPrefix = "freq:"
	PullPrefix = "pull:"
)

// Eval submits src verbatim for evaluation.
func Eval(src string) string {
	return EvalPrefix + src
}

// Frequency requests a status snapshot.
func Frequency() string {
	return FreqPrefix
}

// Pull asks the evaluator to flush buffered output to the client.
func Pull() string {
	return PullPrefix
}

// ErrMissingStandard is returned for a declaration without a standard name.
var ErrMissingStandard = errors.New("declaration: standard is required")

// InvalidWidthError reports a port width that is negative or not a number.
type InvalidWidthError struct {
	Port  string
	Value string
}

func (e *InvalidWidthError) Error() string {
	return fmt.Sprintf("declaration: invalid %s width %q: must be a non-negative integer", e.Port, e.Value)
}

// ParseWidth converts user-entered width text for port into a width.
// Surrounding whitespace is ignored; an empty string means 0.
func ParseWidth(port, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	w, err := strconv.Atoi(s)
	if err != nil || w < 0 {
		return 0, &InvalidWidthError{Port: port, Value: s}
	}
	return w, nil
}

// Declaration describes a standard-library module to import into the
// running program.
type Declaration struct {
	// Standard names the component (e.g. "led"). It becomes the instance
	// name, and, capitalized, the module name.
	Standard string
	// Target and Location select where the component is realized.
	Target   string
	Location string
	// InputWidth and OutputWidth are the bit widths of the in_ and out_
	// ports. A width of 0 omits the port.
	InputWidth  int
	OutputWidth int
	// Instantiate adds a second command that instantiates the module.
	Instantiate bool
}

// ModuleName returns Standard with its first character upper-cased.
func (d Declaration) ModuleName() string {
	r, size := utf8.DecodeRuneInString(d.Standard)
	if size == 0 {
		return ""
	}
	return string(unicode.ToUpper(r)) + d.Standard[size:]
}

// Validate reports the first problem that would prevent encoding d.
func (d Declaration) Validate() error {
	if d.Standard == "" {
		return ErrMissingStandard
	}
	if d.InputWidth < 0 {
		return &InvalidWidthError{Port: "input", Value: strconv.Itoa(d.InputWidth)}
	}
	if d.OutputWidth < 0 {
		return &InvalidWidthError{Port: "output", Value: strconv.Itoa(d.OutputWidth)}
	}
	return nil
}

// Source renders the module declaration as source text.
func (d Declaration) Source() (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "(*__std=%q, __target=%q, __loc=%q*)", d.Standard, d.Target, d.Location)

	var ports []string
	if d.InputWidth > 0 {
		ports = append(ports, "in_")
	}
	if d.OutputWidth > 0 {
		ports = append(ports, "out_")
	}
	fmt.Fprintf(&b, "module %s(%s);", d.ModuleName(), strings.Join(ports, ","))

	if d.InputWidth > 0 {
		b.WriteString("input  wire" + vector(d.InputWidth) + " in_;")
	}
	if d.OutputWidth > 0 {
		b.WriteString("output wire" + vector(d.OutputWidth) + " out_;")
	}
	b.WriteString("endmodule")
	return b.String(), nil
}

// Instance renders the instantiation of the declared module.
func (d Declaration) Instance() string {
	return d.ModuleName() + " " + d.Standard + "();"
}

// Commands encodes d as the eval commands to send, in order.
// Nothing is returned when d is invalid.
func (d Declaration) Commands() ([]string, error) {
	src, err := d.Source()
	if err != nil {
		return nil, err
	}
	cmds := []string{Eval(src)}
	if d.Instantiate {
		cmds = append(cmds, Eval(d.Instance()))
	}
	return cmds, nil
}

// vector returns the range suffix for a wire of width w (w > 0).
func vector(w int) string {
	if w == 1 {
		return ""
	}
	return "[" + strconv.Itoa(w-1) + ":0]"
}
