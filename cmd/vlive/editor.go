package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"unicode/utf8"

	"golang.org/x/term"
)

// ErrInterrupt is returned when the user presses Ctrl-C.
var ErrInterrupt = errors.New("interrupted")

const maxHistory = 200

// Editor is a minimal line editor with cursor tracking and input history.
// It reads from /dev/tty so it works even when stdout is redirected.
//
// Output from other goroutines goes through Print, which clears the line
// being edited, writes above it and redraws the prompt.
type Editor struct {
	tty       *os.File
	oldState  *term.State
	closeOnce sync.Once

	mu      sync.Mutex
	prompt  string
	buf     []byte
	pos     int // cursor byte offset into buf
	reading bool

	history []string
	hpos    int    // index into history while browsing; len(history) when not
	draft   []byte // line being typed before browsing started
}

// NewEditor opens /dev/tty and switches to raw mode.
func NewEditor() (*Editor, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/tty: %w", err)
	}

	old, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		tty.Close()
		return nil, fmt.Errorf("raw mode: %w", err)
	}

	return &Editor{tty: tty, oldState: old}, nil
}

// Close restores terminal state and closes the tty fd, which unblocks a
// pending ReadLine. It is safe to call more than once.
func (e *Editor) Close() {
	e.closeOnce.Do(func() {
		term.Restore(int(e.tty.Fd()), e.oldState)
		e.tty.Close()
	})
}

// Print writes s above the line being edited. Newlines become \r\n since
// raw mode disables the kernel's translation.
func (e *Editor) Print(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reading {
		fmt.Fprint(e.tty, "\r\x1b[K")
	}
	crlfWriter{w: e.tty}.Write([]byte(s))
	if e.reading {
		e.redraw()
	}
}

// ReadLine displays the prompt and reads one line. Non-empty lines are
// added to the history, browsed with the up and down arrows.
// Returns io.EOF when the user presses Ctrl-D on empty input.
func (e *Editor) ReadLine(prompt string) (string, error) {
	e.mu.Lock()
	e.prompt = prompt
	e.buf = e.buf[:0]
	e.pos = 0
	e.hpos = len(e.history)
	e.reading = true
	e.redraw()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.reading = false
		e.mu.Unlock()
	}()

	var esc [8]byte // buffer for escape sequences

	for {
		var b [1]byte
		if _, err := e.tty.Read(b[:]); err != nil {
			return "", err
		}

		// Multi-byte input is read before taking the lock so Print is
		// never held up by a slow escape sequence.
		var seq []byte
		switch {
		case b[0] == 27:
			n, _ := e.tty.Read(esc[:1])
			if n == 0 || esc[0] != '[' {
				continue
			}
			if n, _ = e.tty.Read(esc[1:2]); n == 0 {
				continue
			}
			seq = esc[:2]
			if esc[1] >= '1' && esc[1] <= '4' {
				e.tty.Read(esc[2:3]) // consume '~'
			}
		case b[0] >= 0xC0:
			ch := make([]byte, utf8RuneLen(b[0]))
			ch[0] = b[0]
			io.ReadFull(e.tty, ch[1:])
			seq = ch
		}

		e.mu.Lock()
		line, done, err := e.key(b[0], seq)
		if done {
			fmt.Fprint(e.tty, "\r\n")
			e.mu.Unlock()
			return line, err
		}
		e.redraw()
		e.mu.Unlock()
	}
}

// key applies one keypress. It reports done when the line is finished.
// Callers hold e.mu.
func (e *Editor) key(b byte, seq []byte) (line string, done bool, err error) {
	switch b {
	case 3: // Ctrl-C
		return "", true, ErrInterrupt

	case 4: // Ctrl-D
		if len(e.buf) == 0 {
			return "", true, io.EOF
		}

	case 13, 10: // Enter
		line = string(e.buf)
		e.remember(line)
		return line, true, nil

	case 127, 8: // Backspace / Ctrl-H
		if e.pos > 0 {
			_, size := prevRune(e.buf, e.pos)
			copy(e.buf[e.pos-size:], e.buf[e.pos:])
			e.buf = e.buf[:len(e.buf)-size]
			e.pos -= size
		}

	case 1: // Ctrl-A (Home)
		e.pos = 0

	case 5: // Ctrl-E (End)
		e.pos = len(e.buf)

	case 21: // Ctrl-U (clear line)
		e.buf = e.buf[:0]
		e.pos = 0

	case 27:
		if len(seq) == 2 {
			e.escape(seq[1])
		}

	default:
		if b < 32 {
			break
		}
		ch := seq
		if ch == nil {
			ch = []byte{b}
		}
		e.buf = append(e.buf, make([]byte, len(ch))...)
		copy(e.buf[e.pos+len(ch):], e.buf[e.pos:len(e.buf)-len(ch)])
		copy(e.buf[e.pos:], ch)
		e.pos += len(ch)
	}
	return "", false, nil
}

func (e *Editor) escape(c byte) {
	switch c {
	case 'A': // Up
		if e.hpos == 0 {
			return
		}
		if e.hpos == len(e.history) {
			e.draft = append(e.draft[:0], e.buf...)
		}
		e.hpos--
		e.setLine([]byte(e.history[e.hpos]))
	case 'B': // Down
		if e.hpos >= len(e.history) {
			return
		}
		e.hpos++
		if e.hpos == len(e.history) {
			e.setLine(e.draft)
		} else {
			e.setLine([]byte(e.history[e.hpos]))
		}
	case 'D': // Left
		if e.pos > 0 {
			_, size := prevRune(e.buf, e.pos)
			e.pos -= size
		}
	case 'C': // Right
		if e.pos < len(e.buf) {
			_, size := utf8.DecodeRune(e.buf[e.pos:])
			e.pos += size
		}
	case 'H', '1': // Home
		e.pos = 0
	case 'F', '4': // End
		e.pos = len(e.buf)
	case '3': // Delete
		if e.pos < len(e.buf) {
			_, size := utf8.DecodeRune(e.buf[e.pos:])
			copy(e.buf[e.pos:], e.buf[e.pos+size:])
			e.buf = e.buf[:len(e.buf)-size]
		}
	}
}

func (e *Editor) setLine(line []byte) {
	e.buf = append(e.buf[:0], line...)
	e.pos = len(e.buf)
}

func (e *Editor) remember(line string) {
	if line == "" {
		return
	}
	if n := len(e.history); n > 0 && e.history[n-1] == line {
		return
	}
	e.history = append(e.history, line)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
}

// redraw clears the current line and redraws prompt + buffer with cursor.
func (e *Editor) redraw() {
	// \r = carriage return, \x1b[K = clear to end of line
	fmt.Fprintf(e.tty, "\r\x1b[K%s%s", e.prompt, string(e.buf))

	if tail := utf8.RuneCount(e.buf[e.pos:]); tail > 0 {
		fmt.Fprintf(e.tty, "\x1b[%dD", tail)
	}
}

// prevRune returns the rune and byte size of the rune before pos.
func prevRune(buf []byte, pos int) (rune, int) {
	if pos <= 0 {
		return 0, 0
	}
	i := pos - 1
	for i > 0 && !utf8.RuneStart(buf[i]) {
		i--
	}
	return utf8.DecodeRune(buf[i:pos])
}

// utf8RuneLen returns the expected byte length of a UTF-8 sequence
// from its leading byte.
func utf8RuneLen(lead byte) int {
	switch {
	case lead < 0xC0:
		return 1
	case lead < 0xE0:
		return 2
	case lead < 0xF0:
		return 3
	}
	return 4
}
