package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paranoid-AF/vlive/command"
	"github.com/Paranoid-AF/vlive/evaltest"
	"github.com/Paranoid-AF/vlive/results"
)

// execute runs the root command with an isolated config directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("VLIVE_CONFIG_DIR", t.TempDir())
	t.Setenv("VLIVE_URL", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseDeclArgs(t *testing.T) {
	got, err := parseDeclArgs([]string{"std=led", "target=board", "loc=0,0", "in=0", "out=8", "inst"})
	require.NoError(t, err)
	want := command.Declaration{
		Standard:    "led",
		Target:      "board",
		Location:    "0,0",
		OutputWidth: 8,
		Instantiate: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseDeclArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDeclArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing standard", []string{"out=1"}},
		{"bad width", []string{"std=led", "out=x"}},
		{"negative width", []string{"std=led", "in=-2"}},
		{"unknown field", []string{"std=led", "colour=red"}},
		{"bare word", []string{"std=led", "now"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDeclArgs(tt.args)
			assert.Error(t, err)
		})
	}

	_, err := parseDeclArgs([]string{"std=led", "out=x"})
	var widthErr *command.InvalidWidthError
	require.True(t, errors.As(err, &widthErr))
	assert.Equal(t, "output", widthErr.Port)
}

func TestParseRef(t *testing.T) {
	ref, err := parseRef([]string{"3"})
	require.NoError(t, err)
	assert.Equal(t, results.Ref(3), ref)

	for _, args := range [][]string{nil, {"0"}, {"x"}, {"1", "2"}} {
		_, err := parseRef(args)
		assert.Error(t, err, "args %q", args)
	}
}

func TestFormatEntries(t *testing.T) {
	entries := []results.Entry{
		{Ref: 1, DisplayText: "foo", Value: "1"},
		{Ref: 2, DisplayText: "bar", Value: "2"},
	}
	got := formatEntries(entries, 2)
	want := "  [1] foo\n* [2] bar\n"
	assert.Equal(t, want, got)
	assert.Equal(t, "no results\n", formatEntries(nil, 0))
}

func TestFormatEntryIndentsValue(t *testing.T) {
	got := formatEntry(results.Entry{Ref: 4, DisplayText: "x", Value: "a\nb\n"}, true)
	assert.Equal(t, "[4] x\n    a\n    b\n", got)
}

func TestReadSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "design.v")
	require.NoError(t, os.WriteFile(path, []byte("module m; endmodule\n"), 0o644))

	src, err := readSource(nil, "", []string{path})
	require.NoError(t, err)
	assert.Equal(t, "module m; endmodule", src)

	src, err = readSource(strings.NewReader("1+1\n"), "", []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "1+1", src)

	src, err = readSource(nil, "2+2", nil)
	require.NoError(t, err)
	assert.Equal(t, "2+2", src)

	_, err = readSource(nil, "", nil)
	assert.Error(t, err)
	_, err = readSource(nil, "x", []string{path})
	assert.Error(t, err)
	_, err = readSource(strings.NewReader("\n\n"), "", []string{"-"})
	assert.Error(t, err)
}

func TestDeclareDryRun(t *testing.T) {
	out, err := execute(t, "declare", "--std", "led", "--out", "8", "--instantiate", "--dry-run")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "eval:"))
	assert.Contains(t, lines[0], "module Led(out_);")
	assert.Equal(t, "eval:Led led();", lines[1])
}

func TestDeclareRejectsBadWidth(t *testing.T) {
	_, err := execute(t, "declare", "--std", "led", "--in", "wide", "--dry-run")
	var widthErr *command.InvalidWidthError
	assert.True(t, errors.As(err, &widthErr))
}

func TestEvalAgainstServer(t *testing.T) {
	srv := evaltest.NewServer(evaltest.Echo("ok"))
	defer srv.Close()

	out, err := execute(t, "--url", srv.URL(), "eval", "-e", "foo", "--idle", "300ms", "--timeout", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] foo\n    foo\n")
	assert.Contains(t, srv.Received(), "eval:foo")
}

func TestEvalDialFailure(t *testing.T) {
	_, err := execute(t, "--url", "ws://127.0.0.1:1/ws", "eval", "-e", "foo")
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "--url", "ws://example.test/ws", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "# effective url: ws://example.test/ws")
	assert.Contains(t, out, "[server]")
	assert.Contains(t, out, `url = "ws://localhost:11111/ws"`)
}
