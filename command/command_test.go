package command

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSimpleCommands(t *testing.T) {
	if got := Eval("wire x;"); got != "eval:wire x;" {
		t.Errorf("Eval = %q", got)
	}
	if got := Eval(""); got != "eval:" {
		t.Errorf("Eval(empty) = %q", got)
	}
	if got := Frequency(); got != "freq:" {
		t.Errorf("Frequency = %q", got)
	}
	if got := Pull(); got != "pull:" {
		t.Errorf("Pull = %q", got)
	}
}

func TestDeclarationOutputOnly(t *testing.T) {
	d := Declaration{Standard: "led", Target: "sw", Location: "local", InputWidth: 0, OutputWidth: 1}
	got, err := d.Commands()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		`eval:(*__std="led", __target="sw", __loc="local"*)module Led(out_);output wire out_;endmodule`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDeclarationVectorPorts(t *testing.T) {
	d := Declaration{Standard: "pad", Target: "de10", Location: "remote", InputWidth: 4, OutputWidth: 4}
	got, err := d.Source()
	if err != nil {
		t.Fatal(err)
	}
	want := `(*__std="pad", __target="de10", __loc="remote"*)module Pad(in_,out_);input  wire[3:0] in_;output wire[3:0] out_;endmodule`
	if got != want {
		t.Errorf("source mismatch\nwant %s\ngot  %s", want, got)
	}
}

func TestDeclarationInputOnlySingleBit(t *testing.T) {
	d := Declaration{Standard: "clock", InputWidth: 1}
	got, err := d.Source()
	if err != nil {
		t.Fatal(err)
	}
	want := `(*__std="clock", __target="", __loc=""*)module Clock(in_);input  wire in_;endmodule`
	if got != want {
		t.Errorf("source mismatch\nwant %s\ngot  %s", want, got)
	}
}

func TestDeclarationNoPorts(t *testing.T) {
	d := Declaration{Standard: "fifo"}
	got, err := d.Source()
	if err != nil {
		t.Fatal(err)
	}
	want := `(*__std="fifo", __target="", __loc=""*)module Fifo();endmodule`
	if got != want {
		t.Errorf("source mismatch\nwant %s\ngot  %s", want, got)
	}
}

func TestDeclarationInstantiate(t *testing.T) {
	d := Declaration{Standard: "led", OutputWidth: 8, Instantiate: true}
	got, err := d.Commands()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 commands, got %d: %q", len(got), got)
	}
	if got[1] != "eval:Led led();" {
		t.Errorf("instance command = %q", got[1])
	}
}

func TestDeclarationInvalidWidth(t *testing.T) {
	tests := []struct {
		name string
		decl Declaration
		port string
	}{
		{"negative input", Declaration{Standard: "led", InputWidth: -1}, "input"},
		{"negative output", Declaration{Standard: "led", OutputWidth: -8}, "output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds, err := tt.decl.Commands()
			var werr *InvalidWidthError
			if !errors.As(err, &werr) {
				t.Fatalf("expected InvalidWidthError, got %v", err)
			}
			if werr.Port != tt.port {
				t.Errorf("expected port %q, got %q", tt.port, werr.Port)
			}
			if cmds != nil {
				t.Errorf("expected no commands, got %q", cmds)
			}
		})
	}
}

func TestDeclarationMissingStandard(t *testing.T) {
	_, err := Declaration{OutputWidth: 1}.Commands()
	if !errors.Is(err, ErrMissingStandard) {
		t.Fatalf("expected ErrMissingStandard, got %v", err)
	}
}

func TestParseWidth(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{" 4 ", 4, false},
		{"32", 32, false},
		{"-1", 0, true},
		{"four", 0, true},
		{"1.5", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseWidth("input", tt.in)
		if tt.wantErr {
			var werr *InvalidWidthError
			if !errors.As(err, &werr) {
				t.Errorf("ParseWidth(%q): expected InvalidWidthError, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWidth(%q): unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseWidth(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestModuleName(t *testing.T) {
	for in, want := range map[string]string{"led": "Led", "Led": "Led", "x": "X", "": "", "éclair": "Éclair"} {
		if got := (Declaration{Standard: in}).ModuleName(); got != want {
			t.Errorf("ModuleName(%q) = %q, want %q", in, got, want)
		}
	}
}
