package cli

import (
	"context"
	"testing"
)

func TestDispatchREPLCommandQuit(t *testing.T) {
	err := dispatchREPLCommand(context.Background(), nil, "quit", nil)
	if err != errQuit {
		t.Fatalf("expected errQuit, got %v", err)
	}
}

func TestDispatchREPLCommandUnknown(t *testing.T) {
	err := dispatchREPLCommand(context.Background(), nil, "frobnicate", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

func TestDispatchREPLCommandUsageErrors(t *testing.T) {
	cases := []struct {
		cmd  string
		args []string
	}{
		{"select", nil},
		{"deselect", []string{"a", "b"}},
		{"chat", nil},
		{"webcam", nil},
		{"webcam", []string{"on", "extra"}},
		{"screenshare", nil},
		{"hand", nil},
	}

	for _, tc := range cases {
		err := dispatchREPLCommand(context.Background(), nil, tc.cmd, tc.args)
		if err == nil {
			t.Fatalf("%s %v: expected a usage error", tc.cmd, tc.args)
		}
	}
}

func TestDispatchREPLCommandHelpPrintsWithoutError(t *testing.T) {
	if err := dispatchREPLCommand(context.Background(), nil, "help", nil); err != nil {
		t.Fatalf("help: unexpected error: %v", err)
	}
}
