package terminal

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want error
	}{
		{in: "y\n", want: nil},
		{in: "YES\n", want: nil},
		{in: " yes ", want: nil},
		{in: "n\n", want: ErrNotConfirmed},
		{in: "\n", want: ErrNotConfirmed},
		{in: "", want: ErrNotConfirmed},
		{in: "yep\n", want: ErrNotConfirmed},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		err := Confirm(strings.NewReader(tt.in), &out, "Destroy stack dev?")
		if !errors.Is(err, tt.want) {
			t.Errorf("Confirm(%q) = %v, want %v", tt.in, err, tt.want)
		}
		if out.String() != "Destroy stack dev? [y/N]: " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestConfirmStdin_AssumeYes(t *testing.T) {
	t.Parallel()
	if err := ConfirmStdin("anything", true); err != nil {
		t.Errorf("ConfirmStdin(assumeYes) = %v", err)
	}
}
