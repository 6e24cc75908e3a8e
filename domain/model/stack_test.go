package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestSecret_NeverPrints(t *testing.T) {
	t.Parallel()

	s := NewSecret("hunter2")
	if s.Reveal() != "hunter2" {
		t.Fatalf("Reveal() = %q", s.Reveal())
	}

	checks := map[string]string{
		"%s":  fmt.Sprintf("%s", s),
		"%v":  fmt.Sprintf("%v", s),
		"%#v": fmt.Sprintf("%#v", s),
	}
	for verb, out := range checks {
		if strings.Contains(out, "hunter2") {
			t.Errorf("fmt %s leaked secret: %q", verb, out)
		}
	}

	b, err := json.Marshal(struct{ P Secret }{P: s})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "hunter2") {
		t.Errorf("json leaked secret: %s", b)
	}

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("x", "password", s)
	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("slog leaked secret: %s", buf.String())
	}
}

func TestSecret_IsZero(t *testing.T) {
	t.Parallel()
	if !(Secret{}).IsZero() {
		t.Error("zero Secret IsZero() = false")
	}
	if NewSecret("x").IsZero() {
		t.Error("non-empty Secret IsZero() = true")
	}
}

func TestTags_Map(t *testing.T) {
	t.Parallel()
	m := Tags{Environment: "prod", Owner: "ops", CreatedBy: "ci"}.Map()
	want := map[string]string{"environment": "prod", "owner": "ops", "createdby": "ci"}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("Map()[%q] = %q, want %q", k, m[k], v)
		}
	}
	if len(m) != len(want) {
		t.Errorf("Map() has %d keys, want %d", len(m), len(want))
	}
}
