package template

import (
	"testing"

	"github.com/spraguehouse/workspace-release/internal/errs"
)

func TestRenderSnapshotFormat(t *testing.T) {
	r := NewRenderer("version", "branch", "commit", "short_commit", "timestamp")

	got, err := r.Render("{version}-{branch}.{short_commit}", map[string]string{
		"version":      "1.1.0",
		"branch":       "feature-x",
		"short_commit": "deadbee",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "1.1.0-feature-x.deadbee"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRenderUnknownVariableFails(t *testing.T) {
	r := NewRenderer("version", "branch", "commit", "short_commit", "timestamp")

	_, err := r.Render("{version}-{bogus}", map[string]string{"version": "1.0.0"})
	if !errs.Is(err, errs.InvalidSnapshotFormat) {
		t.Fatalf("expected InvalidSnapshotFormat, got %v", err)
	}

	var e *errs.Error
	if ee, ok := asError(err); ok {
		e = ee
	} else {
		t.Fatal("error is not *errs.Error")
	}
	supported, ok := e.Fields["supported"].([]string)
	if !ok || len(supported) != 5 {
		t.Errorf("Fields[supported] = %v, want the 5 supported variables", e.Fields["supported"])
	}
}

func asError(err error) (*errs.Error, bool) {
	e, ok := err.(*errs.Error)
	return e, ok
}

func TestRenderTagTemplate(t *testing.T) {
	r := NewRenderer("name", "version")
	got, err := r.Render("{name}@{version}", map[string]string{"name": "@x/auth", "version": "2.2.0"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "@x/auth@2.2.0" {
		t.Errorf("Render = %q", got)
	}
}

func TestRenderRepeatedVariable(t *testing.T) {
	r := NewRenderer("summary")
	got, err := r.Render("chore(release): {summary} ({summary})", map[string]string{"summary": "v2"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "chore(release): v2 (v2)" {
		t.Errorf("Render = %q", got)
	}
}
