// Package template renders the workspace config's snapshot/tag/commit
// message templates (spec.md §4.3.1 Step C, §6.3), grounded on shipyard's
// template.TemplateRenderer. The config surface syntax is single-brace
// ("{version}-{branch}.{short_commit}"); internally it is translated to a
// Go text/template action and executed against a field map.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	gotemplate "text/template"

	"github.com/spraguehouse/workspace-release/internal/errs"
	"github.com/spraguehouse/workspace-release/pkg/contracts"
)

var placeholderRegex = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Renderer renders templates against a fixed, named set of supported
// variables. Using an unsupported variable is a fatal InvalidSnapshotFormat
// error rather than rendering an empty value, so a typo in config surfaces
// immediately instead of producing a silently wrong version string.
type Renderer struct {
	supported []string
}

// NewRenderer builds a Renderer accepting exactly the given variable names
// (without braces).
func NewRenderer(supported ...string) *Renderer {
	contracts.Require(len(supported) > 0, "a renderer needs at least one supported variable")
	sorted := append([]string(nil), supported...)
	sort.Strings(sorted)
	return &Renderer{supported: sorted}
}

// Render expands tmpl against data. Every {name} placeholder must be a key
// of data and a member of the renderer's supported set.
func (r *Renderer) Render(tmpl string, data map[string]string) (string, error) {
	contracts.RequireNotEmpty(tmpl, "tmpl")

	if unknown := r.unsupportedVariables(tmpl); len(unknown) > 0 {
		return "", errs.New(errs.InvalidSnapshotFormat,
			"unsupported template variable(s) %v; supported variables are %v", unknown, r.supported).
			WithField("supported", r.supported)
	}

	goTmpl, err := gotemplate.New("workspace-release").Parse(translate(tmpl))
	if err != nil {
		return "", errs.Wrap(errs.InvalidSnapshotFormat, err, "parsing template %q", tmpl)
	}

	var out strings.Builder
	if err := goTmpl.Execute(&out, data); err != nil {
		return "", errs.Wrap(errs.InvalidSnapshotFormat, err, "rendering template %q", tmpl)
	}
	return out.String(), nil
}

// unsupportedVariables returns the placeholder names in tmpl that are not
// in the renderer's supported set, preserving first-seen order.
func (r *Renderer) unsupportedVariables(tmpl string) []string {
	supportedSet := make(map[string]bool, len(r.supported))
	for _, s := range r.supported {
		supportedSet[s] = true
	}

	seen := make(map[string]bool)
	var unknown []string
	for _, m := range placeholderRegex.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if supportedSet[name] || seen[name] {
			continue
		}
		seen[name] = true
		unknown = append(unknown, name)
	}
	return unknown
}

// translate rewrites every {name} placeholder into the Go text/template
// action that indexes the data map by that key, so execution never
// depends on struct field naming conventions.
func translate(tmpl string) string {
	return placeholderRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderRegex.FindStringSubmatch(match)[1]
		return fmt.Sprintf("{{index . %q}}", name)
	})
}
