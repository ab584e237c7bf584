package applier

import (
	"strings"
	"testing"
)

func TestRewriteManifestVersion(t *testing.T) {
	original := `{
  "name": "@x/auth",
  "version": "1.2.3",
  "dependencies": {}
}
`
	got := rewriteManifestVersion(original, "1.3.0")
	if !strings.Contains(got, `"version": "1.3.0"`) {
		t.Errorf("version not rewritten: %s", got)
	}
	if !strings.Contains(got, `"name": "@x/auth"`) {
		t.Error("unrelated field was disturbed")
	}
}

func TestRewriteManifestVersionNoFieldIsNoop(t *testing.T) {
	original := `{"name": "@x/auth"}`
	if got := rewriteManifestVersion(original, "2.0.0"); got != original {
		t.Errorf("expected no-op, got %q", got)
	}
}

func TestRewriteManifestDependency(t *testing.T) {
	original := `{
  "name": "@x/api",
  "version": "1.0.0",
  "dependencies": {
    "@x/auth": "^1.2.3",
    "lodash": "^4.0.0"
  },
  "devDependencies": {
    "@x/auth": "^1.2.3"
  }
}
`
	got := rewriteManifestDependency(original, "dependencies", "@x/auth", "^1.3.0")

	if !strings.Contains(got, `"@x/auth": "^1.3.0"`) {
		t.Errorf("dependency not rewritten: %s", got)
	}
	if !strings.Contains(got, `"lodash": "^4.0.0"`) {
		t.Error("sibling dependency was disturbed")
	}
	// devDependencies section untouched since we only targeted dependencies.
	devSection := got[strings.Index(got, "devDependencies"):]
	if !strings.Contains(devSection, `"@x/auth": "^1.2.3"`) {
		t.Error("devDependencies section should be untouched")
	}
}

func TestRewriteManifestDependencyMissingSectionIsNoop(t *testing.T) {
	original := `{"name": "@x/api", "version": "1.0.0"}`
	if got := rewriteManifestDependency(original, "dependencies", "@x/auth", "^1.3.0"); got != original {
		t.Errorf("expected no-op, got %q", got)
	}
}
