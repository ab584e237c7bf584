package applier

import (
	"strings"
	"testing"
)

func TestBumpLockfileOccurrencesNpmStyle(t *testing.T) {
	text := `{
  "packages": {
    "node_modules/@x/auth": {
      "version": "1.2.3",
      "license": "MIT"
    },
    "node_modules/lodash": {
      "version": "4.0.0"
    }
  }
}
`
	got := bumpLockfileOccurrences(text, "@x/auth", "1.2.3", "1.3.0")
	if !strings.Contains(got, `"version": "1.3.0"`) {
		t.Errorf("expected @x/auth version bumped, got:\n%s", got)
	}
	if !strings.Contains(got, `"version": "4.0.0"`) {
		t.Error("unrelated package version was disturbed")
	}
}

func TestBumpLockfileOccurrencesYarnStyle(t *testing.T) {
	text := `"@x/auth@^1.2.3":
  version "1.2.3"
  resolved "https://example.com/auth-1.2.3.tgz"

"lodash@^4.0.0":
  version "4.0.0"
`
	got := bumpLockfileOccurrences(text, "@x/auth", "1.2.3", "1.3.0")
	if !strings.Contains(got, `version "1.3.0"`) {
		t.Errorf("expected version bumped, got:\n%s", got)
	}
	if !strings.Contains(got, `"@x/auth@^1.2.3"`) {
		t.Error("the resolved-range header line itself is left untouched, only the version field updates")
	}
	if !strings.Contains(got, `version "4.0.0"`) {
		t.Error("unrelated package untouched")
	}
}

func TestBumpLockfileOccurrencesSameVersionIsNoop(t *testing.T) {
	text := `version "1.2.3"`
	if got := bumpLockfileOccurrences(text, "@x/auth", "1.2.3", "1.2.3"); got != text {
		t.Errorf("expected no-op, got %q", got)
	}
}
