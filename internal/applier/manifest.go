package applier

import (
	"fmt"
	"regexp"
)

// versionFieldRegex matches a manifest's top-level "version" field. It is
// deliberately a single string-replace rather than a JSON parse/remarshal,
// so every other byte of the file (key order, indentation, trailing
// comments a linter might tolerate) survives untouched.
var versionFieldRegex = regexp.MustCompile(`("version"\s*:\s*")[^"]*(")`)

// rewriteManifestVersion replaces original's top-level "version" value with
// newVersion. A manifest with no "version" field is returned unchanged.
func rewriteManifestVersion(original, newVersion string) string {
	if !versionFieldRegex.MatchString(original) {
		return original
	}
	return versionFieldRegex.ReplaceAllString(original, fmt.Sprintf(`${1}%s${2}`, newVersion))
}

// rewriteManifestDependency replaces the spec for depName inside the named
// dependency section ("dependencies", "devDependencies", "peerDependencies",
// "optionalDependencies"), leaving every other entry in that section and
// the rest of the file untouched. A missing section or entry is a no-op.
func rewriteManifestDependency(original, section, depName, newSpec string) string {
	sectionRe := regexp.MustCompile(`("` + regexp.QuoteMeta(section) + `"\s*:\s*\{)([^}]*)(\})`)
	loc := sectionRe.FindStringSubmatchIndex(original)
	if loc == nil {
		return original
	}

	before := original[:loc[3]]
	body := original[loc[4]:loc[5]]
	after := original[loc[6]:]

	depRe := regexp.MustCompile(`("` + regexp.QuoteMeta(depName) + `"\s*:\s*")[^"]*(")`)
	if !depRe.MatchString(body) {
		return original
	}
	newBody := depRe.ReplaceAllString(body, fmt.Sprintf(`${1}%s${2}`, newSpec))

	return before + newBody + after
}
