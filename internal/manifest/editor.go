package manifest

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/freighter-dev/freighter/internal/errors"
)

// Editor performs format-preserving edits on package manifests. It rewrites
// only the targeted version values, leaving comments, ordering, and
// whitespace untouched. The orchestrator supplies the what; this type owns
// the how.
type Editor struct{}

// NewEditor creates a manifest editor.
func NewEditor() *Editor {
	return &Editor{}
}

// SetVersion rewrites the version value inside the [package] table of the
// manifest at manifestPath.
func (e *Editor) SetVersion(manifestPath, newVersion string) error {
	return e.edit(manifestPath, func(content string) (string, error) {
		return rewriteSectionKey(content, "package", "version", newVersion)
	})
}

// SetDependencyVersion rewrites the version constraint of the named
// dependency in the manifest at manifestPath. Both inline-table form
// (dep = { version = "...", path = "..." }) and dotted section form
// ([dependencies.dep]) are handled.
func (e *Editor) SetDependencyVersion(manifestPath, dep, constraint string) error {
	return e.edit(manifestPath, func(content string) (string, error) {
		if out, ok := rewriteInlineDependency(content, dep, constraint); ok {
			return out, nil
		}
		return rewriteSectionKey(content, "dependencies."+dep, "version", constraint)
	})
}

func (e *Editor) edit(manifestPath string, transform func(string) (string, error)) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return errors.NewManifestError("failed to read manifest for edit", err).
			WithPath(manifestPath)
	}

	out, err := transform(string(data))
	if err != nil {
		var me *errors.ManifestError
		if errors.As(err, &me) {
			return me.WithPath(manifestPath)
		}
		return errors.NewManifestError("manifest edit failed", err).WithPath(manifestPath)
	}

	info, err := os.Stat(manifestPath)
	if err != nil {
		return errors.NewManifestError("failed to stat manifest", err).WithPath(manifestPath)
	}
	if err := os.WriteFile(manifestPath, []byte(out), info.Mode().Perm()); err != nil {
		return errors.NewManifestError("failed to write manifest", err).WithPath(manifestPath)
	}
	return nil
}

// rewriteSectionKey replaces the value of key within the named TOML section,
// preserving everything else byte for byte.
func rewriteSectionKey(content, section, key, value string) (string, error) {
	lines := strings.Split(content, "\n")
	inSection := false
	sectionHeader := "[" + section + "]"
	keyRe := regexp.MustCompile(`^(\s*` + regexp.QuoteMeta(key) + `\s*=\s*")[^"]*(".*)$`)

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			inSection = trimmed == sectionHeader
			continue
		}
		if !inSection {
			continue
		}
		if m := keyRe.FindStringSubmatch(line); m != nil {
			lines[i] = m[1] + value + m[2]
			return strings.Join(lines, "\n"), nil
		}
	}
	return "", errors.NewManifestError(
		fmt.Sprintf("no %s key found in %s section", key, sectionHeader), nil)
}

// rewriteInlineDependency handles the inline-table dependency form inside a
// [dependencies] (or [dev-dependencies]) section. Returns ok=false when the
// dependency is not present in inline form.
func rewriteInlineDependency(content, dep, constraint string) (string, bool) {
	re := regexp.MustCompile(
		`(?m)^(\s*` + regexp.QuoteMeta(dep) + `\s*=\s*\{[^}]*version\s*=\s*")[^"]*(")`)
	if !re.MatchString(content) {
		return "", false
	}
	return re.ReplaceAllString(content, "${1}"+constraint+"${2}"), true
}
