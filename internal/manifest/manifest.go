// Package manifest loads package descriptors from a Freighter workspace.
//
// A workspace is a directory tree rooted at a freighter.toml containing a
// [workspace] table. Each member directory carries its own freighter.toml
// with a [package] table and an optional [dependencies] table. Loading is
// pure parsing: no side effects beyond reading files.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"

	"github.com/freighter-dev/freighter/internal/errors"
)

// ManifestName is the file name of both workspace and package manifests.
const ManifestName = "freighter.toml"

// RegistryTarget identifies where a package is published.
type RegistryTarget string

const (
	// RegistryDefault publishes to the configured default registry.
	RegistryDefault RegistryTarget = "default"
	// RegistryNone marks a package as not publishable. It is still
	// versioned and tagged with the rest of the workspace.
	RegistryNone RegistryTarget = "none"
)

// Descriptor describes a single workspace package. Immutable once loaded
// for a given release attempt.
type Descriptor struct {
	// Name is the package name, unique within the workspace.
	Name string
	// Version is the current version from the package manifest.
	Version *semver.Version
	// Path is the absolute path to the package directory.
	Path string
	// ManifestPath is the absolute path to the package's freighter.toml.
	ManifestPath string
	// InternalDeps are names of other workspace packages this package
	// depends on. External registry dependencies are not recorded; they
	// are irrelevant to publish ordering.
	InternalDeps []string
	// Registry is the publish target for this package.
	Registry RegistryTarget
}

// Publishable reports whether the package should be published to a registry.
func (d *Descriptor) Publishable() bool {
	return d.Registry != RegistryNone
}

// workspaceManifest is the root freighter.toml shape.
type workspaceManifest struct {
	Workspace struct {
		Members []string `toml:"members"`
		Exclude []string `toml:"exclude"`
	} `toml:"workspace"`
}

// packageManifest is a member freighter.toml shape. Dependencies are
// decoded loosely: a value may be a bare version string or a table with
// version/path keys, matching what the manifest editor preserves.
type packageManifest struct {
	Package struct {
		Name     string `toml:"name"`
		Version  string `toml:"version"`
		Registry string `toml:"registry"`
		Publish  *bool  `toml:"publish"`
	} `toml:"package"`
	Dependencies map[string]any `toml:"dependencies"`
}

// FindWorkspaceRoot walks up from startDir until it finds a freighter.toml
// declaring a [workspace] table. Returns ErrManifestParse wrapped in a
// ManifestError if no workspace root exists above startDir.
func FindWorkspaceRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", errors.NewManifestError("failed to resolve start directory", err)
	}

	for {
		manifestPath := filepath.Join(dir, ManifestName)
		if data, err := os.ReadFile(manifestPath); err == nil {
			var ws workspaceManifest
			if err := toml.Unmarshal(data, &ws); err == nil && len(ws.Workspace.Members) > 0 {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.NewManifestError(
				"no workspace manifest found in any parent directory",
				errors.ErrManifestParse,
			).WithPath(startDir)
		}
		dir = parent
	}
}

// Load reads every member manifest under the workspace rooted at root and
// returns descriptors sorted by package name. Internal dependencies are
// the path-dependencies that resolve to another workspace member.
func Load(root string) ([]*Descriptor, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewManifestError("failed to resolve workspace root", err)
	}

	rootManifest := filepath.Join(root, ManifestName)
	data, err := os.ReadFile(rootManifest)
	if err != nil {
		return nil, errors.NewManifestError("failed to read workspace manifest", err).
			WithPath(rootManifest)
	}

	var ws workspaceManifest
	if err := toml.Unmarshal(data, &ws); err != nil {
		return nil, errors.NewManifestError("invalid workspace manifest",
			errors.Join(errors.ErrManifestParse, err)).WithPath(rootManifest)
	}
	if len(ws.Workspace.Members) == 0 {
		return nil, errors.NewManifestError("workspace declares no members",
			errors.ErrManifestParse).WithPath(rootManifest)
	}

	memberDirs, err := expandMembers(root, ws.Workspace.Members, ws.Workspace.Exclude)
	if err != nil {
		return nil, err
	}

	descriptors := make([]*Descriptor, 0, len(memberDirs))
	byPath := make(map[string]*Descriptor, len(memberDirs))
	seen := make(map[string]string, len(memberDirs))

	for _, dir := range memberDirs {
		desc, err := loadPackage(dir)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[desc.Name]; ok {
			return nil, errors.NewManifestError(
				fmt.Sprintf("package %q declared in both %s and %s", desc.Name, prev, dir),
				errors.ErrDuplicatePackage,
			).WithPath(dir)
		}
		seen[desc.Name] = dir
		byPath[desc.Path] = desc
		descriptors = append(descriptors, desc)
	}

	// Resolve path dependencies to workspace member names. A path
	// dependency pointing outside the workspace is not an internal dep.
	for _, desc := range descriptors {
		resolveInternalDeps(desc, byPath)
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors, nil
}

// expandMembers resolves member glob patterns to package directories,
// dropping excluded directories and anything without a manifest.
func expandMembers(root string, members, exclude []string) ([]string, error) {
	excluded := make(map[string]bool)
	for _, pattern := range exclude {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, errors.NewManifestError(
				fmt.Sprintf("invalid exclude pattern %q", pattern), err)
		}
		for _, m := range matches {
			excluded[m] = true
		}
	}

	var dirs []string
	seen := make(map[string]bool)
	for _, pattern := range members {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, errors.NewManifestError(
				fmt.Sprintf("invalid member pattern %q", pattern), err)
		}
		for _, m := range matches {
			if excluded[m] || seen[m] {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || !info.IsDir() {
				continue
			}
			if _, err := os.Stat(filepath.Join(m, ManifestName)); err != nil {
				continue
			}
			seen[m] = true
			dirs = append(dirs, m)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// loadPackage parses a single member manifest into a Descriptor.
// Internal dependency resolution happens later, once all members are known.
func loadPackage(dir string) (*Descriptor, error) {
	manifestPath := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errors.NewManifestError("failed to read package manifest", err).
			WithPath(manifestPath)
	}

	var pkg packageManifest
	if err := toml.Unmarshal(data, &pkg); err != nil {
		return nil, errors.NewManifestError("invalid package manifest",
			errors.Join(errors.ErrManifestParse, err)).WithPath(manifestPath)
	}
	if pkg.Package.Name == "" {
		return nil, errors.NewManifestError("package manifest missing name",
			errors.ErrManifestParse).WithPath(manifestPath)
	}

	version, err := semver.NewVersion(pkg.Package.Version)
	if err != nil {
		return nil, errors.NewManifestError(
			fmt.Sprintf("package %q has invalid version %q", pkg.Package.Name, pkg.Package.Version),
			errors.Join(errors.ErrInvalidVersion, err)).WithPath(manifestPath)
	}

	registry := RegistryDefault
	if pkg.Package.Publish != nil && !*pkg.Package.Publish {
		registry = RegistryNone
	} else if pkg.Package.Registry != "" {
		registry = RegistryTarget(pkg.Package.Registry)
	}

	desc := &Descriptor{
		Name:         pkg.Package.Name,
		Version:      version,
		Path:         dir,
		ManifestPath: manifestPath,
		Registry:     registry,
	}

	// Stash raw path dependencies for the second resolution pass.
	for _, raw := range pkg.Dependencies {
		if path, ok := dependencyPath(raw); ok {
			desc.InternalDeps = append(desc.InternalDeps, pathDepMarker+filepath.Join(dir, path))
		}
	}
	return desc, nil
}

// pathDepMarker prefixes unresolved path dependencies inside InternalDeps
// between the two load passes. Never visible to callers of Load.
const pathDepMarker = "\x00path:"

// dependencyPath extracts the path key from a dependency value, which may
// be a bare version string (external dep) or a table.
func dependencyPath(raw any) (string, bool) {
	table, ok := raw.(map[string]any)
	if !ok {
		return "", false
	}
	path, ok := table["path"].(string)
	if !ok || path == "" {
		return "", false
	}
	return path, true
}

// resolveInternalDeps rewrites the marker entries produced by loadPackage
// into resolved workspace package names. Path deps pointing outside the
// workspace are dropped: they order nothing.
func resolveInternalDeps(desc *Descriptor, byPath map[string]*Descriptor) {
	resolved := desc.InternalDeps[:0]
	for _, entry := range desc.InternalDeps {
		if !strings.HasPrefix(entry, pathDepMarker) {
			resolved = append(resolved, entry)
			continue
		}
		depPath := filepath.Clean(strings.TrimPrefix(entry, pathDepMarker))
		if target, ok := byPath[depPath]; ok {
			resolved = append(resolved, target.Name)
		}
	}
	sort.Strings(resolved)
	desc.InternalDeps = resolved
}
