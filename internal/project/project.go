package project

import (
	"errors"
	"fmt"
	"io/fs"
	"movefuzz/internal/options"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	DefaultFuzzDir = "fuzz"
	TargetsDir     = "fuzz_targets"
	CorpusDir      = "corpus"
	ArtifactsDir   = "artifacts"
	CoverageDir    = "coverage"
	ManifestFile   = "fuzz.yaml"
	CargoManifest  = "Cargo.toml"
)

var (
	ErrWorkspaceNotFound = errors.New("fuzz workspace not found")
	ErrUnknownTarget     = errors.New("unknown fuzz target")
)

// Project is a located fuzz workspace.
type Project struct {
	Root string // the fuzz directory itself, e.g. <crate>/fuzz
}

// Locate resolves the fuzz workspace. An explicit override must point at a
// directory holding fuzz_targets/; otherwise cwd and its parents are searched
// for fuzz/fuzz_targets/.
func Locate(override options.FuzzDir, cwd string) (*Project, error) {
	if override.IsSet() {
		root := override.Path
		if !filepath.IsAbs(root) {
			root = filepath.Join(cwd, root)
		}
		if !isDir(filepath.Join(root, TargetsDir)) {
			return nil, fmt.Errorf("%w: %s has no %s directory", ErrWorkspaceNotFound, root, TargetsDir)
		}
		return &Project{Root: filepath.Clean(root)}, nil
	}

	dir, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", cwd, err)
	}
	for {
		root := filepath.Join(dir, DefaultFuzzDir)
		if isDir(filepath.Join(root, TargetsDir)) {
			return &Project{Root: root}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, fmt.Errorf("%w: no %s/%s directory above %s", ErrWorkspaceNotFound, DefaultFuzzDir, TargetsDir, cwd)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Targets returns the declared target names, sorted, each listed once.
// A target is a regular, non-hidden file in fuzz_targets/ named after it.
func (p *Project) Targets() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.Root, TargetsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to read targets: %w", err)
	}
	targets := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if name == "" {
			continue
		}
		targets = append(targets, name)
	}
	slices.Sort(targets)
	return slices.Compact(targets), nil
}

func (p *Project) Exists(name string) (bool, error) {
	targets, err := p.Targets()
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(targets, name)
	return found, nil
}

// Require fails with ErrUnknownTarget unless name is a declared target.
func (p *Project) Require(name string) error {
	ok, err := p.Exists(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	return nil
}

func (p *Project) CargoManifestPath() string {
	return filepath.Join(p.Root, CargoManifest)
}

func (p *Project) CorpusDir(target string) (string, error) {
	return p.ensureDir(CorpusDir, target)
}

func (p *Project) ArtifactsDir(target string) (string, error) {
	return p.ensureDir(ArtifactsDir, target)
}

func (p *Project) CoverageDir(target string) (string, error) {
	return p.ensureDir(CoverageDir, target)
}

func (p *Project) ensureDir(kind, target string) (string, error) {
	dir := filepath.Join(p.Root, kind, target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", kind, err)
	}
	return dir, nil
}

// NewestArtifact returns the most recently modified file in the target's
// artifacts directory whose name starts with prefix.
func (p *Project) NewestArtifact(target, prefix string) (string, error) {
	dir := filepath.Join(p.Root, ArtifactsDir, target)
	var newest string
	var newestInfo fs.FileInfo
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read artifacts: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newestInfo == nil || info.ModTime().After(newestInfo.ModTime()) {
			newest, newestInfo = filepath.Join(dir, e.Name()), info
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no artifact with prefix %q in %s", prefix, dir)
	}
	return newest, nil
}
