package project

import (
	"errors"
	"fmt"
	"movefuzz/internal/moveargs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest is the optional fuzz.yaml at the workspace root.
//
//	targets:
//	  transfer:
//	    arguments: [u64, bool, vector<u8>]
type Manifest struct {
	Targets map[string]TargetManifest `yaml:"targets"`
}

type TargetManifest struct {
	Arguments []string `yaml:"arguments"`
}

// Manifest reads fuzz.yaml. A missing file is an empty manifest.
func (p *Project) Manifest() (*Manifest, error) {
	content, err := os.ReadFile(filepath.Join(p.Root, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ManifestFile, err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(content, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestFile, err)
	}
	return &manifest, nil
}

// Signature returns the argument kinds a target's raw input decodes into.
// Targets without a declared signature take the input as one vector<u8>.
func (p *Project) Signature(target string) ([]moveargs.Kind, error) {
	manifest, err := p.Manifest()
	if err != nil {
		return nil, err
	}
	t, ok := manifest.Targets[target]
	if !ok || len(t.Arguments) == 0 {
		return moveargs.DefaultSignature(), nil
	}
	sig, err := moveargs.ParseSignature(t.Arguments)
	if err != nil {
		return nil, fmt.Errorf("target %q in %s: %w", target, ManifestFile, err)
	}
	return sig, nil
}
