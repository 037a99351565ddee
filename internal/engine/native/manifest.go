package native

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type PluginManifest struct {
	Version            int              `toml:"version"`
	AllowedABIVersions []int            `toml:"allowed_abi_versions"`
	Artifacts          []PluginArtifact `toml:"artifacts"`
}

type PluginArtifact struct {
	Path        string `toml:"path"`
	SHA256      string `toml:"sha256"`
	ABIVersion  int    `toml:"abi_version"`
	Description string `toml:"description"`
	Source      string `toml:"source"`
}

func LoadPluginManifest(path string) (PluginManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PluginManifest{}, err
	}

	var manifest PluginManifest
	if _, err := toml.Decode(string(data), &manifest); err != nil {
		return PluginManifest{}, err
	}

	if manifest.Version <= 0 {
		return PluginManifest{}, fmt.Errorf("manifest version must be > 0")
	}
	if len(manifest.AllowedABIVersions) == 0 {
		return PluginManifest{}, fmt.Errorf("manifest must define allowed_abi_versions")
	}

	seen := make(map[string]bool, len(manifest.Artifacts))
	for i, artifact := range manifest.Artifacts {
		ref := fmt.Sprintf("artifacts[%d]", i)
		artifact.Path = strings.TrimSpace(artifact.Path)
		artifact.SHA256 = strings.TrimSpace(strings.ToLower(artifact.SHA256))
		artifact.Description = strings.TrimSpace(artifact.Description)
		artifact.Source = strings.TrimSpace(artifact.Source)

		if artifact.Path == "" || artifact.SHA256 == "" {
			return PluginManifest{}, fmt.Errorf("%s.path and sha256 must not be empty", ref)
		}
		artifact.Path = filepath.Clean(artifact.Path)
		if seen[artifact.Path] {
			return PluginManifest{}, fmt.Errorf("duplicate artifact path %q in manifest", artifact.Path)
		}
		seen[artifact.Path] = true
		if artifact.ABIVersion <= 0 {
			return PluginManifest{}, fmt.Errorf("%s.abi_version must be > 0", ref)
		}
		manifest.Artifacts[i] = artifact
	}

	return manifest, nil
}
