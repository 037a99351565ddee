package app

import (
	"path/filepath"

	"snippethost/internal/engine/native"
)

// VerifyPlugins checks every artifact in the configured manifest against its
// recorded checksum and ABI version.
func VerifyPlugins(manifestPath string) ([]native.VerificationIssue, error) {
	manifest, err := native.LoadPluginManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return native.VerifyPluginArtifacts(filepath.Dir(manifestPath), manifest)
}
