package native

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	domainerrors "snippethost/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func sha(data []byte) string { return fmt.Sprintf("%x", sha256.Sum256(data)) }

func TestLoadPluginManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
version = 1
allowed_abi_versions = [1]

[[artifacts]]
path = " ./libvscode.so "
sha256 = "ABCDEF"
abi_version = 1
description = "VSCode compatible parser"
`)
	manifest, err := LoadPluginManifest(path)
	require.NoError(t, err)
	require.Len(t, manifest.Artifacts, 1)
	assert.Equal(t, "libvscode.so", manifest.Artifacts[0].Path)
	assert.Equal(t, "abcdef", manifest.Artifacts[0].SHA256)
}

func TestLoadPluginManifestValidation(t *testing.T) {
	cases := map[string]string{
		"version":   `allowed_abi_versions = [1]`,
		"allowed":   `version = 1`,
		"no sha":    "version = 1\nallowed_abi_versions = [1]\n[[artifacts]]\npath = \"a.so\"\nabi_version = 1\n",
		"no abi":    "version = 1\nallowed_abi_versions = [1]\n[[artifacts]]\npath = \"a.so\"\nsha256 = \"00\"\n",
		"duplicate": "version = 1\nallowed_abi_versions = [1]\n[[artifacts]]\npath = \"a.so\"\nsha256 = \"00\"\nabi_version = 1\n[[artifacts]]\npath = \"./a.so\"\nsha256 = \"00\"\nabi_version = 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadPluginManifest(writeManifest(t, t.TempDir(), body))
			assert.Error(t, err)
		})
	}
}

func TestVerifyPluginArtifacts(t *testing.T) {
	dir := t.TempDir()
	good := []byte("good library")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "libgood.so"), good, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "libbad.so"), []byte("tampered"), 0o644))

	manifest := PluginManifest{
		Version:            1,
		AllowedABIVersions: []int{1},
		Artifacts: []PluginArtifact{
			{Path: "libgood.so", SHA256: sha(good), ABIVersion: 1},
			{Path: "libbad.so", SHA256: sha(good), ABIVersion: 1},
			{Path: "libgone.so", SHA256: sha(good), ABIVersion: 2},
		},
	}

	issues, err := VerifyPluginArtifacts(dir, manifest)
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, "libbad.so", issues[0].ArtifactPath)
	assert.Equal(t, "checksum mismatch", issues[0].Reason)
	assert.Equal(t, "libgone.so", issues[1].ArtifactPath)
	assert.Equal(t, "artifact missing or unreadable", issues[1].Reason)
	assert.Equal(t, "unsupported ABI version 2", issues[2].Reason)

	_, err = VerifyPluginArtifacts("", manifest)
	assert.Error(t, err)
}

type countingLoader struct{ opened []string }

func (c *countingLoader) Open(path string) (Module, error) {
	c.opened = append(c.opened, path)
	return nil, nil
}

func TestVerifyingLoader(t *testing.T) {
	dir := t.TempDir()
	good := []byte("good library")
	goodPath := touch(t, filepath.Join(dir, "libgood.so"))
	require.NoError(t, os.WriteFile(goodPath, good, 0o644))
	badPath := touch(t, filepath.Join(dir, "libbad.so"))
	otherPath := touch(t, filepath.Join(dir, "libother.so"))

	inner := &countingLoader{}
	loader := NewVerifyingLoader(inner, dir, PluginManifest{
		Version:            1,
		AllowedABIVersions: []int{1},
		Artifacts: []PluginArtifact{
			{Path: "libgood.so", SHA256: sha(good), ABIVersion: 1},
			{Path: "libbad.so", SHA256: sha(good), ABIVersion: 1},
		},
	}, nil)

	_, err := loader.Open(goodPath)
	require.NoError(t, err)
	assert.Equal(t, []string{goodPath}, inner.opened)

	_, err = loader.Open(badPath)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeLoadFailure))
	assert.Contains(t, err.Error(), "checksum mismatch")

	_, err = loader.Open(otherPath)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeLoadFailure))
	assert.Contains(t, err.Error(), "not listed")

	assert.Len(t, inner.opened, 1, "rejected libraries must never reach the OS loader")
}
