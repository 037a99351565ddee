package native

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	domainerrors "snippethost/internal/core/errors"
)

type VerificationIssue struct {
	ArtifactPath string
	ExpectedHash string
	ActualHash   string
	Reason       string
}

// VerifyPluginArtifacts checks every artifact in the manifest. Relative
// artifact paths are taken relative to baseDir.
func VerifyPluginArtifacts(baseDir string, manifest PluginManifest) ([]VerificationIssue, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("baseDir must not be empty")
	}
	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("plugin base path is not a directory: %s", baseDir)
	}

	allowed := allowedVersions(manifest)
	issues := make([]VerificationIssue, 0)
	for _, artifact := range manifest.Artifacts {
		if !allowed[artifact.ABIVersion] {
			issues = append(issues, VerificationIssue{
				ArtifactPath: artifact.Path,
				Reason:       fmt.Sprintf("unsupported ABI version %d", artifact.ABIVersion),
			})
		}
		if issue, ok := verifyArtifactHash(artifactPath(baseDir, artifact.Path), artifact); !ok {
			issues = append(issues, issue)
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].ArtifactPath != issues[j].ArtifactPath {
			return issues[i].ArtifactPath < issues[j].ArtifactPath
		}
		return issues[i].Reason < issues[j].Reason
	})
	return issues, nil
}

// VerifyingLoader refuses to open libraries that are missing from the manifest
// or whose checksum does not match it.
type VerifyingLoader struct {
	inner   Loader
	baseDir string
	allowed map[int]bool
	byPath  map[string]PluginArtifact
	logger  *slog.Logger
}

func NewVerifyingLoader(inner Loader, baseDir string, manifest PluginManifest, logger *slog.Logger) *VerifyingLoader {
	if logger == nil {
		logger = slog.Default()
	}
	byPath := make(map[string]PluginArtifact, len(manifest.Artifacts))
	for _, artifact := range manifest.Artifacts {
		full := artifactPath(baseDir, artifact.Path)
		if abs, err := filepath.Abs(full); err == nil {
			full = abs
		}
		if resolved, err := filepath.EvalSymlinks(full); err == nil {
			full = resolved
		}
		byPath[full] = artifact
	}
	return &VerifyingLoader{
		inner:   inner,
		baseDir: baseDir,
		allowed: allowedVersions(manifest),
		byPath:  byPath,
		logger:  logger,
	}
}

func (l *VerifyingLoader) Open(path string) (Module, error) {
	artifact, ok := l.byPath[path]
	if !ok {
		return nil, domainerrors.New(domainerrors.CodeLoadFailure, "library is not listed in the plugin manifest").
			WithContext(domainerrors.CtxPath, path)
	}
	if !l.allowed[artifact.ABIVersion] {
		return nil, domainerrors.Newf(domainerrors.CodeLoadFailure, "unsupported ABI version %d", artifact.ABIVersion).
			WithContext(domainerrors.CtxPath, path)
	}
	if issue, ok := verifyArtifactHash(path, artifact); !ok {
		return nil, domainerrors.New(domainerrors.CodeLoadFailure, issue.Reason).
			WithContext(domainerrors.CtxPath, path).
			WithContext("expected_sha256", issue.ExpectedHash).
			WithContext("actual_sha256", issue.ActualHash)
	}
	l.logger.Debug("plugin checksum verified", "path", path)
	return l.inner.Open(path)
}

func allowedVersions(manifest PluginManifest) map[int]bool {
	allowed := make(map[int]bool, len(manifest.AllowedABIVersions))
	for _, version := range manifest.AllowedABIVersions {
		allowed[version] = true
	}
	return allowed
}

func artifactPath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

func verifyArtifactHash(fullPath string, artifact PluginArtifact) (VerificationIssue, bool) {
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return VerificationIssue{
			ArtifactPath: artifact.Path,
			ExpectedHash: artifact.SHA256,
			ActualHash:   "<missing>",
			Reason:       "artifact missing or unreadable",
		}, false
	}

	actual := fmt.Sprintf("%x", sha256.Sum256(data))
	if actual == artifact.SHA256 {
		return VerificationIssue{}, true
	}
	return VerificationIssue{
		ArtifactPath: artifact.Path,
		ExpectedHash: artifact.SHA256,
		ActualHash:   actual,
		Reason:       "checksum mismatch",
	}, false
}
