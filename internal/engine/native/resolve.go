package native

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	domainerrors "snippethost/internal/core/errors"
)

// Resolver turns a user supplied library name or path into a concrete file
// path. Bare names are also looked up in SearchPaths, in order, after the
// working directory.
type Resolver struct {
	SearchPaths []string
	Logger      *slog.Logger
}

// Resolve returns the absolute path of the library named by nameOrPath. The
// literal path wins; otherwise the platform naming convention is applied to
// the filename component. Repeated calls with the same input return the same
// path.
func (r *Resolver) Resolve(nameOrPath string) (string, error) {
	input := DisplayPath(nameOrPath, r.logger())
	file, ok := filenameComponent(nameOrPath)
	if !ok {
		return "", domainerrors.New(domainerrors.CodeInvalidPath, "library path has no filename component").
			WithContext(domainerrors.CtxPath, input)
	}

	for _, dir := range r.candidateDirs(nameOrPath) {
		literal := filepath.Join(dir, nameOrPath)
		if exists, isDir := stat(literal); exists {
			if isDir {
				return "", domainerrors.New(domainerrors.CodeInvalidPath, "library path names a directory").
					WithContext(domainerrors.CtxPath, input)
			}
			return canonical(literal)
		}

		transformed := filepath.Join(dir, filepath.Dir(nameOrPath), LibraryFilename(file))
		if exists, isDir := stat(transformed); exists && !isDir {
			r.logger().Debug("resolved library via platform naming", "input", input, "path", transformed)
			return canonical(transformed)
		}
	}

	return "", domainerrors.New(domainerrors.CodeNotFound, "library either does not exist or is not accessible").
		WithContext(domainerrors.CtxPath, input)
}

func (r *Resolver) candidateDirs(nameOrPath string) []string {
	dirs := []string{""}
	if filepath.IsAbs(nameOrPath) || strings.ContainsAny(nameOrPath, `/\`) {
		return dirs
	}
	for _, dir := range r.SearchPaths {
		if strings.TrimSpace(dir) != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func (r *Resolver) logger() *slog.Logger {
	if r == nil || r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func filenameComponent(p string) (string, bool) {
	if strings.TrimSpace(p) == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, string(filepath.Separator)) {
		return "", false
	}
	base := filepath.Base(p)
	switch base {
	case ".", "..", string(filepath.Separator):
		return "", false
	}
	return base, true
}

func stat(p string) (exists, isDir bool) {
	info, err := os.Stat(p)
	if err != nil {
		return false, false
	}
	return true, info.IsDir()
}

func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInvalidPath, "cannot make library path absolute").
			WithContext(domainerrors.CtxPath, p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// DisplayPath converts an OS path to printable UTF-8, substituting invalid
// byte sequences with U+FFFD and logging when that happens.
func DisplayPath(p string, logger *slog.Logger) string {
	if utf8.ValidString(p) {
		return p
	}
	if logger != nil {
		logger.Warn("path is not valid UTF-8; invalid bytes replaced", "path", strings.ToValidUTF8(p, "�"))
	}
	return strings.ToValidUTF8(p, "�")
}
