// Package security confines tool file access to the configured directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// PathValidator checks that requested files resolve inside one directory
// of a filesystem
type PathValidator struct {
	fs                  afero.Fs
	configuredDirectory string
}

// NewPathValidator creates a validator for dir on fs. The directory does
// not have to exist yet.
func NewPathValidator(fs afero.Fs, dir string) (*PathValidator, error) {
	if dir == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &PathValidator{fs: fs, configuredDirectory: dir}, nil
}

// Directory returns the configured directory
func (v *PathValidator) Directory() string {
	return v.configuredDirectory
}

// ValidatePath checks that path lies within the configured directory
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	// nothing to escape from until the directory exists
	if _, err := v.fs.Stat(v.configuredDirectory); os.IsNotExist(err) {
		return nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	isWithin, err := v.IsPathWithinDirectory(absPath)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	if !isWithin {
		return fmt.Errorf("path is outside configured directory: %s", path)
	}
	return nil
}

// IsPathWithinDirectory reports whether path, and the target of path when
// it is a symlink, fall under the configured directory
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	if _, err := v.fs.Stat(v.configuredDirectory); os.IsNotExist(err) {
		return true, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	absDir, err := filepath.Abs(v.configuredDirectory)
	if err != nil {
		return false, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	cleanDir := filepath.Clean(absDir)
	realPath := v.resolveLink(cleanPath)
	realDir := v.resolveDir(cleanDir)

	within := func(p string) bool {
		return under(p, cleanDir) || under(p, realDir)
	}
	return within(cleanPath) && within(realPath), nil
}

// Resolve strips NUL bytes, anchors relative paths at the configured
// directory and validates the result
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := v.ValidatePath(absPath); err != nil {
		return "", err
	}
	return absPath, nil
}

func under(path, dir string) bool {
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// resolveLink follows path one hop when it is a symlink
func (v *PathValidator) resolveLink(path string) string {
	if _, ok := v.fs.(*afero.OsFs); ok {
		if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
			if resolved, err := filepath.EvalSymlinks(path); err == nil {
				return resolved
			}
		}
		return path
	}

	lstater, ok := v.fs.(afero.Lstater)
	if !ok {
		return path
	}
	info, lstatCalled, err := lstater.LstatIfPossible(path)
	if err != nil || !lstatCalled || info.Mode()&os.ModeSymlink == 0 {
		return path
	}
	reader, ok := v.fs.(afero.LinkReader)
	if !ok {
		return path
	}
	target, err := reader.ReadlinkIfPossible(path)
	if err != nil {
		return path
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target)
}

// resolveDir resolves every link on the way to dir on the host filesystem
func (v *PathValidator) resolveDir(dir string) string {
	if _, ok := v.fs.(*afero.OsFs); ok {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return resolved
		}
	}
	return dir
}
