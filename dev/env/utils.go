package devenv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"zzuli-evaluation/lib/configutil"
)

const (
	moduleName  = "zzuli-evaluation"
	stateprefix = "<dev_state>"
)

var modName = regexp.MustCompile(`(?m)^module\s+(\S+)\s*$`)

func isWorkspaceRoot(dir string) bool {
	mod, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return false
	}
	matches := modName.FindSubmatch(mod)
	return len(matches) >= 2 && string(matches[1]) == moduleName
}

// GetWorkspaceRoot walks up from the cwd until it finds the go.mod of this module.
func GetWorkspaceRoot() (string, error) {
	current, err := filepath.Abs(".")
	if err != nil {
		return "", err
	}
	for {
		if isWorkspaceRoot(current) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", os.ErrNotExist
		}
		current = parent
	}
}

func GetStateFilePath(path string) (string, error) {
	root, err := GetWorkspaceRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "dev", ".state", path), nil
}

func GetStateConfig[T any](path string) (T, error) {
	configPath, err := GetStateFilePath(path)
	if err != nil {
		var out T
		return out, err
	}
	return configutil.ReadConfig[T](configPath)
}

// ResolvePath replaces a leading "<dev_state>" with the dev/.state directory of
// the workspace (creating it), any other path is returned unchanged.
//
// outside the workspace (an installed binary) the prefix falls back to the
// user's config directory.
func ResolvePath(path string) (string, error) {
	if !strings.HasPrefix(path, stateprefix) {
		return path, nil
	}
	subpath := strings.TrimLeft(strings.TrimPrefix(path, stateprefix), `/\`)

	base, err := stateDir()
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(base, 0777)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, subpath), nil
}

func stateDir() (string, error) {
	root, err := GetWorkspaceRoot()
	if err == nil {
		return filepath.Join(root, "dev", ".state"), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	config, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve state directory: %w", err)
	}
	return filepath.Join(config, moduleName), nil
}
