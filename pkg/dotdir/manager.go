// Package dotdir manages the .researcher/ and ~/.researcher directories.
//
// The directory holds config.toml, credentials.toml, traces and the saved
// chat session. The index itself lives at the configured storage path.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the researcher directory.
	DirName = ".researcher"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to a .researcher/ directory, creating it
// when missing. Order of precedence:
//  1. Provided override
//  2. Local ./.researcher/ dir
//  3. Home ~/.researcher/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, DirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating researcher directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// Sub returns a subdirectory of the target directory, creating it if needed.
func (m *Manager) Sub(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}

	sub := filepath.Join(dir, name)
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", sub, err)
	}
	return sub, nil
}

func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, DirName))
	return err == nil && info.IsDir()
}
