package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the per-project directory holding config, logs and history.
const DirName = ".snippetcheck"

// HomeEnv overrides the project directory lookup.
const HomeEnv = "SNIPPETCHECK_HOME"

// FindProjectDir returns the directory whose DirName subdirectory holds the
// project's snippetcheck state.
// Priority order:
//  1. SNIPPETCHECK_HOME environment variable (if set)
//  2. The nearest ancestor of start containing a DirName directory
//  3. start itself
func FindProjectDir(start string) (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return home, nil
	}

	current, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}
	origin := current
	for {
		if info, err := os.Stat(filepath.Join(current, DirName)); err == nil && info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return origin, nil
		}
		current = parent
	}
}

// Resolve makes relative state paths absolute against projectDir.
func (c *Config) Resolve(projectDir string) {
	abs := func(p string) string {
		if p == "" || p == ":memory:" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(projectDir, p)
	}
	c.LogDir = abs(c.LogDir)
	c.History.DBPath = abs(c.History.DBPath)
}
