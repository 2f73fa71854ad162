package cmd

import (
	"fmt"

	"github.com/harrison/snippetcheck/internal/catalog"
	"github.com/harrison/snippetcheck/internal/config"
)

// loadCatalog loads every path into a fresh store. Any failure is a code 2
// error: no snippet runs against a partially loaded catalog.
func loadCatalog(paths []string) (*catalog.Store, error) {
	store := catalog.NewStore()
	if err := store.LoadPaths(paths...); err != nil {
		if isCatalogError(err) {
			return nil, usageError(err)
		}
		return nil, usageError(fmt.Errorf("failed to load catalog: %w", err))
	}
	return store, nil
}

// loadConfig reads the config file at path, or the project config when path
// is empty, and resolves relative state paths against the project directory.
func loadConfig(path string) (*config.Config, string, error) {
	projectDir, err := config.FindProjectDir(".")
	if err != nil {
		return nil, "", usageError(err)
	}

	var cfg *config.Config
	if path != "" {
		cfg, err = config.LoadConfig(path)
	} else {
		cfg, err = config.LoadConfigFromDir(projectDir)
	}
	if err != nil {
		return nil, "", usageError(fmt.Errorf("failed to load config: %w", err))
	}
	return cfg, projectDir, nil
}
