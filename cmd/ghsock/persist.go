package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// loadPersist reads carry-over metadata saved by a previous run. An empty
// path or a missing file yields an empty map.
func loadPersist(path string) (map[string]string, error) {
	persist := map[string]string{}
	if path == "" {
		return persist, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return persist, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read persist file: %w", err)
	}
	if err := json.Unmarshal(data, &persist); err != nil {
		return nil, fmt.Errorf("parse persist file %s: %w", path, err)
	}
	return persist, nil
}

// savePersist writes the metadata for the next run.
func savePersist(path string, persist map[string]string) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(persist, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
