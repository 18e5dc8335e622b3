package config

import (
	"path/filepath"
	"testing"
)

func TestValidateConfigPath_RejectsPathTraversal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name string
		path string
	}{
		{"sibling with shared prefix", "/etc/ghsock../etc/passwd"},
		{"dot-dot escape", filepath.Join(home, ".config", "ghsock", "..", "..", "..", "etc", "passwd")},
		{"directory itself", "/etc/ghsock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateConfigPath(tt.path); err == nil {
				t.Errorf("Expected error for path traversal attempt: %s", tt.path)
			}
		})
	}
}

func TestValidateConfigPath_AllowsValidPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	validPaths := []string{
		filepath.Join(home, ".config", "ghsock", "config.yaml"),
		filepath.Join(home, ".config", "ghsock", "subdir", "config.yaml"),
		"/etc/ghsock/config.yaml",
	}
	for _, path := range validPaths {
		t.Run(path, func(t *testing.T) {
			if err := validateConfigPath(path); err != nil {
				t.Errorf("Valid path rejected: %s, error: %v", path, err)
			}
		})
	}
}

func TestValidateConfigPath_RejectsOutsideAllowedDirs(t *testing.T) {
	for _, path := range []string{"/etc/passwd", "/tmp/config.yaml", "/var/lib/ghsock/config.yaml"} {
		t.Run(path, func(t *testing.T) {
			if err := validateConfigPath(path); err == nil {
				t.Errorf("Path outside allowed directories should be rejected: %s", path)
			}
		})
	}
}
