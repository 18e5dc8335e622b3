package secrets

import (
	"fmt"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Allowlist holds content patterns that detection ignores.
type Allowlist struct {
	Regexes []string
}

// LoadAllowlist reads the [allowlist] table of a gitleaks-style TOML file.
// An empty path returns an empty allowlist. Path patterns in the file are
// accepted and ignored, since batches are not files.
func LoadAllowlist(path string) (*Allowlist, error) {
	if path == "" {
		return &Allowlist{}, nil
	}

	var file struct {
		Allowlist struct {
			Paths   []string
			Regexes []string
		}
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	for _, pattern := range file.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid content pattern '%s' in %s: %v",
				ErrInvalidRegex, pattern, path, err)
		}
	}
	return &Allowlist{Regexes: file.Allowlist.Regexes}, nil
}
