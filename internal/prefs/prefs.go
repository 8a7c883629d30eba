// Package prefs persists the one setting the agent carries across
// restarts: the mirror window's opacity, stored as TOML under the
// user's config directory, matching the persisted-config idiom
// noisetorch uses for its own settings file.
package prefs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/southflowpeak/pin/pkg/types"
)

const fileName = "prefs.toml"

type fileFormat struct {
	MirrorOpacity float64 `toml:"mirrorOpacity"`
}

// Store reads and writes the preferences file under dir.
type Store struct {
	path string
}

// NewStore returns a Store rooted at the given config directory,
// creating the directory if it doesn't exist.
func NewStore(configDir string) (*Store, error) {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	return &Store{path: filepath.Join(configDir, fileName)}, nil
}

// DefaultConfigDir returns %APPDATA%\Pin, falling back to the current
// directory if the environment variable is unset.
func DefaultConfigDir() string {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		return "."
	}
	return filepath.Join(appData, "Pin")
}

// LoadOpacity reads the persisted opacity, returning the default when
// no preferences file exists yet.
func (s *Store) LoadOpacity() types.OverlayOpacity {
	if _, err := os.Stat(s.path); err != nil {
		return types.DefaultOpacity
	}
	var f fileFormat
	if _, err := toml.DecodeFile(s.path, &f); err != nil {
		return types.DefaultOpacity
	}
	if f.MirrorOpacity == 0 {
		return types.DefaultOpacity
	}
	return types.OverlayOpacity(f.MirrorOpacity).Clamp()
}

// SaveOpacity clamps and persists op.
func (s *Store) SaveOpacity(op types.OverlayOpacity) error {
	f := fileFormat{MirrorOpacity: float64(op.Clamp())}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(&f); err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing preferences file: %w", err)
	}
	return nil
}
