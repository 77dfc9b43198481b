package brand

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brandchat-io/brandchat/datatypes"
)

// storeFile is the on-disk shape of the registry snapshot.
type storeFile struct {
	Brands  map[string]*datatypes.Brand       `json:"brands"`
	Configs map[string]*datatypes.BrandConfig `json:"configs"`
}

// FileStore persists the brand registry as a single JSON file. Writes go
// through a temp file and rename so a crash mid-write cannot corrupt the
// snapshot.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to the given path. The parent
// directory is created on first save if missing.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot from disk. A missing file is not an error and
// returns empty maps, which triggers default brand creation upstream.
func (fs *FileStore) Load() (map[string]*datatypes.Brand, map[string]*datatypes.BrandConfig, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("No brand snapshot on disk, starting fresh", "path", fs.path)
			return map[string]*datatypes.Brand{}, map[string]*datatypes.BrandConfig{}, nil
		}
		return nil, nil, fmt.Errorf("failed to read brand snapshot: %w", err)
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse brand snapshot %s: %w", fs.path, err)
	}
	if file.Brands == nil {
		file.Brands = map[string]*datatypes.Brand{}
	}
	if file.Configs == nil {
		file.Configs = map[string]*datatypes.BrandConfig{}
	}
	slog.Info("Loaded brand snapshot", "path", fs.path, "brands", len(file.Brands))
	return file.Brands, file.Configs, nil
}

// Save writes the snapshot atomically.
func (fs *FileStore) Save(brands map[string]*datatypes.Brand, configs map[string]*datatypes.BrandConfig) error {
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return fmt.Errorf("failed to create brand snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(storeFile{Brands: brands, Configs: configs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal brand snapshot: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write brand snapshot: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("failed to replace brand snapshot: %w", err)
	}
	return nil
}
