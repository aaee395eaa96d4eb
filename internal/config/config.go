package config

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"dirkeep/internal/dk"
)

// Config represents a dirkeep configuration file.
type Config struct {
	Directories    []DirectoryConfig `toml:"directories" json:"directories"`
	BackupRootPath string            `toml:"backup_root_path,omitempty" json:"backup_root_path,omitempty"`
	LogDir         string            `toml:"log_dir,omitempty" json:"log_dir,omitempty"`
	Archive        ArchiveConfig     `toml:"archive" json:"archive"`
	Database       DatabaseConfig    `toml:"database" json:"database"`
}

// DirectoryConfig is one configured directory target.
type DirectoryConfig struct {
	Path               string `toml:"path" json:"path"`
	IncludeDirectories bool   `toml:"include_directories" json:"include_directories"`
	Action             string `toml:"action" json:"action"` // enumerate|list, purge|clean, measure|analyze, archive|backup
}

// ArchiveConfig tunes archive jobs.
type ArchiveConfig struct {
	Compression string   `toml:"compression,omitempty" json:"compression,omitempty"`   // "store" (default) or "deflate"
	FileMode    string   `toml:"file_mode,omitempty" json:"file_mode,omitempty"`       // octal, defaults to 0644
	Exclude     []string `toml:"exclude,omitempty" json:"exclude,omitempty"`           // glob patterns
	ExcludeFrom string   `toml:"exclude_from,omitempty" json:"exclude_from,omitempty"` // file with one pattern per line
}

// DatabaseConfig represents configuration for the run-history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type,omitempty" json:"type,omitempty"`         // "sqlite", "memory", or "none" (default)
	DataDir string `toml:"data_dir,omitempty" json:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a starter Config rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BackupRootPath: filepath.Join(baseDir, "archives"),
		LogDir:         filepath.Join(baseDir, "log"),
		Archive: ArchiveConfig{
			Compression: string(dk.CompressionStore),
			FileMode:    "0644",
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// RunConfig converts the file representation into a validated dk.RunConfig.
// Entry paths and the archive root are made absolute. Every problem is reported
// as a dk.ConfigError.
func (c *Config) RunConfig() (dk.RunConfig, error) {
	var rc dk.RunConfig

	for i, d := range c.Directories {
		field := fmt.Sprintf("directories[%d]", i)
		if strings.TrimSpace(d.Path) == "" {
			return rc, dk.NewConfigError(field+".path", "missing field `path`", nil)
		}
		if strings.TrimSpace(d.Action) == "" {
			return rc, dk.NewConfigError(field+".action", "missing field `action`", nil)
		}
		action, err := dk.ParseActionKind(d.Action)
		if err != nil {
			return rc, dk.NewConfigError(field+".action", "invalid action", err)
		}
		abs, err := filepath.Abs(d.Path)
		if err != nil {
			return rc, dk.NewConfigError(field+".path", "resolving path", err)
		}
		rc.Entries = append(rc.Entries, dk.DirectoryEntry{
			Path:                  abs,
			IncludeSubdirectories: d.IncludeDirectories,
			Action:                action,
		})
	}

	if c.BackupRootPath != "" {
		abs, err := filepath.Abs(c.BackupRootPath)
		if err != nil {
			return rc, dk.NewConfigError("backup_root_path", "resolving path", err)
		}
		rc.ArchiveDestinationRoot = abs
	}

	if err := c.validateArchive(); err != nil {
		return rc, err
	}
	if err := rc.Validate(); err != nil {
		return rc, err
	}
	return rc, nil
}

func (c *Config) validateArchive() error {
	switch dk.Compression(c.Archive.Compression) {
	case "", dk.CompressionStore, dk.CompressionDeflate:
	default:
		return dk.NewConfigError("archive.compression", fmt.Sprintf("unknown compression %q", c.Archive.Compression), nil)
	}
	if _, err := c.Archive.Mode(); err != nil {
		return dk.NewConfigError("archive.file_mode", "invalid file mode", err)
	}
	return nil
}

// Mode parses FileMode as an octal permission. Empty means dk.DefaultArchiveFileMode.
func (a ArchiveConfig) Mode() (fs.FileMode, error) {
	if strings.TrimSpace(a.FileMode) == "" {
		return dk.DefaultArchiveFileMode, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(a.FileMode), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", a.FileMode, err)
	}
	if v == 0 || v > 0o777 {
		return 0, fmt.Errorf("file mode %q out of range", a.FileMode)
	}
	return fs.FileMode(v), nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a TOML Config from the provided reader. Keys that do not map to
// a Config field are rejected.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, dk.NewConfigError("", "failed to decode config", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, dk.NewConfigError("", "unknown keys: "+strings.Join(keys, ", "), nil)
	}
	return &cfg, nil
}

// ReadJSON decodes a Config in the legacy JSON layout.
func (m *Manager) ReadJSON(r io.Reader) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, dk.NewConfigError("", "failed to decode config", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path. Files ending in
// .json are decoded as JSON, everything else as TOML.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dk.NewConfigError("", "failed to open config file", err)
	}
	defer f.Close()

	m := &Manager{}
	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".json") {
		cfg, err = m.ReadJSON(f)
	} else {
		cfg, err = m.Read(f)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
