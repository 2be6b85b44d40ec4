package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"rpucella.net/red-drive/internal/util"
)

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
}

type GCSConfig struct {
	CredentialsFile string `yaml:"credentialsFile"`
}

// BackendConfig selects the persistence medium. Location is a directory
// for local, a bucket for gcs and minio, a database directory for badger.
type BackendConfig struct {
	Type     string        `yaml:"type"`
	Location string        `yaml:"location"`
	Prefix   string        `yaml:"prefix"`
	Timeout  time.Duration `yaml:"timeout"`
	MinIO    MinIOConfig   `yaml:"minio"`
	GCS      GCSConfig     `yaml:"gcs"`
}

type CatalogConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type UploadConfig struct {
	Workers int `yaml:"workers"`
}

type DescribeConfig struct {
	Provider    string        `yaml:"provider"` // openai, ollama or none
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseURL"`
	Temperature float32       `yaml:"temperature"`
	Placeholder string        `yaml:"placeholder"`
	Timeout     time.Duration `yaml:"timeout"`
}

type AdminConfig struct {
	PasswordHash string `yaml:"passwordHash"` // bcrypt
	Password     string `yaml:"password"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

type ArchiveConfig struct {
	Name    string `yaml:"name"`
	Missing string `yaml:"missing"` // skip or abort
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Upload   UploadConfig   `yaml:"upload"`
	Describe DescribeConfig `yaml:"describe"`
	Admin    AdminConfig    `yaml:"admin"`
	Server   ServerConfig   `yaml:"server"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Logger   LoggerConfig   `yaml:"logger"`
}

func Default() Config {
	return Config{
		Backend: BackendConfig{
			Type:     "local",
			Location: "resources",
			Timeout:  50 * time.Second,
		},
		Catalog:  CatalogConfig{TTL: 5 * time.Minute},
		Upload:   UploadConfig{Workers: 4},
		Describe: DescribeConfig{
			Provider:    "none",
			Model:       "gpt-4o",
			Temperature: 0.7,
			Placeholder: "(No description was generated for this resource.)",
			Timeout:     120 * time.Second,
		},
		Server:  ServerConfig{Address: ":8080"},
		Archive: ArchiveConfig{Name: "RedDrive_Archive.zip", Missing: "skip"},
		Logger:  LoggerConfig{Level: "info", Format: "text"},
	}
}

// Parse overlays YAML content on the defaults.
func Parse(content []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the file named by path, or the default config file when path
// is empty. A missing ~/.reddrive/config.yml yields the defaults; a missing
// file named by path or $REDDRIVE_CONFIG is an error.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		explicit = os.Getenv(util.CONFIG_ENV) != ""
		p, err := util.ConfigFile()
		if errors.Is(err, util.ErrNoConfigFolder) {
			return Default(), nil
		}
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	return Parse(content)
}

func (c Config) Validate() error {
	switch c.Backend.Type {
	case "local", "badger", "memory":
	case "gcs", "minio":
		if c.Backend.Location == "" {
			return fmt.Errorf("backend %s needs a bucket location", c.Backend.Type)
		}
	default:
		return fmt.Errorf("unknown backend type %q", c.Backend.Type)
	}
	switch c.Describe.Provider {
	case "", "none", "openai", "ollama":
	default:
		return fmt.Errorf("unknown describe provider %q", c.Describe.Provider)
	}
	switch c.Archive.Missing {
	case "skip", "abort":
	default:
		return fmt.Errorf("archive.missing must be skip or abort, not %q", c.Archive.Missing)
	}
	if c.Upload.Workers < 1 {
		return fmt.Errorf("upload.workers must be at least 1")
	}
	if c.Catalog.TTL < 0 {
		return fmt.Errorf("catalog.ttl must not be negative")
	}
	return nil
}
