// Package config loads the YAML run configuration: the source directory,
// transfer tuning, and the set of storage targets. Credential values may
// reference environment variables as ${VAR}; they are expanded before
// parsing so secrets stay out of the file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/cloudmirror/cloudmirror/internal/target"
)

// Defaults applied when the file leaves a knob unset.
const (
	DefaultPartSize        = "8MiB"
	DefaultPartConcurrency = 10
	DefaultURLExpiry       = 7 * 24 * time.Hour
	DefaultReportPath      = "presigned_urls.txt"
	DefaultManifestPath    = "mirror-manifest.json"
)

// Config is the fully resolved run configuration.
type Config struct {
	SourceDir       string
	Exclude         []string
	PartSize        int64
	PartConcurrency int
	TransferTimeout time.Duration
	URLExpiry       time.Duration
	ReportPath      string
	ManifestPath    string
	Targets         []target.Config
}

// fileConfig mirrors the YAML document. Sizes and durations are strings so
// humans can write "9.5GiB" and "2h" instead of byte and nanosecond counts.
type fileConfig struct {
	SourceDir       string       `yaml:"source_dir"`
	Exclude         []string     `yaml:"exclude"`
	PartSize        string       `yaml:"part_size"`
	PartConcurrency int          `yaml:"part_concurrency"`
	TransferTimeout string       `yaml:"transfer_timeout"`
	URLExpiry       string       `yaml:"url_expiry"`
	ReportPath      string       `yaml:"report_path"`
	ManifestPath    string       `yaml:"manifest_path"`
	Targets         []fileTarget `yaml:"targets"`
}

type fileTarget struct {
	Name            string `yaml:"name"`
	Kind            string `yaml:"kind"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	StorageAccount  string `yaml:"storage_account"`
	AccountKey      string `yaml:"account_key"`
	ProjectID       string `yaml:"project_id"`
	PathStyle       bool   `yaml:"path_style"`
	MaxSize         string `yaml:"max_size"`
	Enabled         *bool  `yaml:"enabled"`
	MaxRetries      int    `yaml:"max_retries"`
	RetryBackoff    string `yaml:"retry_backoff"`
}

// Load reads, env-expands, parses, and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse resolves a YAML document into a Config.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	cfg := &Config{
		SourceDir:       fc.SourceDir,
		Exclude:         fc.Exclude,
		PartConcurrency: fc.PartConcurrency,
		ReportPath:      fc.ReportPath,
		ManifestPath:    fc.ManifestPath,
	}

	if cfg.SourceDir == "" {
		return nil, fmt.Errorf("config: source_dir is required")
	}
	if len(fc.Targets) == 0 {
		return nil, fmt.Errorf("config: at least one target is required")
	}

	if fc.PartSize == "" {
		fc.PartSize = DefaultPartSize
	}
	partSize, err := units.RAMInBytes(fc.PartSize)
	if err != nil {
		return nil, fmt.Errorf("config: part_size %q: %w", fc.PartSize, err)
	}
	cfg.PartSize = partSize

	if cfg.PartConcurrency <= 0 {
		cfg.PartConcurrency = DefaultPartConcurrency
	}
	if cfg.ReportPath == "" {
		cfg.ReportPath = DefaultReportPath
	}
	if cfg.ManifestPath == "" {
		cfg.ManifestPath = DefaultManifestPath
	}

	cfg.TransferTimeout, err = parseDuration(fc.TransferTimeout, 0)
	if err != nil {
		return nil, fmt.Errorf("config: transfer_timeout: %w", err)
	}
	cfg.URLExpiry, err = parseDuration(fc.URLExpiry, DefaultURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("config: url_expiry: %w", err)
	}

	seen := make(map[string]bool, len(fc.Targets))
	for i, ft := range fc.Targets {
		tc, err := resolveTarget(ft)
		if err != nil {
			return nil, fmt.Errorf("config: target %d (%q): %w", i, ft.Name, err)
		}
		if seen[tc.Name] {
			return nil, fmt.Errorf("config: duplicate target name %q", tc.Name)
		}
		seen[tc.Name] = true
		cfg.Targets = append(cfg.Targets, tc)
	}

	return cfg, nil
}

func resolveTarget(ft fileTarget) (target.Config, error) {
	tc := target.Config{
		Name:            ft.Name,
		Kind:            ft.Kind,
		Endpoint:        ft.Endpoint,
		Region:          ft.Region,
		Bucket:          ft.Bucket,
		AccessKeyID:     ft.AccessKeyID,
		SecretAccessKey: ft.SecretAccessKey,
		StorageAccount:  ft.StorageAccount,
		AccountKey:      ft.AccountKey,
		ProjectID:       ft.ProjectID,
		PathStyle:       ft.PathStyle,
		MaxRetries:      ft.MaxRetries,
		RetryBackoff:    ft.RetryBackoff,
	}

	if tc.Name == "" {
		return tc, fmt.Errorf("name is required")
	}
	if tc.Kind == "" {
		tc.Kind = target.KindS3
	}
	switch tc.Kind {
	case target.KindS3, target.KindGCS, target.KindAzure, target.KindMemory:
	default:
		return tc, fmt.Errorf("unknown kind %q", tc.Kind)
	}
	if tc.Bucket == "" {
		return tc, fmt.Errorf("bucket is required")
	}
	if tc.Kind == target.KindAzure && tc.StorageAccount == "" && tc.Endpoint == "" {
		return tc, fmt.Errorf("storage_account or endpoint is required for azure targets")
	}
	switch tc.RetryBackoff {
	case "", "exponential", "linear":
	default:
		return tc, fmt.Errorf("retry_backoff must be exponential or linear, got %q", tc.RetryBackoff)
	}

	if ft.MaxSize != "" {
		max, err := units.RAMInBytes(ft.MaxSize)
		if err != nil {
			return tc, fmt.Errorf("max_size %q: %w", ft.MaxSize, err)
		}
		tc.MaxBytes = max
	}

	// Targets are enabled unless the file says otherwise.
	tc.Enabled = ft.Enabled == nil || *ft.Enabled

	return tc, nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative: %s", s)
	}
	return d, nil
}
