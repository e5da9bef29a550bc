package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudmirror/cloudmirror/internal/config"
	"github.com/cloudmirror/cloudmirror/internal/target"
)

const minimalTargets = `
targets:
  - name: wasabi
    kind: s3
    endpoint: https://s3.wasabisys.com
    bucket: mirror
`

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte("source_dir: /data\n" + minimalTargets))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.PartSize != 8*1024*1024 {
		t.Errorf("PartSize = %d, want 8MiB", cfg.PartSize)
	}
	if cfg.PartConcurrency != 10 {
		t.Errorf("PartConcurrency = %d, want 10", cfg.PartConcurrency)
	}
	if cfg.URLExpiry != 7*24*time.Hour {
		t.Errorf("URLExpiry = %v, want 168h", cfg.URLExpiry)
	}
	if cfg.ReportPath != "presigned_urls.txt" {
		t.Errorf("ReportPath = %q", cfg.ReportPath)
	}
	if cfg.ManifestPath != "mirror-manifest.json" {
		t.Errorf("ManifestPath = %q", cfg.ManifestPath)
	}
	if cfg.TransferTimeout != 0 {
		t.Errorf("TransferTimeout = %v, want 0", cfg.TransferTimeout)
	}

	tc := cfg.Targets[0]
	if !tc.Enabled {
		t.Error("target should default to enabled")
	}
	if tc.MaxBytes != 0 {
		t.Errorf("MaxBytes = %d, want 0", tc.MaxBytes)
	}
	if tc.Kind != target.KindS3 {
		t.Errorf("Kind = %q", tc.Kind)
	}
}

func TestParseFull(t *testing.T) {
	doc := `
source_dir: /data/release
exclude:
  - "*.tmp"
  - "build/"
part_size: 16MiB
part_concurrency: 4
transfer_timeout: 2h
url_expiry: 24h
report_path: links.txt
targets:
  - name: r2
    kind: s3
    endpoint: https://abc.r2.cloudflarestorage.com
    bucket: mirror
    region: auto
    path_style: true
    max_size: 9.5GiB
    max_retries: 3
    retry_backoff: exponential
  - name: oracle
    kind: s3
    endpoint: https://ns.compat.objectstorage.us-ashburn-1.oraclecloud.com
    bucket: mirror
    enabled: false
`
	cfg, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.SourceDir != "/data/release" {
		t.Errorf("SourceDir = %q", cfg.SourceDir)
	}
	if len(cfg.Exclude) != 2 {
		t.Errorf("Exclude = %v", cfg.Exclude)
	}
	if cfg.PartSize != 16*1024*1024 {
		t.Errorf("PartSize = %d", cfg.PartSize)
	}
	if cfg.TransferTimeout != 2*time.Hour {
		t.Errorf("TransferTimeout = %v", cfg.TransferTimeout)
	}
	if cfg.URLExpiry != 24*time.Hour {
		t.Errorf("URLExpiry = %v", cfg.URLExpiry)
	}

	r2 := cfg.Targets[0]
	if r2.MaxBytes != int64(9.5*1024*1024*1024) {
		t.Errorf("MaxBytes = %d", r2.MaxBytes)
	}
	if !r2.PathStyle {
		t.Error("PathStyle should be true")
	}
	if r2.MaxRetries != 3 || r2.RetryBackoff != "exponential" {
		t.Errorf("retry policy = %d/%q", r2.MaxRetries, r2.RetryBackoff)
	}
	if cfg.Targets[1].Enabled {
		t.Error("oracle should be disabled")
	}
}

func TestParseEnvExpansion(t *testing.T) {
	t.Setenv("MIRROR_ACCESS_KEY", "AKIAEXAMPLE")
	t.Setenv("MIRROR_SECRET_KEY", "sekret")

	doc := `
source_dir: /data
targets:
  - name: wasabi
    bucket: mirror
    access_key_id: ${MIRROR_ACCESS_KEY}
    secret_access_key: ${MIRROR_SECRET_KEY}
`
	cfg, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tc := cfg.Targets[0]
	if tc.AccessKeyID != "AKIAEXAMPLE" || tc.SecretAccessKey != "sekret" {
		t.Errorf("credentials not expanded: %q / %q", tc.AccessKeyID, tc.SecretAccessKey)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"missing source dir", minimalTargets, "source_dir is required"},
		{"no targets", "source_dir: /data\n", "at least one target"},
		{
			"bad part size",
			"source_dir: /data\npart_size: lots\n" + minimalTargets,
			"part_size",
		},
		{
			"bad duration",
			"source_dir: /data\nurl_expiry: fortnight\n" + minimalTargets,
			"url_expiry",
		},
		{
			"unknown field",
			"source_dir: /data\nsauce_dir: /data\n" + minimalTargets,
			"sauce_dir",
		},
		{
			"unknown kind",
			"source_dir: /data\ntargets:\n  - name: a\n    kind: ftp\n    bucket: b\n",
			"unknown kind",
		},
		{
			"missing bucket",
			"source_dir: /data\ntargets:\n  - name: a\n    kind: s3\n",
			"bucket is required",
		},
		{
			"duplicate names",
			"source_dir: /data\ntargets:\n" +
				"  - name: a\n    bucket: b\n" +
				"  - name: a\n    bucket: c\n",
			"duplicate target name",
		},
		{
			"bad backoff",
			"source_dir: /data\ntargets:\n  - name: a\n    bucket: b\n    retry_backoff: cubic\n",
			"retry_backoff",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.yaml")
	doc := "source_dir: /data\n" + minimalTargets
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Targets[0].Name != "wasabi" {
		t.Errorf("Name = %q", cfg.Targets[0].Name)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
