// Package manifest records what a replication run did, as deterministic
// indented JSON written next to the link report. Repeated runs over the
// same directory can be diffed to see what changed between them.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cloudmirror/cloudmirror/internal/batch"
	"github.com/cloudmirror/cloudmirror/internal/engine"
	"github.com/cloudmirror/cloudmirror/internal/target"
)

// SchemaVersion identifies the manifest layout.
const SchemaVersion = 1

// Manifest is the record of one replication run.
type Manifest struct {
	SchemaVersion int              `json:"schema_version"`
	ToolVersion   string           `json:"tool_version"`
	RunID         string           `json:"run_id"`
	CreatedAt     string           `json:"created_at"`
	SourceDir     string           `json:"source_dir"`
	FileCount     int              `json:"file_count"`
	TotalBytes    int64            `json:"total_bytes"`
	Files         map[string]int64 `json:"files"` // key -> size in bytes
	Targets       []TargetResult   `json:"targets"`
}

// TargetResult summarizes one target's part in the run.
type TargetResult struct {
	Name     string   `json:"name"`
	Endpoint string   `json:"endpoint"`
	Bucket   string   `json:"bucket"`
	Admitted bool     `json:"admitted"`
	Detail   string   `json:"detail,omitempty"`
	Uploaded []string `json:"uploaded,omitempty"`
}

// FromRun assembles a manifest from a finished run. Handles and states are
// matched by name; handles carry the connection descriptor, states and the
// ledger carry what happened.
func FromRun(runID, toolVersion string, sourceDir string, items []batch.Item, handles []*target.Handle, res *engine.Result) *Manifest {
	m := &Manifest{
		SchemaVersion: SchemaVersion,
		ToolVersion:   toolVersion,
		RunID:         runID,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		SourceDir:     sourceDir,
		FileCount:     len(items),
		TotalBytes:    batch.TotalSize(items),
		Files:         make(map[string]int64, len(items)),
	}
	for _, it := range items {
		m.Files[it.Key] = it.Size
	}

	byName := make(map[string]*target.Handle, len(handles))
	for _, h := range handles {
		byName[h.Config.Name] = h
	}

	for _, st := range res.States {
		tr := TargetResult{
			Name:     st.Name,
			Admitted: st.Admitted,
			Uploaded: res.Succeeded(st.Name),
		}
		if h, ok := byName[st.Name]; ok {
			tr.Endpoint = h.Config.EndpointDisplay()
			tr.Bucket = h.Config.Bucket
		}
		switch {
		case st.Disabled:
			tr.Detail = "disabled"
		case st.InitErr != nil:
			tr.Detail = st.InitErr.Error()
		case st.BucketErr != nil:
			tr.Detail = st.BucketErr.Error()
		default:
			tr.Detail = st.Decision.Reason
		}
		m.Targets = append(m.Targets, tr)
	}

	return m
}

// Marshal serializes a Manifest to deterministic, indented JSON. Map keys
// are emitted in sorted order by encoding/json, so equal runs produce
// byte-equal output apart from run ID and timestamp.
func Marshal(m *Manifest) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest: cannot marshal nil manifest")
	}
	return json.MarshalIndent(m, "", "  ")
}

// Unmarshal deserializes JSON bytes into a Manifest.
func Unmarshal(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: unmarshal failed: %w", err)
	}
	return &m, nil
}

// Save writes the manifest to path, replacing any previous run's file.
func Save(path string, m *Manifest) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("manifest: write %q: %w", path, err)
	}
	return nil
}
