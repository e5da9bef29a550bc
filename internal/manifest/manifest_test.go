package manifest_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudmirror/cloudmirror/internal/batch"
	"github.com/cloudmirror/cloudmirror/internal/capacity"
	"github.com/cloudmirror/cloudmirror/internal/engine"
	"github.com/cloudmirror/cloudmirror/internal/manifest"
	"github.com/cloudmirror/cloudmirror/internal/target"
)

func sampleRun() ([]batch.Item, []*target.Handle, *engine.Result) {
	items := []batch.Item{
		{Key: "a.bin", Path: "/src/a.bin", Size: 1024},
		{Key: "b.bin", Path: "/src/b.bin", Size: 2048},
	}
	handles := []*target.Handle{
		{Config: target.Config{Name: "wasabi", Kind: target.KindS3, Endpoint: "https://s3.wasabisys.com", Bucket: "mirror", Enabled: true}},
		{Config: target.Config{Name: "r2", Kind: target.KindS3, Endpoint: "https://abc.r2.cloudflarestorage.com", Bucket: "mirror", Enabled: true}},
	}
	res := &engine.Result{
		Ledger: engine.Ledger{"wasabi": {"a.bin", "b.bin"}},
		States: []engine.TargetState{
			{
				Name:     "wasabi",
				Admitted: true,
				Decision: capacity.Decision{Admitted: true, Reason: "fits, 1GiB remaining"},
			},
			{
				Name:     "r2",
				Admitted: false,
				Decision: capacity.Decision{Admitted: false, Reason: "exceeds quota by 3KiB"},
			},
		},
		FileCount:    2,
		PendingBytes: 3072,
	}
	return items, handles, res
}

func TestFromRun(t *testing.T) {
	items, handles, res := sampleRun()

	m := manifest.FromRun("run_20260826T143012Z_6f2c9a1b", "dev", "/src", items, handles, res)

	if m.SchemaVersion != manifest.SchemaVersion {
		t.Errorf("SchemaVersion = %d", m.SchemaVersion)
	}
	if m.FileCount != 2 || m.TotalBytes != 3072 {
		t.Errorf("FileCount/TotalBytes = %d/%d", m.FileCount, m.TotalBytes)
	}
	if m.Files["a.bin"] != 1024 || m.Files["b.bin"] != 2048 {
		t.Errorf("Files = %v", m.Files)
	}
	if len(m.Targets) != 2 {
		t.Fatalf("Targets = %v", m.Targets)
	}

	wasabi := m.Targets[0]
	if !wasabi.Admitted || len(wasabi.Uploaded) != 2 {
		t.Errorf("wasabi = %+v", wasabi)
	}
	if wasabi.Endpoint != "https://s3.wasabisys.com" || wasabi.Bucket != "mirror" {
		t.Errorf("wasabi descriptor = %q / %q", wasabi.Endpoint, wasabi.Bucket)
	}

	r2 := m.Targets[1]
	if r2.Admitted || len(r2.Uploaded) != 0 {
		t.Errorf("r2 = %+v", r2)
	}
	if r2.Detail != "exceeds quota by 3KiB" {
		t.Errorf("r2.Detail = %q", r2.Detail)
	}
}

func TestFromRunFailureDetails(t *testing.T) {
	items, handles, _ := sampleRun()
	res := &engine.Result{
		Ledger: engine.Ledger{},
		States: []engine.TargetState{
			{Name: "wasabi", Disabled: true},
			{Name: "r2", InitErr: errors.New("bad credentials")},
		},
	}

	m := manifest.FromRun("run_20260826T143012Z_6f2c9a1b", "dev", "/src", items, handles, res)

	if m.Targets[0].Detail != "disabled" {
		t.Errorf("disabled detail = %q", m.Targets[0].Detail)
	}
	if m.Targets[1].Detail != "bad credentials" {
		t.Errorf("init failure detail = %q", m.Targets[1].Detail)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	items, handles, res := sampleRun()
	m := manifest.FromRun("run_20260826T143012Z_6f2c9a1b", "dev", "/src", items, handles, res)

	data, err := manifest.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	back, err := manifest.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.RunID != m.RunID || back.TotalBytes != m.TotalBytes {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if len(back.Files) != len(m.Files) || len(back.Targets) != len(m.Targets) {
		t.Errorf("round trip lost collections: %+v", back)
	}

	// Same content marshals to identical bytes.
	again, err := manifest.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("marshaling the same manifest twice produced different bytes")
	}

	if _, err := manifest.Marshal(nil); err == nil {
		t.Error("Marshal(nil) should fail")
	}
	if _, err := manifest.Unmarshal([]byte("not json")); err == nil {
		t.Error("Unmarshal of garbage should fail")
	}
}

func TestSave(t *testing.T) {
	items, handles, res := sampleRun()
	m := manifest.FromRun("run_20260826T143012Z_6f2c9a1b", "dev", "/src", items, handles, res)

	path := filepath.Join(t.TempDir(), "mirror-manifest.json")
	if err := manifest.Save(path, m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	back, err := manifest.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.RunID != m.RunID {
		t.Errorf("RunID = %q", back.RunID)
	}
}
