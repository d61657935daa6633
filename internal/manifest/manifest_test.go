package manifest

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func sampleManifest() *Manifest {
	m := New("responsive")
	m.BuildInfo = &BuildInfo{Workers: 4, SkipOriginalProcessing: true}
	m.Assets["photos/bio"] = Asset{
		Original: OriginalInfo{
			Kind: "file", Width: 1280, Height: 853,
			Format: "jpeg", Size: 100000, Hash: "0123456789abcdef",
		},
		AspectRatio: 1.5006,
		Variants: []Variant{
			{Format: "jpeg", Width: 300, Height: 200, Size: 5000, Path: "a1b2c3d4e5-300.jpeg", URL: "/img/a1b2c3d4e5-300.jpeg", Action: "process", Reason: "width-mismatch"},
			{Format: "jpeg", Width: 1280, Height: 853, Size: 100000, Path: "a1b2c3d4e5-1280.jpeg", URL: "/img/a1b2c3d4e5-1280.jpeg", Action: "copy", Reason: "eligible"},
		},
	}
	return m
}

func TestManifestRoundtrip(t *testing.T) {
	m := sampleManifest()

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := WriteJSON(m, path); err != nil {
		t.Fatalf("write: %v", err)
	}

	m2, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if m2.Version != SupportedManifestVersion {
		t.Errorf("version: got %d, want %d", m2.Version, SupportedManifestVersion)
	}
	if m2.Preset != "responsive" {
		t.Errorf("preset: got %q", m2.Preset)
	}
	if m2.BuildInfo == nil || !m2.BuildInfo.SkipOriginalProcessing {
		t.Fatal("build_info missing or wrong")
	}

	a, ok := m2.Assets["photos/bio"]
	if !ok {
		t.Fatal("asset photos/bio missing")
	}
	if len(a.Variants) != 2 {
		t.Fatalf("variants: got %d", len(a.Variants))
	}
	if a.Variants[1].Action != ActionCopy {
		t.Errorf("variant action: got %q", a.Variants[1].Action)
	}
}

func TestComputeStatsCountsCopies(t *testing.T) {
	m := sampleManifest()
	m.Stats.Failed = 2
	m.ComputeStats()

	s := m.Stats
	if s.TotalAssets != 1 || s.TotalVariants != 2 {
		t.Errorf("totals: %+v", s)
	}
	if s.Copied != 1 || s.CopiedBytes != 100000 {
		t.Errorf("copied: got %d (%d bytes)", s.Copied, s.CopiedBytes)
	}
	if s.TotalOutputBytes != 105000 {
		t.Errorf("output bytes: got %d", s.TotalOutputBytes)
	}
	if s.Failed != 2 {
		t.Errorf("failed not preserved: got %d", s.Failed)
	}
}

func TestManifestIgnoresUnknownFields(t *testing.T) {
	// Simulate a future manifest with extra fields.
	raw := `{
		"version": 1,
		"generated_at": "2025-01-01T00:00:00Z",
		"preset": "test",
		"base_path": "./",
		"future_field": "should be ignored",
		"build_info": { "workers": 8, "skip_original_processing": true, "new_flag": true },
		"assets": {},
		"stats": { "total_input_bytes": 0, "total_output_bytes": 0, "total_assets": 0, "total_variants": 0, "new_stat": 42 }
	}`

	var m Manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal with unknown fields: %v", err)
	}
	if m.Version != 1 {
		t.Errorf("version: got %d", m.Version)
	}
	if m.BuildInfo == nil || m.BuildInfo.Workers != 8 {
		t.Error("build_info not parsed correctly")
	}
}

func TestReadJSONErrors(t *testing.T) {
	if _, err := ReadJSON(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing manifest")
	}
}
