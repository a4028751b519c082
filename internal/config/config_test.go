package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tstohn/scdemux/internal/apperr"
)

func TestFromFlagsRequiredFields(t *testing.T) {
	args := []string{
		"-Pattern", "[ACGT][NNNN]",
		"-Mismatches", "0,1",
		"-ReadFileName", "reads.fastq",
	}
	cfg, err := FromFlags(args)
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if cfg.PatternName != "pattern" {
		t.Errorf("PatternName default = %q, want %q", cfg.PatternName, "pattern")
	}
	if cfg.Threads != 1 {
		t.Errorf("Threads default = %d, want 1", cfg.Threads)
	}
	if cfg.BatchSize != 10000 {
		t.Errorf("BatchSize default = %d, want 10000", cfg.BatchSize)
	}
	if cfg.PrefilterThreshold != 4096 {
		t.Errorf("PrefilterThreshold default = %d, want 4096", cfg.PrefilterThreshold)
	}
}

func TestFromFlagsMissingReadFileNameFails(t *testing.T) {
	_, err := FromFlags([]string{"-Pattern", "[ACGT]", "-Mismatches", "0"})
	if err == nil {
		t.Fatal("expected an error for missing ReadFileName")
	}
	var ce *apperr.ConfigError
	if !stderrors.As(err, &ce) {
		t.Errorf("expected a *apperr.ConfigError, got %T: %v", err, err)
	}
}

func TestReadConfigMissingFileIsIoError(t *testing.T) {
	_, err := ReadConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
	var ie *apperr.IoError
	if !stderrors.As(err, &ie) {
		t.Errorf("expected a *apperr.IoError, got %T: %v", err, err)
	}
}

func TestFromFlagsMissingPatternFails(t *testing.T) {
	_, err := FromFlags([]string{"-ReadFileName", "reads.fastq"})
	if err == nil {
		t.Fatal("expected an error for missing PatternLine/MismatchLine")
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	body := `{
		"PatternLine": "[ACGT]",
		"MismatchLine": "0",
		"ReadFileName": "from-file.fastq",
		"Threads": 4
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := FromFlags([]string{
		"-Config", path,
		"-ReadFileName", "from-flag.fastq",
	})
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if cfg.ReadFileName != "from-flag.fastq" {
		t.Errorf("ReadFileName = %q, want flag value to win", cfg.ReadFileName)
	}
	if cfg.Threads != 4 {
		t.Errorf("Threads = %d, want config file value 4 preserved", cfg.Threads)
	}
}

func TestPatternSpecsSinglePattern(t *testing.T) {
	cfg := &Config{
		PatternName:  "p1",
		PatternLine:  "[ACGT]",
		MismatchLine: "0",
		BarcodeFile:  "dict.txt",
	}
	specs := cfg.PatternSpecs()
	if len(specs) != 1 {
		t.Fatalf("got %d specs, want 1", len(specs))
	}
	want := PatternSpec{Name: "p1", PatternLine: "[ACGT]", MismatchLine: "0", BarcodeFile: "dict.txt"}
	if specs[0] != want {
		t.Errorf("spec = %+v, want %+v", specs[0], want)
	}
}

func TestPatternSpecsMultiplePatternsIgnoresLegacyFields(t *testing.T) {
	cfg := &Config{
		PatternLine: "[ACGT]", // should be ignored since Patterns is set
		Patterns: []PatternSpec{
			{Name: "a", PatternLine: "[AAAA]", MismatchLine: "0"},
			{Name: "b", PatternLine: "[CCCC]", MismatchLine: "1"},
		},
	}
	specs := cfg.PatternSpecs()
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}
	if specs[0].Name != "a" || specs[1].Name != "b" {
		t.Errorf("unexpected spec order/content: %+v", specs)
	}
}

func TestValidateRejectsPatternSpecMissingName(t *testing.T) {
	cfg := &Config{
		ReadFileName: "reads.fastq",
		Threads:      1,
		Patterns: []PatternSpec{
			{PatternLine: "[ACGT]", MismatchLine: "0"},
		},
	}
	if err := validate(cfg); err == nil {
		t.Fatal("expected an error for a PatternSpec with no Name")
	}
}

func TestValidateRejectsZeroThreads(t *testing.T) {
	cfg := &Config{
		PatternLine:  "[ACGT]",
		MismatchLine: "0",
		ReadFileName: "reads.fastq",
		Threads:      0,
	}
	if err := validate(cfg); err == nil {
		t.Fatal("expected an error for Threads < 1")
	}
}

func TestReadConfigDecodesJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	body := `{"PatternLine": "[ACGT]", "Threads": 8}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := ReadConfig(path)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.PatternLine != "[ACGT]" || cfg.Threads != 8 {
		t.Errorf("unexpected decoded config: %+v", cfg)
	}
}
