package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadTryRange(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg := DefaultConfig()
	cfg.Execution.StartTry = 3
	cfg.Execution.TryTimes = 1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for start_try > try_times")
	}
}

func TestValidateRequiresParallelTasks(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg := DefaultConfig()
	cfg.Execution.ParallelTasks = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for parallel_tasks == 0")
	}
}

func TestValidateRequiresCredentials(t *testing.T) {
	os.Unsetenv("OPENAI_API_KEY")

	cfg := DefaultConfig()
	cfg.Model.Provider = "openai"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when OPENAI_API_KEY is absent")
	}
}

func TestLoadExpandsEnvAndRejectsUnknownFields(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Unsetenv("OPENAI_API_KEY")
	os.Setenv("CTF_MODEL_NAME", "gpt-4o-mini")
	defer os.Unsetenv("CTF_MODEL_NAME")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
dataset:
  challenges_path: challenges.json
execution:
  try_times: 2
  start_try: 1
  parallel_tasks: 2
model:
  provider: openai
  name: ${CTF_MODEL_NAME}
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "gpt-4o-mini" {
		t.Fatalf("expected env-expanded model name, got %q", cfg.Model.Name)
	}
	if cfg.Execution.TryTimes != 2 {
		t.Fatalf("expected try_times=2, got %d", cfg.Execution.TryTimes)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("dataset:\n  unknown_field: true\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestSaveRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Dataset.Name = "cybench"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Dataset.Name != "cybench" {
		t.Fatalf("expected dataset name to round-trip, got %q", loaded.Dataset.Name)
	}
}

func TestBenchmarkTotal(t *testing.T) {
	cfg := DefaultConfig()

	total, ok := cfg.BenchmarkTotal("cybench")
	if !ok || total != 40 {
		t.Fatalf("expected cybench=40, got %d ok=%v", total, ok)
	}

	if _, ok := cfg.BenchmarkTotal("unknown_dataset"); ok {
		t.Fatal("expected unknown dataset to have no known benchmark total")
	}
}
