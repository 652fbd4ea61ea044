package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, path, dataDir string) {
	t.Helper()
	content := "env: devnet\n" +
		"engine:\n" +
		"  tick_ms: 100\n" +
		"  max_markets_per_tick: 8\n" +
		"  schema_version: 1\n" +
		"  data_dir: " + dataDir + "\n" +
		"  ingest_queue_size: 16\n" +
		"signer:\n" +
		"  keyring: \"\"\n" +
		"  threshold: 1\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestRunMissingFlags(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(nil, &out, &errOut)
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}

func TestRunDryRunPrintsConfigAndExitsZero(t *testing.T) {
	td := t.TempDir()
	cfgPath := filepath.Join(td, "config.yaml")
	writeConfigFile(t, cfgPath, filepath.Join(td, "data"))

	var out, errOut bytes.Buffer
	code := run([]string{"--config", cfgPath, "--market-id", "NBA_LAL_BOS", "--dry-run"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("code = %d, want 0, stderr=%s", code, errOut.String())
	}
	if out.Len() == 0 {
		t.Fatalf("expected config to be printed on dry run")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	td := t.TempDir()
	cfgPath := filepath.Join(td, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("env: not-a-real-network\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var out, errOut bytes.Buffer
	code := run([]string{"--config", cfgPath, "--market-id", "NBA_LAL_BOS"}, &out, &errOut)
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}

func TestRunWithoutSignerFailsBeforeStoreOpen(t *testing.T) {
	td := t.TempDir()
	cfgPath := filepath.Join(td, "config.yaml")
	writeConfigFile(t, cfgPath, filepath.Join(td, "data"))

	var out, errOut bytes.Buffer
	code := run([]string{"--config", cfgPath, "--market-id", "NBA_LAL_BOS"}, &out, &errOut)
	if code != 1 {
		t.Fatalf("code = %d, want 1 (missing signer keyring), stderr=%s", code, errOut.String())
	}
}
