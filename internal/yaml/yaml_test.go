package yaml

import (
	"os"
	"path/filepath"
	"testing"

	yamlv3 "gopkg.in/yaml.v3"
)

func TestAtomicWrite_Success(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")

	data := map[string]any{"key": "value", "count": 42}
	if err := AtomicWrite(path, data); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	var result map[string]any
	if err := yamlv3.Unmarshal(content, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if result["key"] != "value" {
		t.Errorf("key: got %v, want %q", result["key"], "value")
	}
}

func TestAtomicWrite_CreatesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "barriers.yaml")

	if err := AtomicWrite(path, map[string]string{"version": "1"}); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := AtomicWrite(path, map[string]string{"version": "2"}); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	bakContent, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("ReadFile .bak failed: %v", err)
	}

	var bakData map[string]string
	if err := yamlv3.Unmarshal(bakContent, &bakData); err != nil {
		t.Fatalf("Unmarshal .bak failed: %v", err)
	}
	if bakData["version"] != "1" {
		t.Errorf("backup version: got %q, want %q", bakData["version"], "1")
	}
}

func TestAtomicWriteRaw_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")

	invalidYAML := []byte(":\n  invalid: [\n    broken")
	if err := AtomicWriteRaw(path, invalidYAML); err == nil {
		t.Fatal("expected error for invalid YAML")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should not exist after failed write")
	}
}

func TestAtomicWrite_NoTempFileLeftOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")

	invalidYAML := []byte(":\n  broken: [\n")
	_ = AtomicWriteRaw(path, invalidYAML)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".yaml" {
			t.Errorf("unexpected file remaining: %s", entry.Name())
		}
	}
}

func TestValidateSchemaHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")

	content := []byte("schema_version: 1\nfile_type: task_list\ntasks: []\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateSchemaHeader(path, FileTypeTaskList); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateSchemaHeader(path, FileTypeBarrierList); err == nil {
		t.Error("expected file_type mismatch error")
	}
}

func TestValidateSchemaHeaderFromBytes_Errors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing file_type", "schema_version: 1\n"},
		{"zero version", "schema_version: 0\nfile_type: task_list\n"},
		{"future version", "schema_version: 99\nfile_type: task_list\n"},
		{"unknown type", "schema_version: 1\nfile_type: mystery\n"},
	}
	for _, c := range cases {
		if err := ValidateSchemaHeaderFromBytes([]byte(c.content), ""); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}
}

func TestRecoverCorruptedFile_RestoresFromBackup(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "inputs.yaml")

	good := []byte("schema_version: 1\nfile_type: input_queue\ninputs: []\n")
	if err := os.WriteFile(path+".bak", good, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(":\n  broken: ["), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RecoverCorruptedFile(root, path, FileTypeInputQueue); err != nil {
		t.Fatalf("RecoverCorruptedFile failed: %v", err)
	}

	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(restored) != string(good) {
		t.Error("expected content restored from backup")
	}

	// Corrupted original moved to quarantine
	entries, err := os.ReadDir(filepath.Join(root, "quarantine"))
	if err != nil {
		t.Fatalf("quarantine dir missing: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 quarantined file, got %d", len(entries))
	}
}

func TestRecoverCorruptedFile_FallsBackToSkeleton(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "barriers.yaml")

	if err := os.WriteFile(path, []byte(":\n  broken: ["), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RecoverCorruptedFile(root, path, FileTypeBarrierList); err != nil {
		t.Fatalf("RecoverCorruptedFile failed: %v", err)
	}

	if err := ValidateSchemaHeader(path, FileTypeBarrierList); err != nil {
		t.Errorf("skeleton should carry a valid header: %v", err)
	}
}
