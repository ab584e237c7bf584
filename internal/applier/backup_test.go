package applier

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotBackupAndRollbackRestoresExistingFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	target := filepath.Join(root, "packages", "auth", "package.json")
	mustWrite(t, target, authManifest)

	mutations := []FileMutation{{Path: target, NewContent: `{"version": "9.9.9"}`}}

	backupDir, err := snapshotBackup(ctx, root, mutations)
	if err != nil {
		t.Fatalf("snapshotBackup: %v", err)
	}
	if backupDir == "" {
		t.Fatal("expected a non-empty backup directory")
	}

	if err := os.WriteFile(target, []byte(mutations[0].NewContent), 0o644); err != nil {
		t.Fatalf("simulating the write: %v", err)
	}

	if failed := rollback(ctx, root, backupDir, mutations); len(failed) != 0 {
		t.Fatalf("rollback reported failures: %v", failed)
	}

	if got := mustRead(t, target); got != authManifest {
		t.Errorf("expected original content restored, got %q", got)
	}
}

func TestSnapshotBackupAndRollbackDeletesNewlyCreatedFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	target := filepath.Join(root, "packages", "auth", "CHANGELOG.md")

	mutations := []FileMutation{{Path: target, NewContent: "# auth\n\n## 1.1.0\n"}}

	backupDir, err := snapshotBackup(ctx, root, mutations)
	if err != nil {
		t.Fatalf("snapshotBackup: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(target, []byte(mutations[0].NewContent), 0o644); err != nil {
		t.Fatalf("simulating the write: %v", err)
	}

	if failed := rollback(ctx, root, backupDir, mutations); len(failed) != 0 {
		t.Fatalf("rollback reported failures: %v", failed)
	}

	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("expected the newly-created file to be removed by rollback, stat err = %v", err)
	}
}
