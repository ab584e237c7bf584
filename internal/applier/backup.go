package applier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/spraguehouse/workspace-release/internal/fsio"
)

// backupManifestEntry records one backed-up file's relative path, the
// checksum of its pre-mutation contents, and whether it existed. rollback
// restores from the copied originals and does not check the checksum.
type backupManifestEntry struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Existed  bool   `json:"existed"`
}

// backupManifest is written to manifest.json at the root of each backup
// directory (spec.md §6.6).
type backupManifest struct {
	OperationID string                `json:"operation_id"`
	Timestamp   string                `json:"timestamp"`
	Files       []backupManifestEntry `json:"files"`
}

// snapshotBackup copies the pre-mutation contents of every file about to be
// touched into {repoRoot}/.workspace/backups/{utc_timestamp}/originals/,
// alongside a manifest.json listing them (spec.md §4.5 step 1, §6.6). A
// mutation whose target does not yet exist (a CHANGELOG.md being created
// for the first time) is recorded with Existed=false so rollback knows to
// delete rather than restore it.
func snapshotBackup(ctx context.Context, repoRoot string, mutations []FileMutation) (string, error) {
	timestamp := time.Now().UTC().Format("20060102T150405.000000000Z")
	backupDir := filepath.Join(repoRoot, ".workspace", "backups", timestamp)
	originalsDir := filepath.Join(backupDir, "originals")

	manifest := backupManifest{
		OperationID: uuid.New().String(),
		Timestamp:   timestamp,
	}

	for _, m := range mutations {
		rel, err := filepath.Rel(repoRoot, m.Path)
		if err != nil {
			rel = filepath.Base(m.Path)
		}

		var original string
		existed := fsio.Exists(m.Path)
		if existed {
			text, err := fsio.ReadText(ctx, m.Path)
			if err != nil {
				return "", err
			}
			original = text
		}

		if err := fsio.WriteTextAtomic(ctx, filepath.Join(originalsDir, rel), original); err != nil {
			return "", err
		}

		sum := sha256.Sum256([]byte(original))
		manifest.Files = append(manifest.Files, backupManifestEntry{
			Path:     rel,
			Checksum: hex.EncodeToString(sum[:]),
			Existed:  existed,
		})
	}

	if err := fsio.WriteStructured(ctx, filepath.Join(backupDir, "manifest.json"), manifest); err != nil {
		return "", err
	}
	return backupDir, nil
}

// rollback restores every mutated file from backupDir's originals, best
// effort: a restore failure is logged by the caller via the returned slice
// of paths it could not put back, rather than panicking mid-rollback.
func rollback(ctx context.Context, repoRoot, backupDir string, mutations []FileMutation) []string {
	var failed []string
	manifest, err := fsio.ReadStructured[backupManifest](ctx, filepath.Join(backupDir, "manifest.json"))
	if err != nil {
		for _, m := range mutations {
			failed = append(failed, m.Path)
		}
		return failed
	}

	for _, entry := range manifest.Files {
		target := filepath.Join(repoRoot, entry.Path)
		if !entry.Existed {
			if err := fsio.Remove(ctx, target); err != nil {
				failed = append(failed, target)
			}
			continue
		}
		original, err := fsio.ReadText(ctx, filepath.Join(backupDir, "originals", entry.Path))
		if err != nil {
			failed = append(failed, target)
			continue
		}
		if err := fsio.WriteTextAtomic(ctx, target, original); err != nil {
			failed = append(failed, target)
		}
	}
	return failed
}
