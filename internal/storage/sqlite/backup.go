package sqlite

import (
	"fmt"
	"io"
	"os"
	"time"
)

// BackupFile copies the database file at path to a timestamped sibling
// (workbot.db -> workbot.db.backup-20060102-150405) and returns the backup
// path. The copy must happen before the store is opened for writing: this
// is a plain file copy, not an online backup, and assumes the single-user
// setup the tool is documented for.
func BackupFile(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open database for backup: %w", err)
	}
	defer func() { _ = src.Close() }()

	backupPath := fmt.Sprintf("%s.backup-%s", path, time.Now().Format("20060102-150405"))
	dst, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("failed to finalize backup: %w", err)
	}
	return backupPath, nil
}
