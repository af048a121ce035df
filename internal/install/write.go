package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const fileMode = 0644

// writeAtomic writes data next to path and renames it into place. The
// destination is never observed half-written, and the staging file is
// removed on every failure, including cancellation before the rename.
func writeAtomic(ctx context.Context, path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("staging %s: %w", path, err)
	}
	staged := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(staged)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", staged, err)
	}
	if err = tmp.Chmod(fileMode); err != nil {
		return fmt.Errorf("writing %s: %w", staged, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", staged, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", staged, err)
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = os.Rename(staged, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
