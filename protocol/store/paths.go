package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// NetworkDir returns the on-disk directory for a given network under datadir:
// datadir/protocol/<network>/
func NetworkDir(datadir string, network string) string {
	return filepath.Join(datadir, "protocol", network)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}
