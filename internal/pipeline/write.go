package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// WriteAtomic replaces path with lines, one per line. The content goes to a
// temporary file in the same directory first and is renamed over path, so
// readers see either the old file or the complete new one.
func WriteAtomic(path string, lines []string) error {
	tmp, err := stage(path, lines)
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

// stage writes lines to a synced temporary file next to path and returns
// its name.
func stage(path string, lines []string) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}

	fail := func(err error) (string, error) {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return fail(err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail(err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return f.Name(), nil
}

// writeAll stages every file before renaming any of them, so a failure
// while writing leaves all previous outputs in place.
func writeAll(files map[string][]string) error {
	staged := make(map[string]string, len(files))
	cleanup := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}

	for path, lines := range files {
		tmp, err := stage(path, lines)
		if err != nil {
			cleanup()
			return err
		}
		staged[path] = tmp
	}

	for path, tmp := range staged {
		if err := os.Rename(tmp, path); err != nil {
			cleanup()
			return fmt.Errorf("failed to replace %s: %w", path, err)
		}
		delete(staged, path)
	}

	return nil
}
