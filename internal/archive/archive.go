// Package archive serializes build outputs into upload-ready zip
// archives.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"github.com/getjack-org/jack-sub003/internal/source"
)

// BundleFileName is the canonical name of the single bundled module
// inside the bundle archive; the control plane expects exactly this path.
const BundleFileName = "index.js"

// Entry timestamps are pinned so the same inputs always produce the same
// logical listing regardless of when the build ran.
var fixedModTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func writeEntry(w *zip.Writer, name string, content string) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: fixedModTime,
	}
	f, err := w.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("creating archive entry %s: %w", name, err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		return fmt.Errorf("writing archive entry %s: %w", name, err)
	}
	return nil
}

// PackSource archives the original source files, entries in sorted path
// order, for later changes-mode patching and human inspection.
func PackSource(store *source.Store) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, p := range store.Paths() {
		content, _ := store.Get(p)
		if err := writeEntry(w, p, content); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing source archive: %w", err)
	}
	return buf.Bytes(), nil
}

// PackBundle archives the bundled output as the single canonical module
// file.
func PackBundle(code string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	if err := writeEntry(w, BundleFileName, code); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing bundle archive: %w", err)
	}
	return buf.Bytes(), nil
}
