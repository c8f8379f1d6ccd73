// Package spool persists normalized photo bytes for offline submissions.
// Queued operations reference spool files by name; the bytes are uploaded
// when the operation is replayed, then the spool entry is removed.
package spool

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/safedrain/sd/internal/photo"
)

const spoolDirName = ".safedrain/spool"

// Dir is a photo spool rooted under a base directory.
type Dir struct {
	root string
}

// New returns a spool under baseDir. The directory is created lazily on
// first Save.
func New(baseDir string) *Dir {
	return &Dir{root: filepath.Join(baseDir, spoolDirName)}
}

// Root returns the spool directory path.
func (d *Dir) Root() string {
	return d.root
}

// extensionFor maps a MIME type to a file extension for spool entries.
func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// Save writes each photo under a fresh uuid-named entry directory and
// returns the entry name plus the stored file names, in input order.
func (d *Dir) Save(files []photo.File) (entry string, names []string, err error) {
	entry = uuid.NewString()
	entryDir := filepath.Join(d.root, entry)
	if err := os.MkdirAll(entryDir, 0755); err != nil {
		return "", nil, fmt.Errorf("create spool entry: %w", err)
	}

	for i, f := range files {
		name := fmt.Sprintf("%02d-%s%s", i, uuid.NewString(), extensionFor(f.MIME))
		if err := os.WriteFile(filepath.Join(entryDir, name), f.Data, 0644); err != nil {
			os.RemoveAll(entryDir)
			return "", nil, fmt.Errorf("write spool file %s: %w", name, err)
		}
		names = append(names, name)
	}
	return entry, names, nil
}

// Load reads one stored file back, inferring the MIME type from the
// extension chosen at Save time.
func (d *Dir) Load(entry, name string) (photo.File, error) {
	path := filepath.Join(d.root, entry, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return photo.File{}, fmt.Errorf("read spool file: %w", err)
	}

	mime := "image/jpeg"
	switch filepath.Ext(name) {
	case ".png":
		mime = "image/png"
	case ".gif":
		mime = "image/gif"
	}
	return photo.File{Name: name, MIME: mime, Data: data}, nil
}

// Remove deletes an entire spool entry. Idempotent.
func (d *Dir) Remove(entry string) error {
	if entry == "" {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(d.root, entry)); err != nil {
		return fmt.Errorf("remove spool entry: %w", err)
	}
	return nil
}
