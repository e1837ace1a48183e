// Package backup zips the logbook database and restores it from such archives.
package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EntryName is the database entry inside a backup archive.
const EntryName = "fishing_logbook.db"

var (
	ErrNoDatabase = errors.New("archive contains no database")
	ErrNotSQLite  = errors.New("archive entry is not an SQLite database")
)

var sqliteMagic = []byte("SQLite format 3\x00")

// Snapshotter writes a consistent copy of the database to a file.
type Snapshotter interface {
	SnapshotTo(ctx context.Context, path string) error
}

// Create writes a zip archive holding a snapshot of the database to w.
func Create(ctx context.Context, src Snapshotter, w io.Writer) error {
	tmp, err := os.MkdirTemp("", "fishlog-backup-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	snap := filepath.Join(tmp, EntryName)
	if err := src.SnapshotTo(ctx, snap); err != nil {
		return err
	}

	f, err := os.Open(snap)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(w)
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     EntryName,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("write zip entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}

// CreateFile writes a backup archive to path.
func CreateFile(ctx context.Context, src Snapshotter, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	if err := Create(ctx, src, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Restore replaces the database at dbPath with the one inside the archive.
// The database must not be open while restoring.
func Restore(archivePath, dbPath string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	entry := findDatabase(zr.File)
	if entry == nil {
		return ErrNoDatabase
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer rc.Close()

	tmp := dbPath + ".restore"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	defer os.Remove(tmp)

	head := make([]byte, len(sqliteMagic))
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		out.Close()
		return fmt.Errorf("read database entry: %w", err)
	}
	if n < len(sqliteMagic) || !bytes.Equal(head, sqliteMagic) {
		out.Close()
		return ErrNotSQLite
	}

	_, err = out.Write(head)
	if err == nil {
		_, err = io.Copy(out, rc)
	}
	if err != nil {
		out.Close()
		return fmt.Errorf("extract database: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("sync database: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	// Stale WAL files would be replayed over the restored database.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", dbPath+suffix, err)
		}
	}

	if err := os.Rename(tmp, dbPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	return nil
}

// findDatabase returns the EntryName entry, or the only *.db entry.
func findDatabase(files []*zip.File) *zip.File {
	var candidates []*zip.File
	for _, f := range files {
		if f.Name == EntryName {
			return f
		}
		if strings.HasSuffix(strings.ToLower(f.Name), ".db") && !f.FileInfo().IsDir() {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	return nil
}
