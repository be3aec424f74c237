// Package backup provides tar.gz-based backup and restore of the embedded
// RackLedger database.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/HerbHall/rackledger/internal/version"
)

// ManifestName is the archive entry describing the backup.
const ManifestName = "manifest.json"

// maxEntrySize bounds a single restored file.
const maxEntrySize = 4 << 30

// ErrExists is returned by Restore when a target file exists and force is off.
var ErrExists = errors.New("backup: target file exists")

// Manifest records what a backup archive contains.
type Manifest struct {
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Database  string    `json:"database"`
	Config    string    `json:"config,omitempty"`
}

// Backup writes a tar.gz archive holding a consistent snapshot of the SQLite
// database at dbPath, the config file (when it exists) and a manifest.
func Backup(ctx context.Context, dbPath, configPath, outputPath string) (*Manifest, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database file not found: %w", err)
	}

	tmp, err := os.MkdirTemp("", "rackledger-backup-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	snapshot := filepath.Join(tmp, filepath.Base(dbPath))
	if err := snapshotDatabase(ctx, dbPath, snapshot); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}

	m := &Manifest{
		Service:   "rackledger",
		Version:   version.Short(),
		CreatedAt: time.Now().UTC(),
		Database:  filepath.Base(dbPath),
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			m.Config = filepath.Base(configPath)
		}
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	defer outFile.Close()

	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)

	manifest, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := addBytesToTar(tw, ManifestName, manifest, m.CreatedAt); err != nil {
		return nil, fmt.Errorf("adding manifest to archive: %w", err)
	}
	if err := addFileToTar(tw, snapshot, m.Database); err != nil {
		return nil, fmt.Errorf("adding database to archive: %w", err)
	}
	if m.Config != "" {
		if err := addFileToTar(tw, configPath, m.Config); err != nil {
			return nil, fmt.Errorf("adding config to archive: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return m, outFile.Close()
}

// snapshotDatabase copies the live database to target with VACUUM INTO, which
// reads a consistent state even while the server keeps writing.
func snapshotDatabase(ctx context.Context, dbPath, target string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, "VACUUM INTO ?", target)
	return err
}

func addFileToTar(tw *tar.Writer, filePath, archiveName string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = archiveName

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func addBytesToTar(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o600,
		Size:    int64(len(data)),
		ModTime: modTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// Restore unpacks an archive written by Backup into dataDir. Existing files
// are only replaced when force is set.
func Restore(_ context.Context, archivePath, dataDir string, force bool) (*Manifest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	defer gr.Close()

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, err
	}

	var m *Manifest
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		// Entries are flat; anything with a directory part is ignored.
		name := filepath.Base(hdr.Name)
		if name != hdr.Name || name == "." || name == ".." {
			continue
		}

		if name == ManifestName {
			m = &Manifest{}
			if err := json.NewDecoder(io.LimitReader(tr, 1<<20)).Decode(m); err != nil {
				return nil, fmt.Errorf("decoding manifest: %w", err)
			}
			continue
		}
		if err := writeEntry(tr, filepath.Join(dataDir, name), force); err != nil {
			return nil, err
		}
	}
	if m == nil {
		return nil, fmt.Errorf("archive %s has no %s", archivePath, ManifestName)
	}
	return m, nil
}

func writeEntry(r io.Reader, target string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	out, err := os.OpenFile(target, flags, 0o600)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", ErrExists, target)
	}
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, io.LimitReader(r, maxEntrySize)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
