// Package archive writes point-in-time .tar.gz snapshots of the server's
// state: the audit log, the chat transcript and the config file.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Manifest describes the contents of an archive.
type Manifest struct {
	Version   int                  `json:"version"`
	Server    string               `json:"server"`
	Timestamp string               `json:"timestamp"`
	Name      string               `json:"name"`
	Files     map[string]FileEntry `json:"files"`
}

// FileEntry describes a single file within the archive.
type FileEntry struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
	Type   string `json:"type"` // "audit", "transcript", "conf"
}

// SnapshotFunc writes a consistent copy of a live database to destPath.
type SnapshotFunc func(destPath string) error

// Params holds the inputs of one archive run. Nil snapshot functions and
// an empty ConfPath are skipped.
type Params struct {
	Audit      SnapshotFunc
	Transcript SnapshotFunc
	ConfPath   string
	Dir        string // Output directory
	Name       string // Server name for the manifest
}

// Create writes a .tar.gz archive to p.Dir and returns its path.
func Create(p Params) (string, error) {
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return "", fmt.Errorf("archive: create dir %s: %w", p.Dir, err)
	}
	now := time.Now()
	archivePath := filepath.Join(p.Dir, fmt.Sprintf("localchat-%s.tar.gz", now.Format("20060102-150405.000")))

	tmpDir, err := os.MkdirTemp("", "localchat-archive-*")
	if err != nil {
		return "", fmt.Errorf("archive: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	type staged struct {
		src, name, typ string
	}
	var files []staged
	for _, s := range []struct {
		fn   SnapshotFunc
		name string
		typ  string
	}{
		{p.Audit, "data/audit.db", "audit"},
		{p.Transcript, "data/transcript.db", "transcript"},
	} {
		if s.fn == nil {
			continue
		}
		dest := filepath.Join(tmpDir, filepath.Base(s.name))
		if err := s.fn(dest); err != nil {
			return "", fmt.Errorf("archive: %s snapshot: %w", s.typ, err)
		}
		files = append(files, staged{dest, s.name, s.typ})
	}
	if p.ConfPath != "" {
		if _, err := os.Stat(p.ConfPath); err == nil {
			files = append(files, staged{p.ConfPath, "conf/" + filepath.Base(p.ConfPath), "conf"})
		}
	}

	manifest := Manifest{
		Version:   1,
		Server:    "localchat",
		Timestamp: now.UTC().Format(time.RFC3339),
		Name:      p.Name,
		Files:     make(map[string]FileEntry, len(files)),
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", archivePath, err)
	}
	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	werr := func() error {
		for _, f := range files {
			entry, err := addFileToTar(tw, f.src, f.name)
			if err != nil {
				return err
			}
			entry.Type = f.typ
			manifest.Files[f.name] = entry
		}
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return fmt.Errorf("archive: marshal manifest: %w", err)
		}
		if err := tw.WriteHeader(&tar.Header{
			Name:    "manifest.json",
			Size:    int64(len(data)),
			Mode:    0644,
			ModTime: now,
		}); err != nil {
			return fmt.Errorf("archive: write manifest header: %w", err)
		}
		_, err = tw.Write(data)
		return err
	}()
	for _, c := range []io.Closer{tw, gw, out} {
		if err := c.Close(); err != nil && werr == nil {
			werr = err
		}
	}
	if werr != nil {
		os.Remove(archivePath)
		return "", werr
	}
	return archivePath, nil
}

// addFileToTar adds a single file to the tar archive under archName and
// returns its SHA-256 and size.
func addFileToTar(tw *tar.Writer, srcPath, archName string) (FileEntry, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: open %s: %w", srcPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: stat %s: %w", srcPath, err)
	}
	archName = strings.ReplaceAll(archName, "\\", "/")
	if err := tw.WriteHeader(&tar.Header{
		Name:    archName,
		Size:    info.Size(),
		Mode:    0644,
		ModTime: info.ModTime(),
	}); err != nil {
		return FileEntry{}, fmt.Errorf("archive: header %s: %w", archName, err)
	}

	h := sha256.New()
	written, err := io.Copy(tw, io.TeeReader(f, h))
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: write %s: %w", archName, err)
	}
	return FileEntry{SHA256: hex.EncodeToString(h.Sum(nil)), Size: written}, nil
}
