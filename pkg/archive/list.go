package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Info holds metadata about an existing archive file.
type Info struct {
	Path      string
	Size      int64
	Timestamp string // From the manifest, or the file mod time
	Files     int
}

// List scans dir for archives and returns them newest first.
func List(dir string) ([]Info, error) {
	pattern := filepath.Join(dir, "localchat-*.tar.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("archive: glob %s: %w", pattern, err)
	}

	var out []Info
	for _, path := range matches {
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		ai := Info{
			Path:      path,
			Size:      st.Size(),
			Timestamp: st.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
		}
		if m, err := ReadManifest(path); err == nil {
			ai.Timestamp = m.Timestamp
			ai.Files = len(m.Files)
		}
		out = append(out, ai)
	}
	// RFC 3339 in UTC sorts lexically; the file name breaks ties.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].Path > out[j].Path
	})
	return out, nil
}

// Prune deletes all but the newest keep archives in dir and returns the
// removed paths. keep <= 0 keeps everything.
func Prune(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	all, err := List(dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	var errs []error
	for _, a := range all[min(keep, len(all)):] {
		if err := os.Remove(a.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, a.Path)
	}
	return removed, errors.Join(errs...)
}

// ReadManifest opens an archive and decodes its manifest.json entry.
func ReadManifest(archivePath string) (*Manifest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Name != "manifest.json" {
			continue
		}
		var m Manifest
		if err := json.NewDecoder(tr).Decode(&m); err != nil {
			return nil, err
		}
		return &m, nil
	}
	return nil, fmt.Errorf("manifest.json not found in %s", archivePath)
}
