package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(content string) SnapshotFunc {
	return func(dest string) error {
		return os.WriteFile(dest, []byte(content), 0644)
	}
}

// tarContents returns the files of a .tar.gz by name.
func tarContents(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	tr := tar.NewReader(gr)
	out := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		data, _ := io.ReadAll(tr)
		out[hdr.Name] = string(data)
	}
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "localchat.yaml")
	os.WriteFile(conf, []byte("local_radius: 30\n"), 0644)

	path, err := Create(Params{
		Audit:      writeFile("audit-bytes"),
		Transcript: writeFile("transcript-bytes"),
		ConfPath:   conf,
		Dir:        filepath.Join(dir, "out"),
		Name:       "test",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	files := tarContents(t, path)
	if files["data/audit.db"] != "audit-bytes" || files["data/transcript.db"] != "transcript-bytes" {
		t.Errorf("unexpected data files %v", files)
	}
	if files["conf/localchat.yaml"] != "local_radius: 30\n" {
		t.Errorf("config not archived")
	}

	m, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.Name != "test" || len(m.Files) != 3 {
		t.Fatalf("unexpected manifest %+v", m)
	}
	sum := sha256.Sum256([]byte("audit-bytes"))
	if e := m.Files["data/audit.db"]; e.SHA256 != hex.EncodeToString(sum[:]) || e.Type != "audit" {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestCreateSnapshotFailure(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(Params{
		Audit: func(string) error { return errors.New("locked") },
		Dir:   dir,
	})
	if err == nil {
		t.Fatal("snapshot errors must fail the archive")
	}
	if all, _ := List(dir); len(all) != 0 {
		t.Errorf("no archive expected, got %v", all)
	}
}

func TestListAndPrune(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		if _, err := Create(Params{Transcript: writeFile("x"), Dir: dir}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	all, err := List(dir)
	if err != nil || len(all) != 3 {
		t.Fatalf("List = %v, %v", all, err)
	}
	if all[0].Files != 1 {
		t.Errorf("manifest not read: %+v", all[0])
	}

	removed, err := Prune(dir, 1)
	if err != nil || len(removed) != 2 {
		t.Fatalf("Prune = %v, %v", removed, err)
	}
	left, _ := List(dir)
	if len(left) != 1 || left[0].Path != all[0].Path {
		t.Errorf("the newest archive must stay, got %v", left)
	}
	if removed, _ := Prune(dir, 0); removed != nil {
		t.Error("keep 0 keeps everything")
	}
}

func TestJobRun(t *testing.T) {
	dir := t.TempDir()
	job := Job{Params: Params{Audit: writeFile("a"), Dir: dir}, Keep: 2}
	for i := 0; i < 3; i++ {
		job.Run()
		time.Sleep(5 * time.Millisecond)
	}
	if all, _ := List(dir); len(all) != 2 {
		t.Errorf("expected 2 archives, got %d", len(all))
	}
}
