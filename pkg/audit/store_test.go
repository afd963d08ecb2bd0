package audit

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAppendAndRecent(t *testing.T) {
	l := openTestLog(t)
	actor := uuid.New()
	for _, action := range []string{"chatdisable", "chatadmin.add", "clearchat"} {
		if err := l.Append(Entry{Actor: actor, ActorName: "Alice", Action: action}); err != nil {
			t.Fatalf("Append %s: %v", action, err)
		}
	}

	if n := l.Count(); n != 3 {
		t.Fatalf("expected 3 entries, got %d", n)
	}
	got, err := l.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Action != "clearchat" || got[1].Action != "chatadmin.add" {
		t.Errorf("expected newest first, got %q then %q", got[0].Action, got[1].Action)
	}
	if got[0].Seq != 3 || got[0].Actor != actor || got[0].Time.IsZero() {
		t.Errorf("unexpected entry %+v", got[0])
	}

	all, err := l.Recent(0)
	if err != nil || len(all) != 3 {
		t.Errorf("expected all 3 entries, got %d (%v)", len(all), err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	l, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.Append(Entry{Action: "localradius", Detail: "80"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	l.Close()

	l, err = Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	got, err := l.Recent(1)
	if err != nil || len(got) != 1 || got[0].Detail != "80" {
		t.Fatalf("expected persisted entry, got %+v (%v)", got, err)
	}
	if err := l.Append(Entry{Action: "clearchat"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, _ = l.Recent(1)
	if got[0].Seq != 2 {
		t.Errorf("sequence must continue after reopen, got %d", got[0].Seq)
	}
}

func TestBackup(t *testing.T) {
	l := openTestLog(t)
	if err := l.Append(Entry{Action: "chatdisable"}); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "backup.db")
	if err := l.Backup(dst); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	b, err := Open(dst, nil)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer b.Close()
	if b.Count() != 1 {
		t.Errorf("expected 1 entry in backup, got %d", b.Count())
	}
}
