package chatstate

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestModeDefaultsToLocal(t *testing.T) {
	s := New()
	id := uuid.New()
	if s.Mode(id) != Local {
		t.Fatalf("expected LOCAL before any switch, got %v", s.Mode(id))
	}
	if _, ok := s.modes.Load(id); ok {
		t.Error("reading a mode must not store a default entry")
	}

	s.SetMode(id, Global)
	if s.Mode(id) != Global {
		t.Errorf("expected GLOBAL, got %v", s.Mode(id))
	}
	s.ResetMode(id)
	if s.Mode(id) != Local {
		t.Errorf("expected LOCAL after reset, got %v", s.Mode(id))
	}
}

func TestModeConcurrentSwitches(t *testing.T) {
	s := New()
	target := uuid.New()
	s.SetMode(target, Global)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := uuid.New()
			if i%2 == 0 {
				s.SetMode(id, Global)
			} else {
				s.SetMode(id, Local)
			}
			_ = s.Mode(target)
		}(i)
	}
	wg.Wait()
	if s.Mode(target) != Global {
		t.Errorf("other players' switches changed target mode to %v", s.Mode(target))
	}
}

func TestToggleDebug(t *testing.T) {
	s := New()
	id := uuid.New()
	if s.Debug(id) {
		t.Fatal("debug must default to false")
	}
	if !s.ToggleDebug(id) || !s.Debug(id) {
		t.Error("expected debug on after first toggle")
	}
	if s.ToggleDebug(id) || s.Debug(id) {
		t.Error("expected debug off after second toggle")
	}
	// Debug and mode are independent.
	if s.Mode(id) != Local {
		t.Errorf("debug toggles must not touch mode, got %v", s.Mode(id))
	}
}

func TestToggleDebugConcurrent(t *testing.T) {
	s := New()
	id := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ToggleDebug(id)
		}()
	}
	wg.Wait()
	if s.Debug(id) {
		t.Error("an even number of toggles must leave debug off")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"global", Global, true},
		{" G ", Global, true},
		{"LOCAL", Local, true},
		{"l", Local, true},
		{"team", Local, false},
	}
	for _, tt := range tests {
		got, ok := ParseMode(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMode(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	if Global.Tag() != "[G]" || Local.Tag() != "[L]" {
		t.Error("unexpected mode tags")
	}
}

func TestForget(t *testing.T) {
	s := New()
	id := uuid.New()
	s.SetMode(id, Global)
	s.ToggleDebug(id)
	s.Forget(id)
	if s.Mode(id) != Local || s.Debug(id) {
		t.Error("expected defaults after Forget")
	}
}
