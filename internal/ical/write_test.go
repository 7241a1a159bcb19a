package ical

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteIfChanged(t *testing.T) {
	t.Parallel()

	t.Run("first write creates the file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "cal.ics")
		w := &Writer{}

		changed, err := w.WriteIfChanged(path, []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !changed {
			t.Error("expected changed=true on first write")
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n" {
			t.Errorf("file content = %q", got)
		}
	})

	t.Run("identical content skips the write", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "cal.ics")
		w := &Writer{}
		data := []byte("same\r\n")

		if _, err := w.WriteIfChanged(path, data); err != nil {
			t.Fatal(err)
		}
		before, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}

		changed, err := w.WriteIfChanged(path, data)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if changed {
			t.Error("expected changed=false for identical content")
		}
		after, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if !after.ModTime().Equal(before.ModTime()) {
			t.Error("file was rewritten despite identical content")
		}
	})

	t.Run("different content rewrites", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "cal.ics")
		w := &Writer{}

		if _, err := w.WriteIfChanged(path, []byte("old\r\n")); err != nil {
			t.Fatal(err)
		}
		changed, err := w.WriteIfChanged(path, []byte("new\r\n"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !changed {
			t.Error("expected changed=true for different content")
		}
		got, _ := os.ReadFile(path)
		if string(got) != "new\r\n" {
			t.Errorf("file content = %q, want %q", got, "new\r\n")
		}
	})

	t.Run("simulated permission failure", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "cal.ics")
		w := &Writer{SimulatePermission: true}

		changed, err := w.WriteIfChanged(path, []byte("data"))
		if !errors.Is(err, ErrPermission) {
			t.Fatalf("expected ErrPermission, got %v", err)
		}
		if changed {
			t.Error("expected changed=false on failure")
		}
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			t.Error("file should not exist after a permission failure")
		}
	})
}
