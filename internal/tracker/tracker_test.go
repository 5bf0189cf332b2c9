package tracker

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheck_MissingPidFileIsUnknown(t *testing.T) {
	status, pid := Check(t.TempDir())
	if status != Unknown {
		t.Fatalf("status = %v, want Unknown", status)
	}
	if pid != 0 {
		t.Fatalf("pid = %d, want 0", pid)
	}
}

func TestCheck_CorruptPidFileIsUnknown(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pid"), []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	status, _ := Check(dir)
	if status != Unknown {
		t.Fatalf("status = %v, want Unknown", status)
	}
}

func TestCheck_CurrentProcessIsRunning(t *testing.T) {
	dir := t.TempDir()
	if err := WritePidFile(dir, os.Getpid()); err != nil {
		t.Fatalf("WritePidFile: %v", err)
	}
	status, pid := Check(dir)
	if status != Running {
		t.Fatalf("status = %v, want Running", status)
	}
	if pid != os.Getpid() {
		t.Fatalf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestCheck_DeadPidIsNotRunning(t *testing.T) {
	dir := t.TempDir()
	// PID 1 is init/pid-1 inside a container and is never this test's
	// own pid; use an implausibly high pid instead to land reliably on
	// "no such process" across environments.
	if err := WritePidFile(dir, 999999); err != nil {
		t.Fatalf("WritePidFile: %v", err)
	}
	status, pid := Check(dir)
	if status != NotRunning {
		t.Fatalf("status = %v, want NotRunning", status)
	}
	if pid != 999999 {
		t.Fatalf("pid = %d, want 999999", pid)
	}
}

func TestStatus_String(t *testing.T) {
	cases := []struct {
		s    Status
		want string
	}{
		{Unknown, "Unknown"},
		{Running, "Running"},
		{NotRunning, "NotRunning"},
	}
	for _, c := range cases {
		if got := c.s.String(); got != c.want {
			t.Fatalf("String() = %q, want %q", got, c.want)
		}
	}
}
