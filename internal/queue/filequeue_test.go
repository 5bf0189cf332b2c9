package queue

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestQueue(t *testing.T) *FileQueue {
	t.Helper()
	fq, err := NewFileQueue(t.TempDir(), NewNoopNotifier())
	if err != nil {
		t.Fatalf("NewFileQueue: %v", err)
	}
	return fq
}

func writeMessage(t *testing.T, fq *FileQueue, name, body string) *SupervisorMessage {
	t.Helper()
	path := filepath.Join(fq.dir(StatePlanned), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write message: %v", err)
	}
	msgs, err := fq.PlannedMessages()
	if err != nil {
		t.Fatalf("PlannedMessages: %v", err)
	}
	for _, m := range msgs {
		if filepath.Base(m.File) == name {
			return m
		}
	}
	t.Fatalf("message %s not found after write", name)
	return nil
}

const samplePayload = `{"payload":{"type":"Request","class":"ephemeral","worker":"w1","work":"cast-1"}}`

func TestParseFilename(t *testing.T) {
	cases := []struct {
		name    string
		wantID  string
		wantRun int
		wantExt string
		wantOK  bool
	}{
		{"abc-123_1.json", "abc-123", 1, "json", true},
		{"abc_2.json", "abc", 2, "json", true},
		{"bad name.json", "", 0, "", false},
		{"missing-run.json", "", 0, "", false},
	}
	for _, tc := range cases {
		id, run, ext, ok := ParseFilename(tc.name)
		if ok != tc.wantOK {
			t.Fatalf("%s: ok = %v, want %v", tc.name, ok, tc.wantOK)
		}
		if !ok {
			continue
		}
		if id != tc.wantID || run != tc.wantRun || ext != tc.wantExt {
			t.Fatalf("%s: got (%s,%d,%s), want (%s,%d,%s)", tc.name, id, run, ext, tc.wantID, tc.wantRun, tc.wantExt)
		}
	}
}

func TestNextRunName(t *testing.T) {
	next, err := NextRunName("/msg/planned/abc_1.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != "abc_2.json" {
		t.Fatalf("next = %s, want abc_2.json", next)
	}

	if _, err := NextRunName("bad.json"); err == nil {
		t.Fatal("expected error for invalid filename")
	}
}

func TestFileQueue_PlannedToQueuedToComplete(t *testing.T) {
	fq := newTestQueue(t)
	msg := writeMessage(t, fq, "abc_1.json", samplePayload)

	if err := fq.Queued(msg); err != nil {
		t.Fatalf("Queued: %v", err)
	}
	if filepath.Dir(msg.File) != fq.dir(StateQueued) {
		t.Fatalf("message not moved to queued/: %s", msg.File)
	}

	if err := fq.Ongoing(msg); err != nil {
		t.Fatalf("Ongoing: %v", err)
	}
	if err := fq.Complete(msg); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if filepath.Dir(msg.File) != fq.dir(StateComplete) {
		t.Fatalf("message not moved to complete/: %s", msg.File)
	}
}

func TestFileQueue_Retry_WithinBudgetMovesToPlanned(t *testing.T) {
	fq := newTestQueue(t)
	msg := writeMessage(t, fq, "abc_1.json", samplePayload)
	if err := fq.Error(msg); err != nil {
		t.Fatalf("Error: %v", err)
	}

	retried, err := fq.Retry(msg, 2)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if !retried {
		t.Fatal("expected retried = true")
	}
	if filepath.Dir(msg.File) != fq.dir(StatePlanned) {
		t.Fatalf("message not moved to planned/: %s", msg.File)
	}
	if filepath.Base(msg.File) != "abc_2.json" {
		t.Fatalf("expected run bumped to 2, got %s", msg.File)
	}
}

func TestFileQueue_Retry_ExceedingBudgetMovesToFail(t *testing.T) {
	fq := newTestQueue(t)
	msg := writeMessage(t, fq, "abc_3.json", samplePayload)
	if err := fq.Error(msg); err != nil {
		t.Fatalf("Error: %v", err)
	}

	retried, err := fq.Retry(msg, 2)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retried {
		t.Fatal("expected retried = false")
	}
	if filepath.Dir(msg.File) != fq.dir(StateFail) {
		t.Fatalf("message not moved to fail/: %s", msg.File)
	}
}

func TestFileQueue_PlannedMessages_LexicographicOrder(t *testing.T) {
	fq := newTestQueue(t)
	writeMessage(t, fq, "b_1.json", samplePayload)
	writeMessage(t, fq, "a_1.json", samplePayload)
	writeMessage(t, fq, "c_1.json", samplePayload)

	msgs, err := fq.PlannedMessages()
	if err != nil {
		t.Fatalf("PlannedMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	wantOrder := []string{"a_1.json", "b_1.json", "c_1.json"}
	for i, w := range wantOrder {
		if filepath.Base(msgs[i].File) != w {
			t.Fatalf("position %d = %s, want %s", i, filepath.Base(msgs[i].File), w)
		}
	}
}

func TestFileQueue_ErrorMessages_CorruptFileSurfaced(t *testing.T) {
	fq := newTestQueue(t)
	path := filepath.Join(fq.dir(StateError), "bad_1.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := fq.ErrorMessages()
	if err == nil {
		t.Fatal("expected corrupt message error")
	}
	var corrupt *CorruptError
	if !isCorruptError(err, &corrupt) {
		t.Fatalf("expected CorruptError, got %v", err)
	}
}

func isCorruptError(err error, target **CorruptError) bool {
	e, ok := err.(*CorruptError)
	if ok {
		*target = e
	}
	return ok
}
