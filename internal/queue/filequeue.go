// Package queue implements the durable, directory-based FIFO that backs
// the supervisor's message traffic, alongside the push-notification
// layer above that lets a poller wake early instead of waiting out its
// fixed interval.
//
// A message is a JSON file living under one of six state directories
// (planned, queued, ongoing, complete, error, fail) beneath
// "<workspace>/msg/". Its filename encodes identity and retry count:
// "<id>_<run>.<ext>". State transitions are same-filesystem renames,
// which the OS guarantees are atomic; the queue never partially moves a
// file between directories.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// State names one of the six message-state subdirectories.
type State string

const (
	StatePlanned  State = "planned"
	StateQueued   State = "queued"
	StateOngoing  State = "ongoing"
	StateComplete State = "complete"
	StateError    State = "error"
	StateFail     State = "fail"
)

var filenamePattern = regexp.MustCompile(`^([^_]+)_(\d+)\.([a-zA-Z0-9]+)$`)

// ParseFilename extracts (id, run, ext) from a message's base filename
// per the grammar "^(?P<id>[^_]+)_(?P<run>\d+)\.(?P<ext>[a-zA-Z0-9]+)$".
func ParseFilename(path string) (id string, run int, ext string, ok bool) {
	base := filepath.Base(path)
	m := filenamePattern.FindStringSubmatch(base)
	if m == nil {
		return "", 0, "", false
	}
	run, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, "", false
	}
	return m[1], run, m[3], true
}

// FileQueue is the filesystem-backed FIFO described by spec §4.1. It
// owns no in-memory index: every operation reads or renames directly
// against the state directories, so the queue's state survives process
// restarts by construction.
type FileQueue struct {
	root     string // "<workspace>/msg"
	notifier Notifier
}

// NewFileQueue creates the six state directories under root if absent
// and returns a FileQueue rooted there. notifier may be NewNoopNotifier
// if push-assisted polling is not wanted.
func NewFileQueue(root string, notifier Notifier) (*FileQueue, error) {
	if notifier == nil {
		notifier = NewNoopNotifier()
	}
	for _, s := range []State{StatePlanned, StateQueued, StateOngoing, StateComplete, StateError, StateFail} {
		if err := os.MkdirAll(filepath.Join(root, string(s)), 0o755); err != nil {
			return nil, fmt.Errorf("create queue directory %s: %w", s, err)
		}
	}
	return &FileQueue{root: root, notifier: notifier}, nil
}

func (q *FileQueue) dir(s State) string { return filepath.Join(q.root, string(s)) }

// rename moves msg's backing file into state to (keeping its base name
// when newName is empty) and updates msg.File to the new location.
func (q *FileQueue) rename(msg *SupervisorMessage, to State, newName string) error {
	if newName == "" {
		newName = filepath.Base(msg.File)
	}
	dst := filepath.Join(q.dir(to), newName)
	if err := os.Rename(msg.File, dst); err != nil {
		// Same-filesystem renames are expected to succeed; retry once
		// before surfacing, since the failure mode here is almost
		// always a transient directory-entry race.
		if err2 := os.Rename(msg.File, dst); err2 != nil {
			return &RenameError{From: msg.File, To: dst, Err: err2}
		}
	}
	msg.File = dst
	return nil
}

// Planned moves msg into planned/, optionally under a new filename (used
// by the retry protocol to bump the run counter).
func (q *FileQueue) Planned(msg *SupervisorMessage, newName string) error {
	if err := q.rename(msg, StatePlanned, newName); err != nil {
		return err
	}
	_ = q.notifier.Notify(context.Background(), QueuePlanned)
	return nil
}

func (q *FileQueue) Queued(msg *SupervisorMessage) error  { return q.rename(msg, StateQueued, "") }
func (q *FileQueue) Ongoing(msg *SupervisorMessage) error { return q.rename(msg, StateOngoing, "") }
func (q *FileQueue) Complete(msg *SupervisorMessage) error {
	return q.rename(msg, StateComplete, "")
}
func (q *FileQueue) Error(msg *SupervisorMessage) error { return q.rename(msg, StateError, "") }
func (q *FileQueue) Fail(msg *SupervisorMessage) error  { return q.rename(msg, StateFail, "") }

// Notifier exposes the push channel used by the Poller to wake early.
func (q *FileQueue) Notifier() Notifier { return q.notifier }

// PlannedMessages enumerates planned/ in deterministic (lexicographic
// filename) order, which matches submission order since filenames embed
// a monotonically-assigned id.
func (q *FileQueue) PlannedMessages() ([]*SupervisorMessage, error) {
	return q.listMessages(StatePlanned)
}

// ErrorMessages enumerates error/ in deterministic filename order.
func (q *FileQueue) ErrorMessages() ([]*SupervisorMessage, error) {
	return q.listMessages(StateError)
}

func (q *FileQueue) listMessages(s State) ([]*SupervisorMessage, error) {
	entries, err := os.ReadDir(q.dir(s))
	if err != nil {
		return nil, fmt.Errorf("read %s directory: %w", s, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	msgs := make([]*SupervisorMessage, 0, len(names))
	for _, name := range names {
		path := filepath.Join(q.dir(s), name)
		if _, _, _, ok := ParseFilename(name); !ok {
			return nil, &InvalidFilenameError{Name: name}
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read message file %s: %w", path, err)
		}
		var onDisk struct {
			Payload Payload `json:"payload"`
		}
		if err := json.Unmarshal(raw, &onDisk); err != nil {
			return nil, &CorruptError{File: path, Err: err}
		}
		msgs = append(msgs, &SupervisorMessage{Payload: onDisk.Payload, File: path})
	}
	return msgs, nil
}

// NextRunName computes the filename a message moves to when its run
// counter is incremented by the retry protocol.
func NextRunName(current string) (string, error) {
	id, run, ext, ok := ParseFilename(current)
	if !ok {
		return "", &InvalidFilenameError{Name: current}
	}
	return fmt.Sprintf("%s_%d.%s", id, run+1, ext), nil
}

// Retry applies the retry protocol (spec §4.4) to a message already
// sitting in error/: if its run counter has not exceeded retries, bump
// it and move back to planned/; otherwise move to fail/. Used by the
// poller's recovery sweep over error/ (spec §4.5 step 1) to resolve
// messages left behind by a prior crash, independent of the controller's
// own inline retry-on-failure path.
func (q *FileQueue) Retry(msg *SupervisorMessage, retries int) (retried bool, err error) {
	_, run, _, ok := ParseFilename(msg.File)
	if !ok {
		return false, &InvalidFilenameError{Name: msg.File}
	}
	if run <= retries {
		newName, err := NextRunName(msg.File)
		if err != nil {
			return false, err
		}
		if err := q.Planned(msg, newName); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, q.Fail(msg)
}
