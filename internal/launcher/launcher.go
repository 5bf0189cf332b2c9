// Package launcher builds and spawns the command line for one worker
// invocation (spec C2). It composes inherited arguments, rendered
// parameters, and resolved argument-producer values into an argv,
// materializes ephemeral work folders from a mold tree, and — for
// ephemeral workers — wraps the real command in a background shell
// script so the child's lifetime is decoupled from the controller task
// that launched it.
package launcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"github.com/tabsdata/tabsdata/internal/domain"
	"github.com/tabsdata/tabsdata/internal/pkg/fsutil"
	"github.com/tabsdata/tabsdata/internal/queue"
	"github.com/tabsdata/tabsdata/internal/tracker"
)

// InheritedArgs are the parent orchestrator's own CLI roots, rewritten
// per worker under "<...>/proc/<class>/<worker>/<folder>".
type InheritedArgs struct {
	Instance   string
	Repository string
	Workspace  string
	Conf       string
	Work       string
}

// ArgumentProducer resolves one declared argument key into its runtime
// value. Concrete producers are registered in a closed enum by the
// caller (e.g. "instance-uri", "work-path"); an unknown key is a launch
// error, never silently skipped.
type ArgumentProducer func(inv Invocation) (string, error)

// Invocation is everything the describer needs to build one launch.
type Invocation struct {
	Worker         domain.WorkerConfig
	Class          domain.ControllerClass
	Message        *queue.SupervisorMessage // nil for boot-spawned workers; set for message-driven launches of any class
	ConfigFolder   string
	WorkFolder     string
	ParentWork     string // parent orchestrator's work folder
	Inherited      InheritedArgs
	TrailingArgs   []string // this worker's bucket from the parent's "-- <worker> ..." segmentation
	ParentTrailing []string // verbatim, for Supervisor-kind workers only
}

// StateStore is the subset of the orchestrator's state store the
// launcher needs: a lookup for get_state and an insert for set_state.
type StateStore interface {
	Get(stateType, key string) (any, bool)
	Set(stateType, key string, value any)
}

// Describer builds command lines and spawns children.
type Describer struct {
	producers map[string]ArgumentProducer
	store     StateStore
}

func NewDescriber(store StateStore, producers map[string]ArgumentProducer) *Describer {
	return &Describer{producers: producers, store: store}
}

// MissingStateKeyError is fatal for the invocation that triggers it.
type MissingStateKeyError struct {
	StateType, Key string
}

func (e *MissingStateKeyError) Error() string {
	return fmt.Sprintf("missing state key %s/%s", e.StateType, e.Key)
}

// UnknownArgumentProducerError is returned when a worker declares an
// argument key with no registered producer.
type UnknownArgumentProducerError struct{ Key string }

func (e *UnknownArgumentProducerError) Error() string {
	return fmt.Sprintf("no argument producer registered for key %q", e.Key)
}

// RunnerError is the sum type of failures that can occur while spawning
// or waiting on a child (spec §4.2 exit handling).
type RunnerError struct {
	Kind    string // "WorkerExited" | "IOError" | "MissingStdOut" | "ReadStdOut"
	Message string
	Err     error
}

func (e *RunnerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RunnerError) Unwrap() error { return e.Err }

// PrepareEphemeralFolders creates the nested config/work folders for an
// ephemeral invocation and copies the worker's mold tree into the fresh
// work folder, per spec §4.2 step 1.
//
// Layout: "<work>/proc/ephemeral/<worker>/work/cast/<msg.work>/".
func PrepareEphemeralFolders(parentWork, worker, castID string) (configFolder, workFolder string, err error) {
	base := filepath.Join(parentWork, "proc", "ephemeral", worker)
	workFolder = filepath.Join(base, "work", "cast", castID, "work")
	configFolder = filepath.Join(base, "config")
	if err := os.MkdirAll(workFolder, 0o755); err != nil {
		return "", "", fmt.Errorf("create ephemeral work folder: %w", err)
	}
	moldTree := filepath.Join(base, "mold")
	if err := copyTree(moldTree, workFolder); err != nil && !os.IsNotExist(err) {
		return "", "", fmt.Errorf("copy mold tree: %w", err)
	}
	return configFolder, workFolder, nil
}

// PersistentWorkerFolder returns the config/work folder pair for an
// init or regular worker, which (unlike ephemeral workers) is spawned
// once at boot and has no per-message cast subfolder.
//
// Layout: "<work>/proc/<class>/<worker>/{config,work}".
func PersistentWorkerFolder(parentWork string, class domain.ControllerClass, worker string) (configFolder, workFolder string, err error) {
	base := filepath.Join(parentWork, "proc", string(class), worker)
	workFolder = filepath.Join(base, "work")
	configFolder = filepath.Join(base, "config")
	if err := os.MkdirAll(workFolder, 0o755); err != nil {
		return "", "", fmt.Errorf("create worker work folder: %w", err)
	}
	if err := os.MkdirAll(configFolder, 0o755); err != nil {
		return "", "", fmt.Errorf("create worker config folder: %w", err)
	}
	return configFolder, workFolder, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if sameContent(path, target) {
			return nil
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}

// sameContent reports whether target already holds src's content, so a
// retried ephemeral launch doesn't re-copy a mold tree that a previous
// attempt already materialized.
func sameContent(src, target string) bool {
	if _, err := os.Stat(target); err != nil {
		return false
	}
	srcHash, err := fsutil.HashFile(src)
	if err != nil {
		return false
	}
	dstHash, err := fsutil.HashFile(target)
	if err != nil {
		return false
	}
	return srcHash == dstHash
}

// BuildArgs composes the full argv for one invocation, in the order
// spec §4.2 step 2 requires: inherited args, rendered parameters,
// resolved arguments, then per-worker trailing extras. Supervisor-kind
// workers additionally receive the parent's own trailing args verbatim.
func (d *Describer) BuildArgs(inv Invocation) ([]string, error) {
	var args []string
	args = append(args, inheritedArgv(inv.Inherited, inv.Class, inv.Worker.Name, inv.ConfigFolder, inv.WorkFolder)...)

	rendered, err := renderParameters(inv.Worker.Parameters, inv)
	if err != nil {
		return nil, fmt.Errorf("render parameters: %w", err)
	}
	args = append(args, rendered...)

	for _, key := range inv.Worker.ArgumentKeys {
		producer, ok := d.producers[key]
		if !ok {
			return nil, &UnknownArgumentProducerError{Key: key}
		}
		value, err := producer(inv)
		if err != nil {
			return nil, fmt.Errorf("resolve argument %q: %w", key, err)
		}
		args = append(args, value)
	}

	args = append(args, inv.TrailingArgs...)
	if inv.Worker.Kind == domain.WorkerSupervisor {
		args = append(args, inv.ParentTrailing...)
	}
	return args, nil
}

// ToURI renders path as the file-style URI spec §6 sets on
// INSTANCE_URI/REPOSITORY_URI/WORKSPACE_URI/CONFIG_URI/WORK_URI,
// carrying a leading slash before the drive letter on Windows.
func ToURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.ToSlash(abs)
	if runtime.GOOS == "windows" && !strings.HasPrefix(abs, "/") {
		return "file:///" + abs
	}
	return "file://" + abs
}

// ToPath renders path as the bare filesystem path spec §6's "_PATH"
// siblings carry: the same as ToURI without the leading slash.
func ToPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return filepath.ToSlash(abs)
}

// childEnv builds the ten INSTANCE_URI/..._PATH environment variables
// spec §6 requires every spawned worker to receive.
func childEnv(inv Invocation) []string {
	pairs := []struct {
		name string
		path string
	}{
		{"INSTANCE", inv.Inherited.Instance},
		{"REPOSITORY", inv.Inherited.Repository},
		{"WORKSPACE", inv.Inherited.Workspace},
		{"CONFIG", inv.ConfigFolder},
		{"WORK", inv.WorkFolder},
	}
	env := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		env = append(env, p.name+"_URI="+ToURI(p.path), p.name+"_PATH="+ToPath(p.path))
	}
	return env
}

func inheritedArgv(in InheritedArgs, class domain.ControllerClass, worker, configFolder, workFolder string) []string {
	return []string{
		"--instance", in.Instance,
		"--repository", in.Repository,
		"--workspace", in.Workspace,
		"--conf", configFolder,
		"--work", workFolder,
	}
}

func renderParameters(params map[string]string, inv Invocation) ([]string, error) {
	if len(params) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	args := make([]string, 0, len(params)*2)
	for _, k := range sortedKeys(keys) {
		tpl, err := template.New(k).Parse(params[k])
		if err != nil {
			return nil, fmt.Errorf("parse parameter template %q: %w", k, err)
		}
		var buf bytes.Buffer
		if err := tpl.Execute(&buf, inv); err != nil {
			return nil, fmt.Errorf("render parameter template %q: %w", k, err)
		}
		args = append(args, "--"+k, buf.String())
	}
	return args, nil
}

func sortedKeys(keys []string) []string {
	// Parameters are rendered in lexicographic key order, so a map
	// input still yields a deterministic, reproducible argv.
	out := append([]string(nil), keys...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// wrapEphemeral writes a platform-specific background-launch script for
// an ephemeral worker and returns the command that invokes it, per spec
// §4.2 step 3.
func wrapEphemeral(workFolder, program string, args []string) (*exec.Cmd, error) {
	if runtime.GOOS == "windows" {
		script := filepath.Join(workFolder, "launch.cmd")
		content := fmt.Sprintf("@echo off\r\nstart \"\" /B %q %s\r\n", program, strings.Join(quoteAll(args), " "))
		if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
			return nil, fmt.Errorf("write launch script: %w", err)
		}
		return exec.Command("cmd.exe", "/C", script), nil
	}
	script := filepath.Join(workFolder, "launch.sh")
	content := fmt.Sprintf("#!/bin/sh\n%s %s &\n", quoteShell(program), strings.Join(quoteAll(args), " "))
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		return nil, fmt.Errorf("write launch script: %w", err)
	}
	return exec.Command("/bin/sh", script), nil
}

func quoteAll(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = quoteShell(a)
	}
	return out
}

func quoteShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Launch spawns one worker invocation. If the worker declares
// get_state, the looked-up value is written to the child's stdin; if it
// declares set_state, stdout is captured and parsed after exit.
func (d *Describer) Launch(ctx context.Context, inv Invocation) error {
	args, err := d.BuildArgs(inv)
	if err != nil {
		return err
	}

	var stdin []byte
	if len(inv.Worker.GetState) > 0 {
		for _, g := range inv.Worker.GetState {
			value, ok := d.store.Get(g.StateType, g.Key)
			if !ok {
				return &MissingStateKeyError{StateType: g.StateType, Key: g.Key}
			}
			stdin, err = encodeState(value, g.Prefixes)
			if err != nil {
				return fmt.Errorf("encode state for %s/%s: %w", g.StateType, g.Key, err)
			}
		}
	}

	var cmd *exec.Cmd
	if inv.Class == domain.ClassEphemeral {
		cmd, err = wrapEphemeral(inv.WorkFolder, inv.Worker.Program, args)
		if err != nil {
			return err
		}
	} else {
		cmd = exec.CommandContext(ctx, inv.Worker.Program, args...)
	}
	cmd.Dir = inv.WorkFolder
	cmd.Env = append(os.Environ(), childEnv(inv)...)

	var stdout bytes.Buffer
	if inv.Worker.SetState != nil {
		cmd.Stdout = &stdout
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	if err := cmd.Start(); err != nil {
		return &RunnerError{Kind: "IOError", Message: "spawn failed", Err: err}
	}
	if err := tracker.WritePidFile(inv.WorkFolder, cmd.Process.Pid); err != nil {
		return &RunnerError{Kind: "IOError", Message: "pid file", Err: err}
	}

	if err := cmd.Wait(); err != nil {
		return &RunnerError{Kind: "WorkerExited", Message: err.Error(), Err: err}
	}

	if inv.Worker.SetState != nil {
		if stdout.Len() == 0 {
			return &RunnerError{Kind: "MissingStdOut", Message: inv.Worker.Name}
		}
		value, err := decodeState(inv.Worker.SetState.StateType, stdout.Bytes())
		if err != nil {
			return &RunnerError{Kind: "ReadStdOut", Message: inv.Worker.Name, Err: err}
		}
		d.store.Set(inv.Worker.SetState.StateType, inv.Worker.SetState.Key, value)
	}
	return nil
}
