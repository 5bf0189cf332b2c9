// Package config loads the supervisor's on-disk configuration,
// config.yaml, whose "controllers" entries each list their workers
// inline, and resolves the instance layout. YAML parsing correctness
// itself is assumed (non-goal); this package only defines the parsed
// struct shape and the environment-variable override rules.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/tabsdata/tabsdata/internal/domain"
)

// WorkerSpec is the YAML representation of one domain.WorkerConfig
// entry. It exists separately from domain.WorkerConfig so that YAML tags
// and zero-value defaulting stay out of the domain model.
type WorkerSpec struct {
	Name             string              `yaml:"name"`
	Kind             string              `yaml:"kind"`
	Location         string              `yaml:"location"`
	Program          string              `yaml:"program"`
	Parameters       map[string]string   `yaml:"parameters"`
	InheritedArgKeys []string            `yaml:"inherited_arguments"`
	ArgumentKeys     []string            `yaml:"arguments"`
	MarkerKeys       []string            `yaml:"markers"`
	SetState         *StateDirectiveSpec `yaml:"set_state"`
	GetState         []StateDirectiveSpec `yaml:"get_state"`
	Concurrency      int                 `yaml:"concurrency"`
	Retries          *int                `yaml:"retries"`
}

type StateDirectiveSpec struct {
	StateType string   `yaml:"type"`
	Key       string   `yaml:"key"`
	Prefixes  []string `yaml:"prefixes"`
}

// ControllerSpec is one named entry ("init", "regular", or "ephemeral")
// under the top-level "controllers" key.
type ControllerSpec struct {
	Concurrency int          `yaml:"concurrency"`
	Workers     []WorkerSpec `yaml:"workers"`
}

// NotifySpec selects the push-notification backend the poller
// subscribes to for early wakeup on msg/planned. Backend is one of
// "channel" (default, single-instance) or "redis" (multi-instance,
// pub/sub broadcast to every orchestrator instance sharing one
// repository).
type NotifySpec struct {
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
}

// SupervisorConfig mirrors config.yaml's top level.
type SupervisorConfig struct {
	Name        string                    `yaml:"name"`
	Controllers map[string]ControllerSpec `yaml:"controllers"`
	Notify      NotifySpec                `yaml:"notify"`
}

// LoadSupervisorConfig reads and parses config.yaml from path.
func LoadSupervisorConfig(path string) (*SupervisorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var cfg SupervisorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// ToControllersConfig converts the loaded YAML shape into the domain
// model the orchestrator and controllers operate on, applying the
// default retry count where a worker's spec omits it.
func (c *SupervisorConfig) ToControllersConfig() domain.ControllersConfig {
	return domain.ControllersConfig{
		Init:      toControllerConfig(domain.ClassInit, c.Controllers["init"]),
		Regular:   toControllerConfig(domain.ClassRegular, c.Controllers["regular"]),
		Ephemeral: toControllerConfig(domain.ClassEphemeral, c.Controllers["ephemeral"]),
	}
}

func toControllerConfig(class domain.ControllerClass, spec ControllerSpec) domain.ControllerConfig {
	workers := make([]domain.WorkerConfig, 0, len(spec.Workers))
	for _, w := range spec.Workers {
		workers = append(workers, toWorkerConfig(w))
	}
	return domain.ControllerConfig{Class: class, Concurrency: spec.Concurrency, Workers: workers}
}

func toWorkerConfig(w WorkerSpec) domain.WorkerConfig {
	retries := domain.DefaultRetries
	if w.Retries != nil {
		retries = *w.Retries
	}
	var setState *domain.StateDirective
	if w.SetState != nil {
		setState = &domain.StateDirective{StateType: w.SetState.StateType, Key: w.SetState.Key, Prefixes: w.SetState.Prefixes}
	}
	getState := make([]domain.StateDirective, 0, len(w.GetState))
	for _, g := range w.GetState {
		getState = append(getState, domain.StateDirective{StateType: g.StateType, Key: g.Key, Prefixes: g.Prefixes})
	}
	return domain.WorkerConfig{
		Name:             w.Name,
		Kind:             domain.WorkerKind(w.Kind),
		Location:         domain.WorkerLocation(w.Location),
		Program:          w.Program,
		Parameters:       w.Parameters,
		InheritedArgKeys: w.InheritedArgKeys,
		ArgumentKeys:     w.ArgumentKeys,
		MarkerKeys:       w.MarkerKeys,
		SetState:         setState,
		GetState:         getState,
		Concurrency:      w.Concurrency,
		Retries:          retries,
	}
}

// InstanceLayout resolves the on-disk roots described in spec §6, with
// TABSD_-prefixed environment overrides and cascading defaults.
type InstanceLayout struct {
	Instance   string
	Repository string
	Workspace  string
	Profile    string
}

// DefaultInstanceLayout mirrors spec §6's default instance path.
func DefaultInstanceLayout() InstanceLayout {
	home, _ := os.UserHomeDir()
	instance := home + "/.tabsdata/instances/tabsdata"
	return InstanceLayout{
		Instance:   instance,
		Repository: instance + "/repository",
		Workspace:  instance + "/workspace",
	}
}

// ApplyFlags overlays any non-empty CLI flag values over the defaults.
func (l InstanceLayout) ApplyFlags(instance, repository, workspace, profile string) InstanceLayout {
	if instance != "" {
		l.Instance = instance
	}
	if repository != "" {
		l.Repository = repository
	}
	if workspace != "" {
		l.Workspace = workspace
	}
	if profile != "" {
		l.Profile = profile
	}
	return l
}

// ApplyEnv overlays TABSD_INSTANCE / TABSD_REPOSITORY / TABSD_WORKSPACE /
// TABSD_PROFILE environment variables, following the teacher's
// LoadFromEnv pattern of "env var wins if set, otherwise keep existing".
func (l InstanceLayout) ApplyEnv() InstanceLayout {
	if v := os.Getenv("TABSD_INSTANCE"); v != "" {
		l.Instance = v
	}
	if v := os.Getenv("TABSD_REPOSITORY"); v != "" {
		l.Repository = v
	}
	if v := os.Getenv("TABSD_WORKSPACE"); v != "" {
		l.Workspace = v
	}
	if v := os.Getenv("TABSD_PROFILE"); v != "" {
		l.Profile = v
	}
	return l
}

// PostgresDSN resolves the SQL builder / version resolver's connection
// string, defaulting then applying TABSD_PG_DSN.
func PostgresDSN(def string) string {
	if v := os.Getenv("TABSD_PG_DSN"); v != "" {
		return v
	}
	return def
}

// LogLevel resolves TABSD_LOG_LEVEL, defaulting to "info".
func LogLevel(def string) string {
	if v := os.Getenv("TABSD_LOG_LEVEL"); v != "" {
		return v
	}
	if def == "" {
		return "info"
	}
	return def
}

// ParseBool is shared by flag/env overrides that accept the boolean
// spellings of strconv.ParseBool ("1", "t", "true", "TRUE", ...); any
// other value, including "yes", reads as false.
func ParseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	return err == nil && v
}
