package domain

// WorkerKind is the process model a worker follows.
type WorkerKind string

const (
	WorkerSupervisor WorkerKind = "Supervisor"
	WorkerProcessor  WorkerKind = "Processor"
)

// WorkerLocation selects how a worker's program path is interpreted.
type WorkerLocation string

const (
	LocationRelative WorkerLocation = "Relative"
	LocationSystem   WorkerLocation = "System"
)

// ControllerClass is one of the three fixed controller instances.
type ControllerClass string

const (
	ClassInit      ControllerClass = "init"
	ClassRegular   ControllerClass = "regular"
	ClassEphemeral ControllerClass = "ephemeral"
)

// StateDirective describes either a set_state or get_state declaration
// on a worker.
type StateDirective struct {
	StateType string   // the declared type of the stored/looked-up value
	Key       string   // state-store key
	Prefixes  []string // get_state only: optional key-prefix filter when the stored value is a map
}

// WorkerConfig is the static, YAML-loaded description of one worker.
type WorkerConfig struct {
	Name             string
	Kind             WorkerKind
	Location         WorkerLocation
	Program          string
	Parameters       map[string]string
	InheritedArgKeys []string
	ArgumentKeys     []string
	MarkerKeys       []string
	SetState         *StateDirective
	GetState         []StateDirective
	Concurrency      int // 0 = unbounded
	Retries          int // default 2
}

// DefaultRetries is applied when a WorkerConfig's Retries is unset (zero
// value ambiguity is resolved at config-load time, not here).
const DefaultRetries = 2

// ControllerConfig is the named worker list for one controller class.
type ControllerConfig struct {
	Class       ControllerClass
	Concurrency int
	Workers     []WorkerConfig
}

// ControllersConfig groups the three controller configs loaded from
// config.yaml's "controllers" key. Ephemeral.Workers is never
// boot-spawned; ephemeral workers are looked up by name in it as
// messages arrive.
type ControllersConfig struct {
	Init      ControllerConfig
	Regular   ControllerConfig
	Ephemeral ControllerConfig
}

// WorkerByName looks up a worker's static config within a controller's
// declared list.
func (c ControllerConfig) WorkerByName(name string) (WorkerConfig, bool) {
	for _, w := range c.Workers {
		if w.Name == name {
			return w, true
		}
	}
	return WorkerConfig{}, false
}
