// Package supervisor implements C5, the top-level orchestrator that
// boots the three controllers in order, feeds them supervisor messages
// picked up from msg/planned, and tears every worker down in reverse
// order on shutdown.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tabsdata/tabsdata/internal/config"
	"github.com/tabsdata/tabsdata/internal/domain"
	"github.com/tabsdata/tabsdata/internal/launcher"
	"github.com/tabsdata/tabsdata/internal/logging"
	"github.com/tabsdata/tabsdata/internal/queue"
	"github.com/tabsdata/tabsdata/internal/tracker"
)

// livenessInterval is how often the orchestrator logs which controllers
// are still marked ready, per spec §4.6's liveness reporting.
const livenessInterval = 30 * time.Second

// shutdownGrace is how long a signaled worker gets to exit on its own
// before the orchestrator escalates from Term to Kill.
const shutdownGrace = 5 * time.Second

// incomingCap is the poll<->dispatch channel capacity (spec §5).
const incomingCap = 256

// Orchestrator is the single top-level process coordinating the three
// controllers, the poller, and worker shutdown.
type Orchestrator struct {
	layout         config.InstanceLayout
	cfg            domain.ControllersConfig
	fq             *queue.FileQueue
	describer      *launcher.Describer
	state          *StateStore
	trailing       map[string][]string
	parentTrailing []string

	mu              sync.Mutex
	alreadyDropping bool

	disp *dispatcher
}

// New wires an Orchestrator from its loaded config and instance layout.
// producers is the set of argument producers the describer needs
// (instance-uri, work-path, and similar spec §4.2 keys). trailing is
// the per-worker argument buckets parsed from the CLI's "-- <worker>
// ..." segments; parentTrailing is passed verbatim to Supervisor-kind
// workers.
func New(layout config.InstanceLayout, cfg domain.ControllersConfig, fq *queue.FileQueue, producers map[string]launcher.ArgumentProducer, trailing map[string][]string, parentTrailing []string) *Orchestrator {
	state := NewStateStore()
	return &Orchestrator{
		layout:         layout,
		cfg:            cfg,
		fq:             fq,
		describer:      launcher.NewDescriber(state, producers),
		state:          state,
		trailing:       trailing,
		parentTrailing: parentTrailing,
	}
}

// Run is the orchestrator's main loop: chdir into the workspace's work
// folder, start the poller and dispatcher, log liveness every 30s, and
// shut every worker down (in reverse class order) when ctx is
// cancelled or a controller fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	workRoot := filepath.Join(o.layout.Workspace, "work")
	if err := os.MkdirAll(workRoot, 0o755); err != nil {
		return fmt.Errorf("create work root: %w", err)
	}
	if err := os.Chdir(workRoot); err != nil {
		return fmt.Errorf("chdir into work root: %w", err)
	}
	if err := tracker.WritePidFile(o.layout.Workspace, os.Getpid()); err != nil {
		logging.Op().Warn("failed to write orchestrator pid file", "error", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	incoming := make(chan *queue.SupervisorMessage, incomingCap)
	inherited := launcher.InheritedArgs{
		Instance:   o.layout.Instance,
		Repository: o.layout.Repository,
		Workspace:  o.layout.Workspace,
		Work:       workRoot,
	}
	o.disp = newDispatcher(o.cfg, o.describer, o.fq, incoming, workRoot, inherited, o.trailing, o.parentTrailing)
	p := &poller{fq: o.fq, config: o.cfg, incoming: incoming}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.run(gctx) })
	g.Go(func() error { return o.disp.run(gctx) })
	g.Go(func() error { return o.reportLiveness(gctx) })

	err := g.Wait()
	o.shutdown(workRoot)
	return err
}

// reportLiveness logs each controller's mark every 30s, the
// orchestrator's only externally visible liveness signal (spec §4.6).
func (o *Orchestrator) reportLiveness(ctx context.Context) error {
	ticker := time.NewTicker(livenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if o.disp == nil {
				continue
			}
			for _, c := range o.disp.controllers() {
				logging.Op().Info("controller liveness", "mark", c.Mark().String())
			}
		}
	}
}

// shutdown walks the three controllers in reverse order (ephemeral,
// regular, init) and signals every worker whose pid-file shows it
// still running: Term first, escalating to Kill if it outlives
// shutdownGrace. alreadyDropping guards against two shutdown paths
// (normal ctx cancellation and a panic-recovery path, were one added)
// signaling the same children twice.
func (o *Orchestrator) shutdown(workRoot string) {
	o.mu.Lock()
	if o.alreadyDropping {
		o.mu.Unlock()
		return
	}
	o.alreadyDropping = true
	o.mu.Unlock()

	if o.disp == nil {
		return
	}
	order := []struct {
		class domain.ControllerClass
		cfg   domain.ControllerConfig
	}{
		{domain.ClassEphemeral, o.cfg.Ephemeral},
		{domain.ClassRegular, o.cfg.Regular},
		{domain.ClassInit, o.cfg.Init},
	}
	for _, o2 := range order {
		for _, w := range o2.cfg.Workers {
			signalWorker(filepath.Join(workRoot, "proc", string(o2.class), w.Name, "work"))
		}
	}
}

// signalWorker reads workFolder's pid-file and sends Term, escalating
// to Kill if the process is still alive after shutdownGrace.
func signalWorker(workFolder string) {
	status, pid := tracker.Check(workFolder)
	if status != tracker.Running {
		return
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		logging.Op().Warn("term signal failed", "pid", pid, "error", err)
	}

	deadline := time.Now().Add(shutdownGrace)
	for time.Now().Before(deadline) {
		if s, _ := tracker.Check(workFolder); s != tracker.Running {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	if s, _ := tracker.Check(workFolder); s == tracker.Running {
		if err := proc.Signal(syscall.SIGKILL); err != nil {
			logging.Op().Warn("kill signal failed", "pid", pid, "error", err)
		}
	}
}
