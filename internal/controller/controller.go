// Package controller implements the three controller instances (C4:
// init, regular, ephemeral) that consume supervisor messages and spawn
// worker processes through the launcher.
//
// # Design rationale
//
// Each controller is a single goroutine running a biased select loop
// over four waitable events: a finished task, the next boot-time
// worker, an inbound message, and the inbound channel's closure. The
// teacher's adaptive worker pool (internal/asyncqueue) runs a similar
// static/elastic goroutine-per-slot model; this controller keeps that
// shape but replaces "lease a queued row" with "spawn a described
// worker" and folds the boot/readiness state machine on top.
//
// # Concurrency model
//
// mark is an atomic.Int32 so the orchestrator can poll it without
// taking any lock; only the owning controller ever writes it, and only
// forward (NA -> OK, NA -> KO or OK -> KO; nothing ever leaves KO).
// inFlight is tracked under mu because boot-spawn, message-consume, and
// reap all need to check-then-increment/decrement atomically together
// with the concurrency limit.
//
// # Invariants
//
//   - mark never regresses: once KO, always KO.
//   - inFlight never exceeds concurrency unless concurrency == 0 (unbounded).
//   - For the init controller, mark only becomes OK once inFlight == 0 and
//     the boot iterator is exhausted.
//
// # Failure behaviour
//
// Any task failing causes the controller to set mark = KO and stop
// accepting new work; the orchestrator treats KO as fatal for startup
// ordering (spec §4.5 step 3).
package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tabsdata/tabsdata/internal/domain"
	"github.com/tabsdata/tabsdata/internal/jobtracker"
	"github.com/tabsdata/tabsdata/internal/launcher"
	"github.com/tabsdata/tabsdata/internal/logging"
	"github.com/tabsdata/tabsdata/internal/metrics"
	"github.com/tabsdata/tabsdata/internal/queue"
)

// notifyDedupeWindow bounds how long the per-controller notification
// ledger remembers a (message id, run, status) triple it has already
// reported, per spec §5's retry-rename/notification non-atomicity note.
const notifyDedupeWindow = 30 * time.Minute

// Mark is a controller's readiness state.
type Mark int32

const (
	MarkNA Mark = iota
	MarkOK
	MarkKO
)

func (m Mark) String() string {
	switch m {
	case MarkOK:
		return "OK"
	case MarkKO:
		return "KO"
	default:
		return "NA"
	}
}

// ControllerWaitInterval bounds CPU use when a controller's loop is
// otherwise idle (spec §4.4).
const ControllerWaitInterval = 100 * time.Millisecond

// taskResult is delivered to the reaper when a spawned worker finishes.
type taskResult struct {
	msg *queue.SupervisorMessage // nil for boot-spawned workers
	err error
}

// Controller runs one of the three class instances.
type Controller struct {
	class      domain.ControllerClass
	config     domain.ControllerConfig
	describer      *launcher.Describer
	fq             *queue.FileQueue
	parentWork     string
	inherited      launcher.InheritedArgs
	trailing       map[string][]string
	parentTrailing []string
	ledger         *jobtracker.Ledger

	mark     atomic.Int32
	mu       sync.Mutex
	inFlight int
	bootIdx  int

	results chan taskResult
	inbox   <-chan *queue.SupervisorMessage

	wg sync.WaitGroup
}

// New creates a controller for one class. inbox is closed by the
// orchestrator to signal "no more messages for this class, shut down
// once drained". parentWork and inherited are threaded into every
// invocation this controller builds, per spec §4.2 step 2.
func New(class domain.ControllerClass, config domain.ControllerConfig, describer *launcher.Describer, fq *queue.FileQueue, inbox <-chan *queue.SupervisorMessage, parentWork string, inherited launcher.InheritedArgs, trailing map[string][]string, parentTrailing []string) *Controller {
	return &Controller{
		class:          class,
		config:         config,
		describer:      describer,
		fq:             fq,
		parentWork:     parentWork,
		inherited:      inherited,
		trailing:       trailing,
		parentTrailing: parentTrailing,
		ledger:         jobtracker.New(notifyDedupeWindow),
		results:        make(chan taskResult, 64),
		inbox:          inbox,
	}
}

// Mark returns the controller's current readiness mark.
func (c *Controller) Mark() Mark { return Mark(c.mark.Load()) }

func (c *Controller) setMark(m Mark) {
	for {
		cur := Mark(c.mark.Load())
		if cur == MarkKO {
			return // never regress out of KO
		}
		if cur == m {
			return
		}
		if c.mark.CompareAndSwap(int32(cur), int32(m)) {
			metrics.ControllerMarkSet(string(c.class), m.String())
			return
		}
	}
}

func (c *Controller) canSpawn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Concurrency == 0 || c.inFlight < c.config.Concurrency
}

// Run executes the scheduling loop until the inbox is closed (or was
// nil), the boot list is spawned, and all in-flight tasks have been
// reaped. It returns a non-nil error if any task failed (the controller
// transitions to KO in that case).
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(ControllerWaitInterval)
	defer ticker.Stop()

	inbox := c.inbox
	var failure error
	// Ephemeral workers are only ever spawned from messages, never at boot.
	boot := c.config.Workers
	if c.class == domain.ClassEphemeral {
		boot = nil
	}

	for {
		// 1. Reap first: biased ordering prevents a storm of incoming
		// messages from starving completion handling.
		select {
		case res := <-c.results:
			c.mu.Lock()
			c.inFlight--
			c.mu.Unlock()
			if res.err != nil {
				failure = res.err
				c.setMark(MarkKO)
				inbox, c.bootIdx = nil, len(boot) // stop accepting new work
				logging.Op().Error("worker task failed", "class", c.class, "error", res.err)
			} else {
				logging.Op().Debug("worker task completed", "class", c.class)
			}
			continue
		default:
		}

		// 2. Boot-spawn the next declared worker.
		if c.bootIdx < len(boot) && c.canSpawn() {
			w := boot[c.bootIdx]
			c.bootIdx++
			c.spawnBoot(ctx, w)
			continue
		}

		// 3. Mark ready once the boot list is drained.
		if c.bootIdx >= len(boot) && c.Mark() == MarkNA {
			c.mu.Lock()
			inFlight := c.inFlight
			c.mu.Unlock()
			if c.class != domain.ClassInit || inFlight == 0 {
				c.setMark(MarkOK)
			}
		}

		// With no inbox left to read and the boot list done, terminate
		// once every in-flight task has been reaped.
		if inbox == nil && c.bootIdx >= len(boot) {
			c.mu.Lock()
			idle := c.inFlight == 0
			c.mu.Unlock()
			if idle {
				c.wg.Wait()
				return failure
			}
		}

		// 4. Consume an incoming message, or 5. terminate.
		select {
		case res := <-c.results:
			c.mu.Lock()
			c.inFlight--
			c.mu.Unlock()
			if res.err != nil {
				failure = res.err
				c.setMark(MarkKO)
				inbox, c.bootIdx = nil, len(boot) // stop accepting new work
			}
			continue
		case msg, ok := <-inbox:
			if !ok {
				c.mu.Lock()
				inFlight := c.inFlight
				c.mu.Unlock()
				if inFlight == 0 {
					c.wg.Wait()
					return failure
				}
				inbox = nil // stop selecting on a closed channel
				continue
			}
			c.consume(ctx, msg)
		case <-ticker.C:
		case <-ctx.Done():
			c.wg.Wait()
			return ctx.Err()
		}
	}
}

// invocationFor builds the config/work folders and base Invocation for
// w, shared by boot-spawn and message-driven launches.
func (c *Controller) invocationFor(w domain.WorkerConfig) (launcher.Invocation, error) {
	configFolder, workFolder, err := launcher.PersistentWorkerFolder(c.parentWork, c.class, w.Name)
	if err != nil {
		return launcher.Invocation{}, err
	}
	return launcher.Invocation{
		Worker:         w,
		Class:          c.class,
		ConfigFolder:   configFolder,
		WorkFolder:     workFolder,
		ParentWork:     c.parentWork,
		Inherited:      c.inherited,
		TrailingArgs:   c.trailing[w.Name],
		ParentTrailing: c.parentTrailing,
	}, nil
}

func (c *Controller) spawnBoot(ctx context.Context, w domain.WorkerConfig) {
	c.mu.Lock()
	c.inFlight++
	c.mu.Unlock()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		inv, err := c.invocationFor(w)
		if err == nil {
			err = c.describer.Launch(ctx, inv)
		}
		if err != nil {
			metrics.WorkerLaunchFailed(string(c.class), w.Name)
		} else {
			metrics.WorkerLaunched(string(c.class), w.Name)
		}
		c.results <- taskResult{err: err}
	}()
}

// consume looks up the message's target worker and spawns it, or fails
// the controller if the worker is unknown (spec §4.4 step 4).
func (c *Controller) consume(ctx context.Context, msg *queue.SupervisorMessage) {
	w, ok := c.config.WorkerByName(msg.Payload.Worker)
	if !ok {
		c.setMark(MarkKO)
		logging.Op().Error("unknown worker referenced by message", "class", c.class, "worker", msg.Payload.Worker)
		return
	}
	c.mu.Lock()
	c.inFlight++
	c.mu.Unlock()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.runEphemeral(ctx, w, msg)
		if err != nil {
			metrics.WorkerLaunchFailed(string(c.class), w.Name)
		} else {
			metrics.WorkerLaunched(string(c.class), w.Name)
		}
		c.results <- taskResult{msg: msg, err: err}
	}()
}

// runEphemeral launches the worker and applies the retry protocol
// (spec §4.4) on completion. Only meaningful for class == ephemeral;
// regular/init messages (if any) are launched without retry bookkeeping.
func (c *Controller) runEphemeral(ctx context.Context, w domain.WorkerConfig, msg *queue.SupervisorMessage) error {
	var configFolder, workFolder string
	var launchErr error
	if c.class == domain.ClassEphemeral {
		configFolder, workFolder, launchErr = launcher.PrepareEphemeralFolders(c.parentWork, w.Name, msg.Payload.Work)
	} else {
		configFolder, workFolder, launchErr = launcher.PersistentWorkerFolder(c.parentWork, c.class, w.Name)
	}
	if launchErr != nil {
		return launchErr
	}

	inv := launcher.Invocation{
		Worker:         w,
		Class:          c.class,
		Message:        msg,
		ConfigFolder:   configFolder,
		WorkFolder:     workFolder,
		ParentWork:     c.parentWork,
		Inherited:      c.inherited,
		TrailingArgs:   c.trailing[w.Name],
		ParentTrailing: c.parentTrailing,
	}
	launchErr = c.describer.Launch(ctx, inv)

	if c.class != domain.ClassEphemeral {
		return launchErr
	}

	id, run, ext, ok := queue.ParseFilename(msg.File)
	if !ok {
		return launchErr
	}

	if launchErr == nil {
		if !c.ledger.Record(id, run, "Done") {
			metrics.NotifyAttempt(id, run, "Done")
		}
		if err := c.fq.Complete(msg); err != nil {
			return fmt.Errorf("complete message: %w", err)
		}
		return nil
	}

	if run <= w.Retries {
		if !c.ledger.Record(id, run, "Error") {
			metrics.NotifyAttempt(id, run, "Error")
		}
		newName := fmt.Sprintf("%s_%d.%s", id, run+1, ext)
		if err := c.fq.Planned(msg, newName); err != nil {
			return fmt.Errorf("retry rename: %w", err)
		}
		return nil
	}

	if !c.ledger.Record(id, run, "Failed") {
		metrics.NotifyAttempt(id, run, "Failed")
	}
	if err := c.fq.Fail(msg); err != nil {
		return fmt.Errorf("fail rename: %w", err)
	}
	// Retries exhausted and the message moved to fail/ is the
	// spec-defined terminal outcome (spec §7), not a controller fault:
	// only a failure to perform that bookkeeping itself (above) should
	// ever reach the reaper and flip this controller to KO.
	return nil
}
