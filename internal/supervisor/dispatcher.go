package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/tabsdata/tabsdata/internal/controller"
	"github.com/tabsdata/tabsdata/internal/domain"
	"github.com/tabsdata/tabsdata/internal/launcher"
	"github.com/tabsdata/tabsdata/internal/logging"
	"github.com/tabsdata/tabsdata/internal/queue"
)

// inbox capacities per class, per spec §5's channel-capacity table.
const (
	initInboxCap      = 1
	regularInboxCap   = 1
	ephemeralInboxCap = 256
)

// readyPollInterval bounds how often the dispatcher re-checks a
// starting controller's mark while waiting for it to clear MarkNA.
const readyPollInterval = 10 * time.Millisecond

// dispatcher owns the three controller instances and routes incoming
// messages from the poller to the controller matching their declared
// class. It starts controllers in the fixed order init -> regular ->
// ephemeral, waiting for each to leave MarkNA before starting the next,
// and treats any controller reaching MarkKO before its successor starts
// as a fatal startup failure (spec §4.5 step 3, §4.6).
type dispatcher struct {
	config    domain.ControllersConfig
	describer *launcher.Describer
	fq        *queue.FileQueue
	incoming  <-chan *queue.SupervisorMessage

	init, regular, ephemeral *controller.Controller
	initInbox, regularInbox  chan *queue.SupervisorMessage
	ephemeralInbox           chan *queue.SupervisorMessage
}

func newDispatcher(config domain.ControllersConfig, describer *launcher.Describer, fq *queue.FileQueue, incoming <-chan *queue.SupervisorMessage, parentWork string, inherited launcher.InheritedArgs, trailing map[string][]string, parentTrailing []string) *dispatcher {
	d := &dispatcher{
		config:         config,
		describer:      describer,
		fq:             fq,
		incoming:       incoming,
		initInbox:      make(chan *queue.SupervisorMessage, initInboxCap),
		regularInbox:   make(chan *queue.SupervisorMessage, regularInboxCap),
		ephemeralInbox: make(chan *queue.SupervisorMessage, ephemeralInboxCap),
	}
	d.init = controller.New(domain.ClassInit, config.Init, describer, fq, d.initInbox, parentWork, inherited, trailing, parentTrailing)
	d.regular = controller.New(domain.ClassRegular, config.Regular, describer, fq, d.regularInbox, parentWork, inherited, trailing, parentTrailing)
	d.ephemeral = controller.New(domain.ClassEphemeral, config.Ephemeral, describer, fq, d.ephemeralInbox, parentWork, inherited, trailing, parentTrailing)
	return d
}

// controllers returns the three instances in startup order.
func (d *dispatcher) controllers() []*controller.Controller {
	return []*controller.Controller{d.init, d.regular, d.ephemeral}
}

// run starts the three controllers in order, waits on each to clear
// MarkNA before starting the next, then routes incoming messages by
// class until ctx is cancelled. It returns as soon as any controller
// returns an error.
func (d *dispatcher) run(ctx context.Context) error {
	errs := make(chan error, 3)
	order := []struct {
		c     *controller.Controller
		class domain.ControllerClass
	}{
		{d.init, domain.ClassInit},
		{d.regular, domain.ClassRegular},
		{d.ephemeral, domain.ClassEphemeral},
	}

	for _, o := range order {
		c := o.c
		go func() {
			errs <- c.Run(ctx)
		}()
		if err := d.waitReady(ctx, c); err != nil {
			return fmt.Errorf("controller %s failed to start: %w", o.class, err)
		}
		logging.Op().Info("controller started", "class", o.class)
	}

	go d.route(ctx)

	for range order {
		select {
		case err := <-errs:
			if err != nil && err != ctx.Err() {
				return fmt.Errorf("controller failure: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// waitReady blocks until c leaves MarkNA, returning an error if it
// settles on MarkKO.
func (d *dispatcher) waitReady(ctx context.Context, c *controller.Controller) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		switch c.Mark() {
		case controller.MarkOK:
			return nil
		case controller.MarkKO:
			return fmt.Errorf("controller reached KO during startup")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// route forwards each incoming message to the inbox matching its
// declared class, closing all three inboxes once incoming is drained
// so controllers can shut down once their in-flight work is reaped.
func (d *dispatcher) route(ctx context.Context) {
	defer close(d.initInbox)
	defer close(d.regularInbox)
	defer close(d.ephemeralInbox)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-d.incoming:
			if !ok {
				return
			}
			var dst chan *queue.SupervisorMessage
			switch msg.Payload.Class {
			case domain.ClassInit:
				dst = d.initInbox
			case domain.ClassRegular:
				dst = d.regularInbox
			default:
				dst = d.ephemeralInbox
			}
			select {
			case dst <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}
