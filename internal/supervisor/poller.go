package supervisor

import (
	"context"
	"time"

	"github.com/tabsdata/tabsdata/internal/domain"
	"github.com/tabsdata/tabsdata/internal/logging"
	"github.com/tabsdata/tabsdata/internal/queue"
)

// pollInterval bounds how long the poller sleeps between scans when
// not woken early by a planned-queue notification.
const pollInterval = time.Second

// poller implements spec §4.5's poller loop: recover stuck error/
// messages, then move planned/ work into queued/ and forward it to the
// dispatcher's incoming channel.
type poller struct {
	fq       *queue.FileQueue
	config   domain.ControllersConfig
	incoming chan<- *queue.SupervisorMessage
}

func (p *poller) run(ctx context.Context) error {
	wake := p.fq.Notifier().Subscribe(ctx, queue.QueuePlanned)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if err := p.recoverErrors(); err != nil {
			logging.Op().Error("poller: recover error messages failed", "error", err)
		}
		if err := p.dispatchPlanned(ctx); err != nil {
			logging.Op().Error("poller: dispatch planned messages failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
		}
	}
}

// recoverErrors applies the retry protocol to anything left in error/,
// resolving messages a prior crash abandoned before its own
// retry/fail rename completed (spec §4.5 step 1).
func (p *poller) recoverErrors() error {
	msgs, err := p.fq.ErrorMessages()
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		w, ok := p.config.Ephemeral.WorkerByName(msg.Payload.Worker)
		retries := domain.DefaultRetries
		if ok {
			retries = w.Retries
		}
		if _, err := p.fq.Retry(msg, retries); err != nil {
			logging.Op().Error("poller: retry failed", "worker", msg.Payload.Worker, "error", err)
		}
	}
	return nil
}

// dispatchPlanned moves every planned/ message into queued/ and
// forwards it to the dispatcher, preserving lexicographic (submission)
// order within this scan.
func (p *poller) dispatchPlanned(ctx context.Context) error {
	msgs, err := p.fq.PlannedMessages()
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := p.fq.Queued(msg); err != nil {
			logging.Op().Error("poller: queue rename failed", "file", msg.File, "error", err)
			continue
		}
		select {
		case p.incoming <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
