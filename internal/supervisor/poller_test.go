package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tabsdata/tabsdata/internal/domain"
	"github.com/tabsdata/tabsdata/internal/queue"
)

func newTestFileQueue(t *testing.T) (*queue.FileQueue, string) {
	t.Helper()
	root := t.TempDir()
	fq, err := queue.NewFileQueue(root, queue.NewNoopNotifier())
	if err != nil {
		t.Fatalf("NewFileQueue: %v", err)
	}
	return fq, root
}

func TestPoller_RecoverErrors_WithinBudgetRequeues(t *testing.T) {
	fq, root := newTestFileQueue(t)
	path := filepath.Join(root, "error", "abc_1.json")
	if err := os.WriteFile(path, []byte(`{"payload":{"worker":"w1","work":"cast-1"}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := domain.ControllersConfig{
		Ephemeral: domain.ControllerConfig{Workers: []domain.WorkerConfig{{Name: "w1", Retries: 2}}},
	}
	p := &poller{fq: fq, config: cfg, incoming: make(chan *queue.SupervisorMessage, 1)}

	if err := p.recoverErrors(); err != nil {
		t.Fatalf("recoverErrors: %v", err)
	}

	planned, err := fq.PlannedMessages()
	if err != nil {
		t.Fatalf("PlannedMessages: %v", err)
	}
	if len(planned) != 1 {
		t.Fatalf("expected 1 requeued message, got %d", len(planned))
	}
	if filepath.Base(planned[0].File) != "abc_2.json" {
		t.Fatalf("expected abc_2.json, got %s", planned[0].File)
	}
}

func TestPoller_DispatchPlanned_QueuesAndForwards(t *testing.T) {
	fq, root := newTestFileQueue(t)
	path := filepath.Join(root, "planned", "abc_1.json")
	if err := os.WriteFile(path, []byte(`{"payload":{"worker":"w1","work":"cast-1"}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	incoming := make(chan *queue.SupervisorMessage, 1)
	p := &poller{fq: fq, config: domain.ControllersConfig{}, incoming: incoming}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.dispatchPlanned(ctx); err != nil {
		t.Fatalf("dispatchPlanned: %v", err)
	}

	select {
	case msg := <-incoming:
		if filepath.Base(msg.File) != "abc_1.json" {
			t.Fatalf("forwarded message = %s, want abc_1.json", msg.File)
		}
	default:
		t.Fatal("expected a message forwarded to incoming")
	}

	remaining, err := fq.PlannedMessages()
	if err != nil {
		t.Fatalf("PlannedMessages: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected planned/ drained, got %d remaining", len(remaining))
	}
}
