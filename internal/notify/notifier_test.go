package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockSender записывает доставки и умеет падать заданное число раз
type mockSender struct {
	mu        sync.Mutex
	opsMsgs   []string
	clientIDs []string
	failTimes int
}

func (m *mockSender) SendOps(_ context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTimes > 0 {
		m.failTimes--
		return errors.New("webhook timeout")
	}
	m.opsMsgs = append(m.opsMsgs, message)
	return nil
}

func (m *mockSender) SendClient(_ context.Context, clientID, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTimes > 0 {
		m.failTimes--
		return errors.New("webhook timeout")
	}
	m.clientIDs = append(m.clientIDs, clientID)
	return nil
}

func (m *mockSender) opsCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.opsMsgs)
}

func (m *mockSender) clientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clientIDs)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestNotifierDeliversOpsAndClient(t *testing.T) {
	sender := &mockSender{}
	n := NewNotifier(sender, Config{QueueSize: 8})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.NotifyOps("kill switch activated: drawdown")
	n.NotifyClient("client-1", "Trading halted", "drawdown limit exceeded")

	waitFor(t, func() bool { return sender.opsCount() == 1 && sender.clientCount() == 1 })
}

func TestNotifierEnqueueNeverBlocks(t *testing.T) {
	// Run не запущен: очередь заполнится и лишнее должно отброситься,
	// а не заблокировать вызывающего
	sender := &mockSender{}
	n := NewNotifier(sender, Config{QueueSize: 2})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			n.NotifyOps("msg")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on full queue")
	}

	if len(n.tasks) != 2 {
		t.Errorf("queue depth = %d, want 2", len(n.tasks))
	}
}

func TestNotifierRetriesThenSucceeds(t *testing.T) {
	// Два падения, третья попытка проходит: ошибок в Errors() быть не должно
	sender := &mockSender{failTimes: 2}
	n := NewNotifier(sender, Config{QueueSize: 8, SendTimeout: 5 * time.Second})
	n.retryCfg.InitialDelay = time.Millisecond
	n.retryCfg.JitterFactor = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.NotifyOps("flaky delivery")

	waitFor(t, func() bool { return sender.opsCount() == 1 })

	select {
	case err := <-n.Errors():
		t.Errorf("unexpected delivery error: %v", err)
	default:
	}
}

func TestNotifierReportsFinalFailure(t *testing.T) {
	// Падение на всех попытках: ошибка обязана попасть в Errors()
	sender := &mockSender{failTimes: 100}
	n := NewNotifier(sender, Config{QueueSize: 8, SendTimeout: 5 * time.Second})
	n.retryCfg.MaxRetries = 2
	n.retryCfg.InitialDelay = time.Millisecond
	n.retryCfg.JitterFactor = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.NotifyClient("client-7", "subject", "body")

	select {
	case err := <-n.Errors():
		if err == nil {
			t.Fatal("nil error from Errors()")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("delivery failure not reported")
	}

	if sender.clientCount() != 0 {
		t.Errorf("delivery count = %d, want 0", sender.clientCount())
	}
}

func TestNotifierDrainsOnShutdown(t *testing.T) {
	// Задачи поставлены до Run: отмена контекста должна дообработать их
	sender := &mockSender{}
	n := NewNotifier(sender, Config{QueueSize: 8})

	n.NotifyOps("first")
	n.NotifyOps("second")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go n.Run(ctx)

	select {
	case <-n.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not finish")
	}

	if sender.opsCount() != 2 {
		t.Errorf("delivered = %d, want 2 after drain", sender.opsCount())
	}
}
