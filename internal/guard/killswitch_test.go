package guard

import (
	"sync"
	"testing"
)

// ============================================================
// KillSwitch Tests
// ============================================================

func TestKillSwitchActivateOnce(t *testing.T) {
	notifier := &mockNotifier{}
	kill := NewKillSwitch(notifier)

	if kill.IsActive() {
		t.Fatal("new kill switch must be armed")
	}

	if !kill.Activate("drawdown breach", "c1") {
		t.Fatal("first activation must win")
	}
	if !kill.IsActive() {
		t.Fatal("kill switch must be active after Activate")
	}

	opsBefore := len(notifier.opsMsgs)

	// Повторная активация - no-op: ни состояние, ни побочные эффекты
	if kill.Activate("another reason", "c2") {
		t.Error("second activation must be a no-op")
	}
	if len(notifier.opsMsgs) != opsBefore {
		t.Error("no-op activation must not notify again")
	}
	if kill.LastActivation().Reason != "drawdown breach" {
		t.Error("original activation reason must be preserved")
	}
}

func TestKillSwitchConcurrentActivation(t *testing.T) {
	notifier := &mockNotifier{}
	kill := NewKillSwitch(notifier)

	// 50 конкурентных активаций: ровно одна выигрывает CAS
	var wg sync.WaitGroup
	var winsMu sync.Mutex
	wins := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if kill.Activate("concurrent breach", "") {
				winsMu.Lock()
				wins++
				winsMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, expected exactly 1", wins)
	}
	if len(notifier.opsMsgs) != 1 {
		t.Errorf("ops notifications = %d, expected exactly 1", len(notifier.opsMsgs))
	}
}

func TestKillSwitchDeactivate(t *testing.T) {
	kill := NewKillSwitch(nil)

	if kill.Deactivate("op:alice") {
		t.Error("deactivating an armed switch must be a no-op")
	}

	kill.Activate("test", "")
	if !kill.Deactivate("op:alice") {
		t.Fatal("deactivation of active switch must succeed")
	}
	if kill.IsActive() {
		t.Error("switch must be armed after deactivation")
	}
	if kill.LastActivation() != nil {
		t.Error("activation record must be cleared")
	}

	// После деактивации можно активировать снова
	if !kill.Activate("new breach", "") {
		t.Error("re-activation after deactivate must succeed")
	}
}

func TestKillSwitchClientNotification(t *testing.T) {
	notifier := &mockNotifier{}
	kill := NewKillSwitch(notifier)

	kill.Activate("gas spike", "c7")

	if notifier.clientCount() != 1 {
		t.Errorf("client notifications = %d, expected 1", notifier.clientCount())
	}

	kill.Deactivate("op:bob")
	kill.Activate("global api outage", "")

	// Глобальная активация без clientId не шлет клиентское уведомление
	if notifier.clientCount() != 1 {
		t.Errorf("client notifications = %d, expected still 1", notifier.clientCount())
	}
}
