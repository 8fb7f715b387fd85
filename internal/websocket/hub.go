// Package websocket отдает операторскому порталу real-time поток
// событий control plane: активации kill switch, риск-события,
// статусы воркеров, PnL клиентов.
package websocket

import (
	"bytes"
	"context"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"tradeguard/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Пул JSON буферов: Broadcast вызывается на каждый fill/heartbeat,
// без пула аллокации растут линейно с трафиком
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// ============ Типизированные сообщения ============

// KillSwitchMessage - смена состояния kill switch
type KillSwitchMessage struct {
	Type     string `json:"type"`
	Active   bool   `json:"active"`
	Reason   string `json:"reason,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// RiskEventMessage - новое риск-событие от Sentinel
type RiskEventMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WorkerStatusMessage - смена статуса воркера
type WorkerStatusMessage struct {
	Type     string `json:"type"`
	WorkerID string `json:"worker_id"`
	ClientID string `json:"client_id"`
	Status   string `json:"status"`
}

// PnlUpdateMessage - обновление PnL клиента
type PnlUpdateMessage struct {
	Type      string  `json:"type"`
	ClientID  string  `json:"client_id"`
	GlobalPnl float64 `json:"global_pnl"`
	RunPnl    float64 `json:"run_pnl"`
}

// ApprovalMessage - новая или разрешенная запись согласования
type ApprovalMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub управляет всеми активными WebSocket соединениями
//
// Broadcast не блокируется на медленных клиентах: переполненный
// буфер отправки означает отключение клиента, не задержку потока.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub создает Hub (запуск через Run в горутине)
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run - главный цикл Hub до отмены контекста
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			utils.L().Debugw("websocket client connected", "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			utils.L().Debugw("websocket client disconnected", "total", n)

		case message := <-h.broadcast:
			// Список копируется под коротким RLock, отправка идет
			// без блокировки чтобы не тормозить register/unregister
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				n := len(h.clients)
				h.mu.Unlock()
				utils.L().Warnw("removed slow websocket clients", "removed", len(toRemove), "total", n)
			}
		}
	}
}

// closeAll отключает всех клиентов при shutdown
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// Broadcast сериализует сообщение и рассылает всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		utils.L().Errorw("broadcast marshal failed", "error", err)
		jsonBufferPool.Put(buf)
		return
	}

	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	select {
	case h.broadcast <- msgCopy:
	default:
		// Hub не запущен или переполнен: real-time поток best-effort
		utils.L().Warn("websocket broadcast channel full, message dropped")
	}
}

// BroadcastKillSwitch рассылает смену состояния kill switch
func (h *Hub) BroadcastKillSwitch(active bool, reason, clientID string) {
	h.Broadcast(&KillSwitchMessage{
		Type:     "killSwitch",
		Active:   active,
		Reason:   reason,
		ClientID: clientID,
	})
}

// BroadcastRiskEvent рассылает риск-событие
func (h *Hub) BroadcastRiskEvent(event interface{}) {
	h.Broadcast(&RiskEventMessage{
		Type: "riskEvent",
		Data: event,
	})
}

// BroadcastWorkerStatus рассылает смену статуса воркера
func (h *Hub) BroadcastWorkerStatus(workerID, clientID, status string) {
	h.Broadcast(&WorkerStatusMessage{
		Type:     "workerStatus",
		WorkerID: workerID,
		ClientID: clientID,
		Status:   status,
	})
}

// BroadcastPnlUpdate рассылает обновление PnL клиента
func (h *Hub) BroadcastPnlUpdate(clientID string, globalPnl, runPnl float64) {
	h.Broadcast(&PnlUpdateMessage{
		Type:      "pnlUpdate",
		ClientID:  clientID,
		GlobalPnl: globalPnl,
		RunPnl:    runPnl,
	})
}

// BroadcastApproval рассылает событие согласования
func (h *Hub) BroadcastApproval(record interface{}) {
	h.Broadcast(&ApprovalMessage{
		Type: "approval",
		Data: record,
	})
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
