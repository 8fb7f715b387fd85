package models

import "time"

// WorkerRecord представляет состояние воркера клиента в реестре
//
// Создается при старте воркера, обновляется каждым heartbeat (15s),
// терминальный статус stopped пишется финальным flush при shutdown.
type WorkerRecord struct {
	WorkerID      string                 `json:"worker_id" db:"worker_id"`
	ClientID      string                 `json:"client_id" db:"client_id"`
	Status        string                 `json:"status" db:"status"` // starting, running, paused, stopped, error
	LastHeartbeat time.Time              `json:"last_heartbeat" db:"last_heartbeat"`
	Meta          map[string]interface{} `json:"meta,omitempty" db:"meta"` // pid, queue_depth, last_error (JSON в БД)
}

// Статусы воркера (state machine - см. worker.ValidTransitions)
const (
	WorkerStarting = "starting"
	WorkerRunning  = "running"
	WorkerPaused   = "paused"
	WorkerStopped  = "stopped" // терминальный
	WorkerError    = "error"   // восстановимый
)
