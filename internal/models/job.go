package models

import (
	"fmt"
	"time"
)

// JobType - закрытый набор типов job для воркера клиента
//
// Новый тип job = новая константа + новый case в exhaustive switch
// диспетчера (worker.Orchestrator.dispatch вернет ошибку на неизвестный
// тип еще до исполнения).
type JobType string

const (
	JobRunStrategy JobType = "run_strategy"
	JobRunGrid     JobType = "run_grid"
	JobPause       JobType = "pause"
	JobResume      JobType = "resume"
	JobShutdown    JobType = "shutdown"
)

// Valid проверяет что тип job известен
func (t JobType) Valid() bool {
	switch t {
	case JobRunStrategy, JobRunGrid, JobPause, JobResume, JobShutdown:
		return true
	}
	return false
}

// IsRun возвращает true для job, запускающих стратегию
func (t JobType) IsRun() bool {
	return t == JobRunStrategy || t == JobRunGrid
}

// Job - сообщение из очереди клиента
type Job struct {
	ID        int        `json:"id" db:"id"`
	ClientID  string     `json:"client_id" db:"client_id"`
	Type      JobType    `json:"type" db:"type"`
	Payload   JobPayload `json:"payload" db:"payload"` // JSON в БД
	Status    string     `json:"status" db:"status"`   // queued, running, done, failed
	Attempts  int        `json:"attempts" db:"attempts"`
	LastError string     `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// JobPayload - данные job (контракт очереди)
type JobPayload struct {
	StrategyID string                 `json:"strategy_id,omitempty"`
	Pair       string                 `json:"pair,omitempty"`
	RunMode    string                 `json:"run_mode,omitempty"` // live, paper
	Actor      string                 `json:"actor,omitempty"`
	Config     map[string]interface{} `json:"config,omitempty"`
}

// Статусы job в очереди
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// Validate проверяет консистентность job перед диспетчеризацией
func (j *Job) Validate() error {
	if !j.Type.Valid() {
		return fmt.Errorf("unknown job type %q", j.Type)
	}
	if j.Type.IsRun() && j.Payload.StrategyID == "" {
		return fmt.Errorf("job %d: %s requires strategy_id", j.ID, j.Type)
	}
	return nil
}
