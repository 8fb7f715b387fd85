package handlers

import (
	"errors"
	"time"

	"tradeguard/internal/models"
	"tradeguard/internal/repository"
)

// ErrMockDatabase - имитация ошибки БД в тестах
var ErrMockDatabase = errors.New("mock database error")

// ============ MockWorkerLister ============

type MockWorkerLister struct {
	records []*models.WorkerRecord
	err     error
}

func NewMockWorkerLister() *MockWorkerLister {
	return &MockWorkerLister{}
}

func (m *MockWorkerLister) ListActive(maxAge time.Duration) ([]*models.WorkerRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

func (m *MockWorkerLister) GetByID(workerID string) (*models.WorkerRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, rec := range m.records {
		if rec.WorkerID == workerID {
			return rec, nil
		}
	}
	return nil, repository.ErrWorkerNotFound
}

// ============ MockClientControl ============

type MockClientControl struct {
	clients       map[string]*models.ClientRecord
	killRequested map[string]bool
	err           error
}

func NewMockClientControl(ids ...string) *MockClientControl {
	m := &MockClientControl{
		clients:       make(map[string]*models.ClientRecord),
		killRequested: make(map[string]bool),
	}
	for _, id := range ids {
		m.clients[id] = &models.ClientRecord{ID: id, BillingStatus: models.BillingActive}
	}
	return m
}

func (m *MockClientControl) GetByID(id string) (*models.ClientRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.clients[id]
	if !ok {
		return nil, repository.ErrClientNotFound
	}
	return c, nil
}

func (m *MockClientControl) SetKillRequested(id string, requested bool) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.clients[id]; !ok {
		return repository.ErrClientNotFound
	}
	m.killRequested[id] = requested
	return nil
}

// ============ MockJobEnqueuer ============

type MockJobEnqueuer struct {
	enqueued []*models.Job
	err      error
}

func NewMockJobEnqueuer() *MockJobEnqueuer {
	return &MockJobEnqueuer{}
}

func (m *MockJobEnqueuer) Enqueue(clientID string, jobType models.JobType, payload models.JobPayload) (*models.Job, error) {
	if m.err != nil {
		return nil, m.err
	}
	job := &models.Job{
		ID:       len(m.enqueued) + 1,
		ClientID: clientID,
		Type:     jobType,
		Payload:  payload,
		Status:   models.JobQueued,
	}
	m.enqueued = append(m.enqueued, job)
	return job, nil
}
