package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradeguard/internal/models"
)

// Ошибки реестра воркеров
var (
	ErrWorkerNotFound = errors.New("worker not found")
)

// WorkerRepository - работа с таблицей workers (реестр воркеров)
//
// Upsert при старте воркера, Heartbeat каждые 15 секунд,
// финальный Heartbeat(stopped) при shutdown.
type WorkerRepository struct {
	db *sql.DB
}

// NewWorkerRepository создает новый экземпляр репозитория
func NewWorkerRepository(db *sql.DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

// Upsert регистрирует воркера или обновляет его запись целиком
func (r *WorkerRepository) Upsert(workerID, clientID, status string, meta map[string]interface{}) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workers (worker_id, client_id, status, last_heartbeat, meta)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (worker_id) DO UPDATE
		SET client_id = $2, status = $3, last_heartbeat = $4, meta = $5`

	_, err = r.db.Exec(query, workerID, clientID, status, time.Now(), metaJSON)
	return err
}

// Heartbeat обновляет статус и время последнего heartbeat
func (r *WorkerRepository) Heartbeat(workerID, status string, meta map[string]interface{}) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	query := `
		UPDATE workers
		SET status = $1, last_heartbeat = $2, meta = $3
		WHERE worker_id = $4`

	result, err := r.db.Exec(query, status, time.Now(), metaJSON, workerID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrWorkerNotFound
	}

	return nil
}

// ListActive возвращает воркеров с heartbeat не старше заданного окна
func (r *WorkerRepository) ListActive(maxAge time.Duration) ([]*models.WorkerRecord, error) {
	query := `
		SELECT worker_id, client_id, status, last_heartbeat, meta
		FROM workers
		WHERE last_heartbeat > $1
		ORDER BY client_id`

	rows, err := r.db.Query(query, time.Now().Add(-maxAge))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*models.WorkerRecord
	for rows.Next() {
		w := &models.WorkerRecord{}
		var metaJSON []byte
		if err := rows.Scan(&w.WorkerID, &w.ClientID, &w.Status, &w.LastHeartbeat, &metaJSON); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &w.Meta); err != nil {
				return nil, err
			}
		}
		workers = append(workers, w)
	}

	return workers, rows.Err()
}

// GetByID возвращает запись воркера
func (r *WorkerRepository) GetByID(workerID string) (*models.WorkerRecord, error) {
	query := `
		SELECT worker_id, client_id, status, last_heartbeat, meta
		FROM workers
		WHERE worker_id = $1`

	w := &models.WorkerRecord{}
	var metaJSON []byte
	err := r.db.QueryRow(query, workerID).Scan(&w.WorkerID, &w.ClientID, &w.Status, &w.LastHeartbeat, &metaJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWorkerNotFound
		}
		return nil, err
	}

	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &w.Meta); err != nil {
			return nil, err
		}
	}

	return w, nil
}
