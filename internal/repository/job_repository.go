package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradeguard/internal/models"
)

// Ошибки очереди job
var (
	ErrNoJobs      = errors.New("no queued jobs")
	ErrJobNotFound = errors.New("job not found")
)

// JobRepository - очередь job поверх таблицы jobs
//
// Dequeue использует FOR UPDATE SKIP LOCKED: несколько процессов могут
// безопасно разбирать очередь, job забирается ровно одним воркером.
// Порядок выдачи per-client: FIFO по created_at.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository создает новый экземпляр репозитория
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue ставит job в очередь клиента
func (r *JobRepository) Enqueue(clientID string, jobType models.JobType, payload models.JobPayload) (*models.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	job := &models.Job{
		ClientID:  clientID,
		Type:      jobType,
		Payload:   payload,
		Status:    models.JobQueued,
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO jobs (client_id, type, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)
		RETURNING id`

	err = r.db.QueryRow(query, clientID, string(jobType), payloadJSON, job.Status, job.CreatedAt).Scan(&job.ID)
	if err != nil {
		return nil, err
	}

	return job, nil
}

// DequeueForClient забирает следующий job клиента и помечает его running
//
// Возвращает ErrNoJobs если очередь клиента пуста.
func (r *JobRepository) DequeueForClient(clientID string) (*models.Job, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
		SELECT id, client_id, type, payload, status, attempts, last_error, created_at
		FROM jobs
		WHERE client_id = $1 AND status = $2
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	job := &models.Job{}
	var jobType string
	var payloadJSON []byte
	var lastError sql.NullString
	err = tx.QueryRow(query, clientID, models.JobQueued).Scan(
		&job.ID, &job.ClientID, &jobType, &payloadJSON,
		&job.Status, &job.Attempts, &lastError, &job.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoJobs
		}
		return nil, err
	}

	job.Type = models.JobType(jobType)
	job.LastError = lastError.String
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &job.Payload); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(
		`UPDATE jobs SET status = $1, attempts = attempts + 1 WHERE id = $2`,
		models.JobRunning, job.ID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	job.Status = models.JobRunning
	job.Attempts++
	return job, nil
}

// MarkDone подтверждает успешную обработку job
func (r *JobRepository) MarkDone(jobID int) error {
	return r.setStatus(jobID, models.JobDone, "")
}

// MarkFailed фиксирует ошибку обработки job
//
// Job не возвращается в очередь автоматически: ошибка считается
// и логируется на уровне оркестратора, процесс продолжает работу.
func (r *JobRepository) MarkFailed(jobID int, jobErr error) error {
	msg := ""
	if jobErr != nil {
		msg = jobErr.Error()
	}
	return r.setStatus(jobID, models.JobFailed, msg)
}

// QueueDepth возвращает количество ожидающих job клиента
func (r *JobRepository) QueueDepth(clientID string) (int, error) {
	var depth int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM jobs WHERE client_id = $1 AND status = $2`,
		clientID, models.JobQueued,
	).Scan(&depth)
	return depth, err
}

// setStatus обновляет терминальный статус job
func (r *JobRepository) setStatus(jobID int, status, lastError string) error {
	result, err := r.db.Exec(
		`UPDATE jobs SET status = $1, last_error = $2 WHERE id = $3`,
		status, lastError, jobID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrJobNotFound
	}

	return nil
}
