package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradeguard/internal/models"
)

// ============================================================
// JobRepository Tests
// ============================================================

func TestJobRepositoryDequeueForClient(t *testing.T) {
	now := time.Now()

	t.Run("job available", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock: %v", err)
		}
		defer db.Close()

		payloadJSON, _ := json.Marshal(models.JobPayload{StrategyID: "grid_v2", RunMode: "live"})
		rows := sqlmock.NewRows([]string{
			"id", "client_id", "type", "payload", "status", "attempts", "last_error", "created_at",
		}).AddRow(11, "c1", "run_strategy", payloadJSON, "queued", 0, nil, now)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .+ FROM jobs .+ FOR UPDATE SKIP LOCKED`).
			WithArgs("c1", models.JobQueued).
			WillReturnRows(rows)
		mock.ExpectExec(`UPDATE jobs SET status = \$1, attempts = attempts \+ 1 WHERE id = \$2`).
			WithArgs(models.JobRunning, 11).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewJobRepository(db)
		job, err := repo.DequeueForClient("c1")
		if err != nil {
			t.Fatalf("DequeueForClient failed: %v", err)
		}
		if job.Type != models.JobRunStrategy {
			t.Errorf("Type = %s, expected run_strategy", job.Type)
		}
		if job.Payload.StrategyID != "grid_v2" {
			t.Errorf("StrategyID = %s, expected grid_v2", job.Payload.StrategyID)
		}
		if job.Status != models.JobRunning {
			t.Errorf("Status = %s, expected running", job.Status)
		}
		if job.Attempts != 1 {
			t.Errorf("Attempts = %d, expected 1", job.Attempts)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("empty queue", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock: %v", err)
		}
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .+ FROM jobs`).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		repo := NewJobRepository(db)
		_, err = repo.DequeueForClient("c1")
		if !errors.Is(err, ErrNoJobs) {
			t.Errorf("error = %v, expected ErrNoJobs", err)
		}
	})
}

func TestJobRepositoryMarkFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE jobs SET status = \$1, last_error = \$2 WHERE id = \$3`).
		WithArgs(models.JobFailed, "boom", 11).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewJobRepository(db)
	if err := repo.MarkFailed(11, errors.New("boom")); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
}

func TestJobRepositoryQueueDepth(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM jobs WHERE client_id = \$1 AND status = \$2`).
		WithArgs("c1", models.JobQueued).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	repo := NewJobRepository(db)
	depth, err := repo.QueueDepth("c1")
	if err != nil {
		t.Fatalf("QueueDepth failed: %v", err)
	}
	if depth != 4 {
		t.Errorf("depth = %d, expected 4", depth)
	}
}
