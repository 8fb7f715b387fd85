package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradeguard/internal/models"
)

// ============================================================
// RiskEventRepository Tests
// ============================================================

func TestRiskEventInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO risk_events`).
		WithArgs(models.RiskEventBtcDrop, "critical", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	repo := NewRiskEventRepository(db)
	event, err := repo.Insert(models.RiskEventBtcDrop, "critical", map[string]interface{}{"momentum_pct": -6.2})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if event.ID != 7 {
		t.Errorf("ID = %d, want 7", event.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRiskEventLatestByTypeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM risk_events`).
		WithArgs(models.RiskEventGasSpike).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "severity", "details", "created_at"}))

	repo := NewRiskEventRepository(db)
	_, err = repo.LatestByType(models.RiskEventGasSpike)
	if !errors.Is(err, ErrRiskEventNotFound) {
		t.Errorf("err = %v, want ErrRiskEventNotFound", err)
	}
}

func TestRiskEventDeleteOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM risk_events WHERE created_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	repo := NewRiskEventRepository(db)
	deleted, err := repo.DeleteOlderThan(cutoff)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if deleted != 42 {
		t.Errorf("deleted = %d, want 42", deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
