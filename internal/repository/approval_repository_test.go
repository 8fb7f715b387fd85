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
// ApprovalRepository Tests
// ============================================================

func approvalColumns() []string {
	return []string{
		"id", "client_id", "strategy_id", "correlation_id", "status",
		"amount_usd", "requested_by", "meta", "created_at", "resolved_at",
	}
}

func TestApprovalRepositoryCreatePending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO trade_approvals`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	repo := NewApprovalRepository(db)
	rec := &models.TradeApprovalRecord{
		ClientID:      "c1",
		StrategyID:    "grid_v2",
		CorrelationID: "corr-123",
		AmountUsd:     12000,
		RequestedBy:   "strategy:grid_v2",
	}

	if err := repo.CreatePending(rec); err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}
	if rec.ID != 7 {
		t.Errorf("ID = %d, expected 7", rec.ID)
	}
	if rec.Status != models.ApprovalPending {
		t.Errorf("Status = %s, expected pending", rec.Status)
	}
}

func TestApprovalRepositoryGetByCorrelation(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectErr   error
		expectID    int
	}{
		{
			name: "found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(approvalColumns()).
					AddRow(3, "c1", "grid_v2", "corr-123", "pending", 12000.0, "strategy:grid_v2", nil, now, nil)
				mock.ExpectQuery(`SELECT .+ FROM trade_approvals WHERE client_id = \$1 AND correlation_id = \$2`).
					WithArgs("c1", "corr-123").
					WillReturnRows(rows)
			},
			expectID: 3,
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM trade_approvals`).
					WillReturnError(sql.ErrNoRows)
			},
			expectErr: ErrApprovalNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewApprovalRepository(db)
			rec, err := repo.GetByCorrelation("c1", "corr-123")

			if tt.expectErr != nil {
				if !errors.Is(err, tt.expectErr) {
					t.Errorf("error = %v, expected %v", err, tt.expectErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.ID != tt.expectID {
				t.Errorf("ID = %d, expected %d", rec.ID, tt.expectID)
			}
		})
	}
}

func TestApprovalRepositoryUpdateStatus(t *testing.T) {
	t.Run("pending to approved", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock: %v", err)
		}
		defer db.Close()

		mock.ExpectExec(`UPDATE trade_approvals SET status = \$1, resolved_at = \$2 WHERE id = \$3 AND status = \$4`).
			WithArgs(models.ApprovalApproved, sqlmock.AnyArg(), 3, models.ApprovalPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewApprovalRepository(db)
		if err := repo.UpdateStatus(3, models.ApprovalApproved); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
	})

	t.Run("already resolved", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock: %v", err)
		}
		defer db.Close()

		now := time.Now()
		mock.ExpectExec(`UPDATE trade_approvals`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		// UpdateStatus перечитывает запись чтобы различить not-found и resolved
		rows := sqlmock.NewRows(approvalColumns()).
			AddRow(3, "c1", "grid_v2", "corr-123", "approved", 12000.0, "op", nil, now, &now)
		mock.ExpectQuery(`SELECT .+ FROM trade_approvals WHERE id = \$1`).
			WithArgs(3).
			WillReturnRows(rows)

		repo := NewApprovalRepository(db)
		err = repo.UpdateStatus(3, models.ApprovalRejected)
		if !errors.Is(err, ErrApprovalResolved) {
			t.Errorf("error = %v, expected ErrApprovalResolved", err)
		}
	})
}
