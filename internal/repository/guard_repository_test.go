package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradeguard/internal/models"
)

// ============================================================
// GuardRepository Tests
// ============================================================

// stateFixture возвращает заполненное состояние guard для тестов
func stateFixture() (*models.GuardState, time.Time) {
	now := time.Now()
	ts := now.Add(-time.Second)
	return &models.GuardState{
		ClientID:             "c1",
		GlobalPnl:            12.5,
		RunPnl:               3.1,
		InventoryBase:        0.02,
		InventoryCost:        400.0,
		LastTickerTimestamp:  &ts,
		LastTickerRecordedAt: &now,
		LastTickerSource:     "binance",
		LastTickerLatencyMs:  20,
		APIErrorTimestamps:   []time.Time{now.Add(-30 * time.Second)},
	}, now
}

func TestGuardRepositoryLoad(t *testing.T) {
	now := time.Now()
	tickerTs := now.Add(-2 * time.Second)

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectPnl   float64
		expectError bool
	}{
		{
			name: "existing state",
			mockSetup: func(mock sqlmock.Sqlmock) {
				errorsJSON, _ := json.Marshal([]time.Time{now.Add(-10 * time.Second)})
				rows := sqlmock.NewRows([]string{
					"client_id", "global_pnl", "run_pnl", "inventory_base", "inventory_cost",
					"last_ticker_timestamp", "last_ticker_recorded_at",
					"last_ticker_source", "last_ticker_latency_ms",
					"api_error_timestamps", "updated_at",
				}).AddRow("c1", -42.5, -10.0, 0.01, 200.0, tickerTs, now, "binance", 35, errorsJSON, now)
				mock.ExpectQuery(`SELECT .+ FROM guard_states WHERE client_id = \$1`).
					WithArgs("c1").
					WillReturnRows(rows)
			},
			expectPnl: -42.5,
		},
		{
			name: "missing state creates default",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM guard_states WHERE client_id = \$1`).
					WithArgs("c1").
					WillReturnError(sql.ErrNoRows)
				mock.ExpectExec(`INSERT INTO guard_states`).
					WithArgs("c1", sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			expectPnl: 0,
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

			repo := NewGuardRepository(db)
			state, err := repo.Load("c1")

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if state.GlobalPnl != tt.expectPnl {
				t.Errorf("GlobalPnl = %f, expected %f", state.GlobalPnl, tt.expectPnl)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestGuardRepositorySave(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO guard_states .+ ON CONFLICT \(client_id\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewGuardRepository(db)
	state, _ := stateFixture()
	if err := repo.Save("c1", state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if state.UpdatedAt.IsZero() {
		t.Error("Save should set UpdatedAt")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGuardRepositorySaveError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO guard_states`).
		WillReturnError(sql.ErrConnDone)

	repo := NewGuardRepository(db)
	state, _ := stateFixture()
	if err := repo.Save("c1", state); err == nil {
		t.Error("expected error on connection failure")
	}
}
