package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradeguard/internal/models"
)

// GuardRepository - работа с таблицей guard_states
//
// Одна строка на клиента, эксклюзивно принадлежит circuit breaker.
// Load при первом обращении создает строку с нулевым состоянием,
// Save всегда пишет состояние целиком (upsert).
type GuardRepository struct {
	db *sql.DB
}

// NewGuardRepository создает новый экземпляр репозитория
func NewGuardRepository(db *sql.DB) *GuardRepository {
	return &GuardRepository{db: db}
}

// Load возвращает состояние guard для клиента
//
// Если записи нет - создает и возвращает нулевое состояние
// (первый запуск клиента).
func (r *GuardRepository) Load(clientID string) (*models.GuardState, error) {
	query := `
		SELECT client_id, global_pnl, run_pnl, inventory_base, inventory_cost,
		       last_ticker_timestamp, last_ticker_recorded_at,
		       last_ticker_source, last_ticker_latency_ms,
		       api_error_timestamps, updated_at
		FROM guard_states
		WHERE client_id = $1`

	state := &models.GuardState{}
	var errorsJSON []byte
	err := r.db.QueryRow(query, clientID).Scan(
		&state.ClientID,
		&state.GlobalPnl,
		&state.RunPnl,
		&state.InventoryBase,
		&state.InventoryCost,
		&state.LastTickerTimestamp,
		&state.LastTickerRecordedAt,
		&state.LastTickerSource,
		&state.LastTickerLatencyMs,
		&errorsJSON,
		&state.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.createDefault(clientID)
		}
		return nil, err
	}

	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &state.APIErrorTimestamps); err != nil {
			return nil, err
		}
	}

	return state, nil
}

// Save сохраняет полное состояние guard (upsert)
//
// Вызывается после КАЖДОЙ мутации в circuit breaker. Ошибка записи
// логируется вызывающим, но не блокирует принятое in-memory решение
// (safety over durability).
func (r *GuardRepository) Save(clientID string, state *models.GuardState) error {
	errorsJSON, err := json.Marshal(state.APIErrorTimestamps)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO guard_states (client_id, global_pnl, run_pnl, inventory_base, inventory_cost,
		                          last_ticker_timestamp, last_ticker_recorded_at,
		                          last_ticker_source, last_ticker_latency_ms,
		                          api_error_timestamps, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (client_id) DO UPDATE
		SET global_pnl = $2, run_pnl = $3, inventory_base = $4, inventory_cost = $5,
		    last_ticker_timestamp = $6, last_ticker_recorded_at = $7,
		    last_ticker_source = $8, last_ticker_latency_ms = $9,
		    api_error_timestamps = $10, updated_at = $11`

	state.UpdatedAt = time.Now()

	_, err = r.db.Exec(query,
		clientID,
		state.GlobalPnl,
		state.RunPnl,
		state.InventoryBase,
		state.InventoryCost,
		state.LastTickerTimestamp,
		state.LastTickerRecordedAt,
		state.LastTickerSource,
		state.LastTickerLatencyMs,
		errorsJSON,
		state.UpdatedAt,
	)

	return err
}

// createDefault создает нулевое состояние для нового клиента
func (r *GuardRepository) createDefault(clientID string) (*models.GuardState, error) {
	state := &models.GuardState{
		ClientID:  clientID,
		UpdatedAt: time.Now(),
	}

	errorsJSON, err := json.Marshal([]time.Time{})
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO guard_states (client_id, global_pnl, run_pnl, inventory_base, inventory_cost,
		                          last_ticker_source, last_ticker_latency_ms,
		                          api_error_timestamps, updated_at)
		VALUES ($1, 0, 0, 0, 0, '', 0, $2, $3)
		ON CONFLICT (client_id) DO NOTHING`

	if _, err := r.db.Exec(query, clientID, errorsJSON, state.UpdatedAt); err != nil {
		return nil, err
	}

	return state, nil
}
