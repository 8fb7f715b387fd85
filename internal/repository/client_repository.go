package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradeguard/internal/models"
)

// Ошибки репозитория клиентов
var (
	ErrClientNotFound   = errors.New("client not found")
	ErrStrategyNotFound = errors.New("client strategy not found")
)

// ClientRepository - работа с таблицей clients
//
// Записи принадлежат биллинговой подсистеме; control plane читает их
// перед каждым job и пишет только флаги is_paused / kill_requested.
type ClientRepository struct {
	db *sql.DB
}

// NewClientRepository создает новый экземпляр репозитория
func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// GetByID возвращает клиента по идентификатору
func (r *ClientRepository) GetByID(id string) (*models.ClientRecord, error) {
	query := `
		SELECT id, billing_status, trial_ends_at, is_paused, kill_requested, plan_id,
		       api_key_encrypted, api_secret_encrypted,
		       max_global_drawdown_usd, max_run_loss_usd,
		       created_at, updated_at
		FROM clients
		WHERE id = $1`

	client := &models.ClientRecord{}
	err := r.db.QueryRow(query, id).Scan(
		&client.ID,
		&client.BillingStatus,
		&client.TrialEndsAt,
		&client.IsPaused,
		&client.KillRequested,
		&client.PlanID,
		&client.APIKeyEncrypted,
		&client.APISecretEncrypted,
		&client.MaxGlobalDrawdownUsd,
		&client.MaxRunLossUsd,
		&client.CreatedAt,
		&client.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	return client, nil
}

// ListIDs возвращает идентификаторы клиентов с действующим доступом
//
// Используется при старте сервера для подъема оркестраторов. Клиенты
// с canceled биллингом воркера не получают.
func (r *ClientRepository) ListIDs() ([]string, error) {
	query := `
		SELECT id
		FROM clients
		WHERE billing_status != 'canceled'
		ORDER BY id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// SetPaused устанавливает флаг паузы клиента
//
// Используется оркестратором для force-pause при неактивном биллинге
// и для auto-unpause при восстановлении оплаты.
func (r *ClientRepository) SetPaused(id string, paused bool) error {
	query := `
		UPDATE clients
		SET is_paused = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, paused, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrClientNotFound
	}

	return nil
}

// SetKillRequested устанавливает флаг принудительной остановки воркера
func (r *ClientRepository) SetKillRequested(id string, requested bool) error {
	query := `
		UPDATE clients
		SET kill_requested = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, requested, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrClientNotFound
	}

	return nil
}

// UpdateBillingStatus обновляет статус биллинга (вызывается из billing webhook)
func (r *ClientRepository) UpdateBillingStatus(id, status string, trialEndsAt *time.Time) error {
	query := `
		UPDATE clients
		SET billing_status = $1, trial_ends_at = $2, updated_at = $3
		WHERE id = $4`

	result, err := r.db.Exec(query, status, trialEndsAt, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrClientNotFound
	}

	return nil
}

// GetStrategy возвращает настройки стратегии для клиента
//
// Используется оркестратором при диспетчеризации run_strategy/run_grid:
// проверка что стратегия включена и имеет положительный вес аллокации.
func (r *ClientRepository) GetStrategy(clientID, strategyID string) (*models.ClientStrategy, error) {
	query := `
		SELECT client_id, strategy_id, enabled, weight, run_mode
		FROM client_strategies
		WHERE client_id = $1 AND strategy_id = $2`

	cs := &models.ClientStrategy{}
	err := r.db.QueryRow(query, clientID, strategyID).Scan(
		&cs.ClientID,
		&cs.StrategyID,
		&cs.Enabled,
		&cs.Weight,
		&cs.RunMode,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStrategyNotFound
		}
		return nil, err
	}

	return cs, nil
}
