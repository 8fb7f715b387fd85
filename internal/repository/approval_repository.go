package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradeguard/internal/models"
)

// Ошибки репозитория согласований
var (
	ErrApprovalNotFound = errors.New("trade approval not found")
	ErrApprovalResolved = errors.New("trade approval already resolved")
)

// ApprovalRepository - работа с таблицей trade_approvals
//
// Уникальный индекс (client_id, correlation_id) гарантирует что
// повторная подача того же кандидата сделки не создаст дубликат.
type ApprovalRepository struct {
	db *sql.DB
}

// NewApprovalRepository создает новый экземпляр репозитория
func NewApprovalRepository(db *sql.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// CreatePending создает новую pending-запись согласования
func (r *ApprovalRepository) CreatePending(rec *models.TradeApprovalRecord) error {
	metaJSON, err := json.Marshal(rec.Meta)
	if err != nil {
		return err
	}

	rec.Status = models.ApprovalPending
	rec.CreatedAt = time.Now()

	query := `
		INSERT INTO trade_approvals (client_id, strategy_id, correlation_id, status,
		                             amount_usd, requested_by, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	return r.db.QueryRow(query,
		rec.ClientID,
		rec.StrategyID,
		rec.CorrelationID,
		rec.Status,
		rec.AmountUsd,
		rec.RequestedBy,
		metaJSON,
		rec.CreatedAt,
	).Scan(&rec.ID)
}

// GetByCorrelation возвращает запись по ключу (client_id, correlation_id)
func (r *ApprovalRepository) GetByCorrelation(clientID, correlationID string) (*models.TradeApprovalRecord, error) {
	query := `
		SELECT id, client_id, strategy_id, correlation_id, status,
		       amount_usd, requested_by, meta, created_at, resolved_at
		FROM trade_approvals
		WHERE client_id = $1 AND correlation_id = $2`

	return r.scanOne(r.db.QueryRow(query, clientID, correlationID))
}

// GetByID возвращает запись по идентификатору
func (r *ApprovalRepository) GetByID(id int) (*models.TradeApprovalRecord, error) {
	query := `
		SELECT id, client_id, strategy_id, correlation_id, status,
		       amount_usd, requested_by, meta, created_at, resolved_at
		FROM trade_approvals
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(query, id))
}

// UpdateStatus переводит pending-запись в approved/rejected
//
// Переход разрешен только из pending: approved/rejected терминальны.
func (r *ApprovalRepository) UpdateStatus(id int, status string) error {
	query := `
		UPDATE trade_approvals
		SET status = $1, resolved_at = $2
		WHERE id = $3 AND status = $4`

	result, err := r.db.Exec(query, status, time.Now(), id, models.ApprovalPending)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Либо записи нет, либо она уже разрешена
		if _, err := r.GetByID(id); err != nil {
			return err
		}
		return ErrApprovalResolved
	}

	return nil
}

// ListPending возвращает все ожидающие согласования записи
func (r *ApprovalRepository) ListPending(limit int) ([]*models.TradeApprovalRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, client_id, strategy_id, correlation_id, status,
		       amount_usd, requested_by, meta, created_at, resolved_at
		FROM trade_approvals
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.db.Query(query, models.ApprovalPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.TradeApprovalRecord
	for rows.Next() {
		rec := &models.TradeApprovalRecord{}
		var metaJSON []byte
		if err := rows.Scan(
			&rec.ID, &rec.ClientID, &rec.StrategyID, &rec.CorrelationID, &rec.Status,
			&rec.AmountUsd, &rec.RequestedBy, &metaJSON, &rec.CreatedAt, &rec.ResolvedAt,
		); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &rec.Meta); err != nil {
				return nil, err
			}
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// scanOne сканирует одну строку согласования
func (r *ApprovalRepository) scanOne(row *sql.Row) (*models.TradeApprovalRecord, error) {
	rec := &models.TradeApprovalRecord{}
	var metaJSON []byte
	err := row.Scan(
		&rec.ID, &rec.ClientID, &rec.StrategyID, &rec.CorrelationID, &rec.Status,
		&rec.AmountUsd, &rec.RequestedBy, &metaJSON, &rec.CreatedAt, &rec.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApprovalNotFound
		}
		return nil, err
	}

	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &rec.Meta); err != nil {
			return nil, err
		}
	}

	return rec, nil
}
