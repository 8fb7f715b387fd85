package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradeguard/internal/models"
)

// Ошибки репозитория риск-событий
var (
	ErrRiskEventNotFound = errors.New("risk event not found")
)

// RiskEventRepository - работа с таблицей risk_events
//
// Append-only журнал срабатываний Global Sentinel.
// LatestByType используется для cooldown-дедупликации.
type RiskEventRepository struct {
	db *sql.DB
}

// NewRiskEventRepository создает новый экземпляр репозитория
func NewRiskEventRepository(db *sql.DB) *RiskEventRepository {
	return &RiskEventRepository{db: db}
}

// Insert добавляет новое риск-событие
func (r *RiskEventRepository) Insert(eventType, severity string, details map[string]interface{}) (*models.RiskEvent, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}

	event := &models.RiskEvent{
		Type:      eventType,
		Severity:  severity,
		Details:   details,
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO risk_events (type, severity, details, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err = r.db.QueryRow(query, eventType, severity, detailsJSON, event.CreatedAt).Scan(&event.ID)
	if err != nil {
		return nil, err
	}

	return event, nil
}

// LatestByType возвращает последнее событие данного типа
//
// Возвращает ErrRiskEventNotFound если событий этого типа еще не было.
func (r *RiskEventRepository) LatestByType(eventType string) (*models.RiskEvent, error) {
	query := `
		SELECT id, type, severity, details, created_at
		FROM risk_events
		WHERE type = $1
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanOne(r.db.QueryRow(query, eventType))
}

// ListRecent возвращает последние события (новые сверху)
func (r *RiskEventRepository) ListRecent(limit int) ([]*models.RiskEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, type, severity, details, created_at
		FROM risk_events
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.RiskEvent
	for rows.Next() {
		event := &models.RiskEvent{}
		var detailsJSON []byte
		if err := rows.Scan(&event.ID, &event.Type, &event.Severity, &detailsJSON, &event.CreatedAt); err != nil {
			return nil, err
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
				return nil, err
			}
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// DeleteOlderThan удаляет события старше заданного времени (автоочистка)
func (r *RiskEventRepository) DeleteOlderThan(olderThan time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM risk_events WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// scanOne сканирует одну строку события
func (r *RiskEventRepository) scanOne(row *sql.Row) (*models.RiskEvent, error) {
	event := &models.RiskEvent{}
	var detailsJSON []byte
	err := row.Scan(&event.ID, &event.Type, &event.Severity, &detailsJSON, &event.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRiskEventNotFound
		}
		return nil, err
	}

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
			return nil, err
		}
	}

	return event, nil
}
