package repository

import (
	"database/sql"
	"time"

	"tradeguard/internal/models"
)

// AuditRepository - работа с таблицей audit_log
//
// Append-only след действий Trade Approval Policy и Anomaly Monitor.
// Никогда не читается торговым путем - только операторами.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository создает новый экземпляр репозитория
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AddEntry добавляет запись в аудит-журнал
func (r *AuditRepository) AddEntry(clientID, actor, action string, meta map[string]interface{}) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_log (client_id, actor, action, meta, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.Exec(query, clientID, actor, action, metaJSON, time.Now())
	return err
}

// ListByClient возвращает записи аудита клиента (новые сверху)
func (r *AuditRepository) ListByClient(clientID string, limit int) ([]*models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, client_id, actor, action, meta, created_at
		FROM audit_log
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

// scanAuditRows сканирует набор строк аудита
func scanAuditRows(rows *sql.Rows) ([]*models.AuditLogEntry, error) {
	var entries []*models.AuditLogEntry
	for rows.Next() {
		entry := &models.AuditLogEntry{}
		var metaJSON []byte
		if err := rows.Scan(&entry.ID, &entry.ClientID, &entry.Actor, &entry.Action, &metaJSON, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &entry.Meta); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
