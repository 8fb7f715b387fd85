package models

import "time"

// Notification представляет уведомление для операторов или клиента
type Notification struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`     // DRAWDOWN, RUN_LOSS, API_ERRORS, STALE_DATA, SENTINEL, KILL, PAUSE, APPROVAL
	Severity  string                 `json:"severity"` // info, warn, error
	ClientID  string                 `json:"client_id,omitempty"`
	Subject   string                 `json:"subject,omitempty"`
	Message   string                 `json:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// Типы уведомлений
const (
	NotificationTypeDrawdown  = "DRAWDOWN"   // пробит глобальный drawdown
	NotificationTypeRunLoss   = "RUN_LOSS"   // пробит лимит убытка запуска
	NotificationTypeAPIErrors = "API_ERRORS" // превышена частота ошибок API
	NotificationTypeStaleData = "STALE_DATA" // устаревшие рыночные данные
	NotificationTypeSentinel  = "SENTINEL"   // внешний риск-сигнал
	NotificationTypeKill      = "KILL"       // kill switch активирован
	NotificationTypePause     = "PAUSE"      // воркер поставлен на паузу
	NotificationTypeApproval  = "APPROVAL"   // требуется согласование сделки
)
