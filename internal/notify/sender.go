package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tradeguard/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WebhookSender доставляет уведомления POST-запросом на webhook
//
// Операторские уведомления уходят на OpsURL, клиентские на ClientURL
// (шлюз рассылки сам решает канал: email, telegram, push).
type WebhookSender struct {
	opsURL    string
	clientURL string
	client    *http.Client
}

// NewWebhookSender создает webhook-отправителя
func NewWebhookSender(opsURL, clientURL string) *WebhookSender {
	return &WebhookSender{
		opsURL:    opsURL,
		clientURL: clientURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// webhookPayload - тело POST запроса на шлюз рассылки
type webhookPayload struct {
	ClientID string `json:"client_id,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Message  string `json:"message"`
	SentAt   string `json:"sent_at"`
}

// SendOps отправляет операторское уведомление
func (w *WebhookSender) SendOps(ctx context.Context, message string) error {
	return w.post(ctx, w.opsURL, webhookPayload{
		Message: message,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	})
}

// SendClient отправляет клиентское уведомление
func (w *WebhookSender) SendClient(ctx context.Context, clientID, subject, message string) error {
	return w.post(ctx, w.clientURL, webhookPayload{
		ClientID: clientID,
		Subject:  subject,
		Message:  message,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (w *WebhookSender) post(ctx context.Context, url string, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// LogSender - запасной отправитель: пишет уведомления в лог
//
// Используется когда webhook не сконфигурирован (dev окружение).
type LogSender struct{}

// SendOps пишет операторское уведомление в лог
func (LogSender) SendOps(_ context.Context, message string) error {
	utils.L().Warnw("ops notification", "message", message)
	return nil
}

// SendClient пишет клиентское уведомление в лог
func (LogSender) SendClient(_ context.Context, clientID, subject, message string) error {
	utils.L().Infow("client notification",
		"client_id", clientID,
		"subject", subject,
		"message", message,
	)
	return nil
}

// Проверка реализации интерфейса
var (
	_ Sender = (*WebhookSender)(nil)
	_ Sender = LogSender{}
)
