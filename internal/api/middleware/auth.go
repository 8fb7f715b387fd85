package middleware

import (
	"context"
	"net/http"
	"strings"

	"tradeguard/pkg/crypto"
)

// contextKey - собственный тип ключа контекста (без коллизий)
type contextKey string

const operatorKey contextKey = "operator"

// OperatorAuth проверяет токен оператора для защищенных эндпоинтов
//
// Деактивация kill switch и разрешение согласований - отдельно
// авторизуемые операции: токен из Authorization: Bearer <name>:<token>
// сверяется с bcrypt-хешем из конфигурации. Имя оператора кладется
// в context запроса и попадает в аудит-журнал.
type OperatorAuth struct {
	// tokenHashes - имя оператора -> bcrypt хеш токена
	tokenHashes map[string]string
}

// NewOperatorAuth создает middleware с набором операторов
func NewOperatorAuth(tokenHashes map[string]string) *OperatorAuth {
	return &OperatorAuth{tokenHashes: tokenHashes}
}

// Middleware возвращает http middleware проверки токена
func (a *OperatorAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "operator token required", http.StatusUnauthorized)
			return
		}

		// Формат: <operator>:<token>
		parts := strings.SplitN(strings.TrimPrefix(header, "Bearer "), ":", 2)
		if len(parts) != 2 {
			http.Error(w, "malformed operator token", http.StatusUnauthorized)
			return
		}
		operator, token := parts[0], parts[1]

		// bcrypt сравнение constant-time, перебор не дает тайминг
		hash, ok := a.tokenHashes[operator]
		if !ok || !crypto.CheckPasswordMatch(token, hash) {
			http.Error(w, "invalid operator token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorFromContext возвращает имя авторизованного оператора
func OperatorFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(operatorKey).(string); ok {
		return op
	}
	return ""
}
