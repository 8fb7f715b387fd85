package middleware

import (
	"net/http"
	"runtime/debug"

	"tradeguard/pkg/utils"
)

// Recovery перехватывает panic в handlers
//
// Сервер управляет kill switch и согласованиями: падение процесса
// из-за паники в одном handler недопустимо. Panic логируется со
// stack trace, клиент получает 500 без деталей.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				utils.L().Errorw("handler panic",
					"error", err,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
