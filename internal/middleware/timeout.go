package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-user-template/internal/model"
)

// Timeout bounds the handler and cancels its context. Database and upstream
// calls made with the request context stop when the limit is reached.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	body, _ := json.Marshal(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "REQUEST_TIMEOUT",
			Message: "request timed out",
		},
	})
	message := string(body)

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}
