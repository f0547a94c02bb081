package errs

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"socialnet/logger"
)

// codes maps application error codes to http status codes.
var codes = map[string]int{
	ECONFLICT:     http.StatusBadRequest,
	EINVALID:      http.StatusBadRequest,
	ENOTFOUND:     http.StatusNotFound,
	EUNAUTHORIZED: http.StatusUnauthorized,
	ERATELIMIT:    http.StatusTooManyRequests,
	EINTERNAL:     http.StatusInternalServerError,
}

// ErrorStatusCode returns the associated HTTP status code for an application error code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

// ReturnError writes err to the response as {"error": message} with the matching status code.
// Internal errors are logged, and only a generic message reaches the client.
func ReturnError(w http.ResponseWriter, r *http.Request, err error) {
	code, message := ErrorCode(err), ErrorMessage(err)
	if code == EINTERNAL {
		LogError(r, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ErrorStatusCode(code))
	if err := json.NewEncoder(w).Encode(&ErrorResponse{Error: message}); err != nil {
		LogError(r, err)
	}
}

// ErrorResponse is the json body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LogError logs an error along with the request that caused it.
func LogError(r *http.Request, err error) {
	logger.Error("request error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}
