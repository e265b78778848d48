package server

import (
	"encoding/json"
	"net/http"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error    string           `json:"error"`
	Code     errors.ErrorCode `json:"code"`
	Category string           `json:"category"`
}

// statusFor maps an error code onto an HTTP status.
func statusFor(err error) int {
	code := errors.GetCode(err)

	switch code {
	case errors.ErrCodeRecordNotFound, errors.ErrCodeBacktestNotFound, errors.ErrCodeDataNotFound:
		return http.StatusNotFound
	case errors.ErrCodeStrategyRuntimeError:
		return http.StatusUnprocessableEntity
	}

	switch code.Category() {
	case "validation", "strategy":
		return http.StatusBadRequest
	case "data":
		if errors.IsPrecondition(err) {
			return http.StatusBadRequest
		}
	}

	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := errors.GetCode(err)

	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}

	s.writeJSON(w, status, errorResponse{
		Error:    err.Error(),
		Code:     code,
		Category: code.Category(),
	})
}
