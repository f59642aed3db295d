package httpapi

import (
	"net/http"

	"github.com/goliatone/go-auth-service/exception"
)

// StatusMap resolves the HTTP status of an exception. Message keys are
// checked before codes; anything unmatched is a 500.
type StatusMap struct {
	Messages map[string]int
	Codes    map[int]int
}

func DefaultStatusMap() StatusMap {
	return StatusMap{
		Messages: map[string]int{
			exception.KeyParameterRequired:  http.StatusBadRequest,
			exception.KeyParameterNotString: http.StatusBadRequest,
			exception.KeySessionNotFound:    http.StatusUnauthorized,
		},
		Codes: map[int]int{
			exception.Duplicate:       http.StatusConflict,
			exception.InvalidArgument: http.StatusBadRequest,
			exception.NotFound:        http.StatusNotFound,
		},
	}
}

func (m StatusMap) Status(ex exception.Exception) int {
	if status, ok := m.Messages[ex.MessageKey]; ok {
		return status
	}
	if status, ok := m.Codes[ex.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
