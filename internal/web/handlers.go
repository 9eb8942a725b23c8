package web

import (
	"encoding/json"
	"net/http"

	"github.com/jredmond/openhouse/internal/fault"
)

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// faultStatus maps an error's fault kind to an HTTP status code.
func faultStatus(err error) int {
	switch fault.KindOf(err) {
	case fault.KindInvalid:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindDuplicate, fault.KindConflict, fault.KindAlreadyInState, fault.KindAlreadyEnrolled:
		return http.StatusConflict
	case fault.KindInvalidTransition, fault.KindPrecondition,
		fault.KindSessionNotActive, fault.KindSequenceInactive:
		return http.StatusUnprocessableEntity
	case fault.KindGenerationFailed, fault.KindDeliveryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeFault writes an error response with the fault kind in the body.
func writeFault(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(faultStatus(err))
	resp := map[string]string{
		"error": err.Error(),
		"kind":  string(fault.KindOf(err)),
	}
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}
