// Package api implements the HTTP surface of the suspension service: the
// billing webhook, health and metrics.
package api

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the rejection envelope for authentication and validation
// failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError writes an ErrorResponse.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// UnexpectedResponse answers any internal fault. It is sent with 202 so the
// upstream records the delivery as accepted.
type UnexpectedResponse struct {
	Detail string `json:"detail"`
	Note   string `json:"note"`
	Status string `json:"status"`
}

func writeUnexpected(w http.ResponseWriter, detail string) {
	WriteJSON(w, http.StatusAccepted, UnexpectedResponse{
		Detail: detail,
		Note:   "suspension service error",
		Status: "accepted",
	})
}

// OutcomeResponse is the body returned for a processed delivery.
type OutcomeResponse struct {
	Action            string `json:"action"`
	ClientID          string `json:"clientId"`
	IPAddress         string `json:"ipAddress"`
	Message           string `json:"message"`
	OK                bool   `json:"ok"`
	NotificationError string `json:"notificationError,omitempty"`
}

// DuplicateResponse short-circuits a redelivered webhook.
type DuplicateResponse struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	Duplicate bool   `json:"duplicate"`
	Action    string `json:"action"`
	ClientID  string `json:"clientId"`
	IPAddress string `json:"ipAddress"`
}
