package crm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Error codes that mean a change window cannot be served.
var replicationCodes = map[string]bool{
	"INVALID_REPLICATION_DATE": true,
	"REPLICATION_NOT_ENABLED":  true,
}

// APIError is a non-success response from the remote API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("crm api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("crm api: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// Replication reports whether the error says the change window is unavailable.
func (e *APIError) Replication() bool {
	return replicationCodes[e.Code]
}

type errorBody struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// parseError builds an APIError from a response body.
// The API answers with a list of errors; the first one wins.
func parseError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Message: strings.TrimSpace(string(body))}

	var list []errorBody
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		apiErr.Code = list[0].ErrorCode
		apiErr.Message = list[0].Message
		return apiErr
	}
	var single errorBody
	if err := json.Unmarshal(body, &single); err == nil && single.ErrorCode != "" {
		apiErr.Code = single.ErrorCode
		apiErr.Message = single.Message
	}
	return apiErr
}
