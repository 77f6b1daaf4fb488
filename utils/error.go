package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorResponse is the JSON body for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
