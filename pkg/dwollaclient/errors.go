package dwollaclient

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested resource does not exist upstream.
var ErrNotFound = errors.New("dwolla resource not found")

type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dwolla api error (%d): %s", e.Status, e.Message)
}
