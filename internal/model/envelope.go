package model

import (
	"net/http"
	"time"
)

// Envelope wraps a verdict for transport
type Envelope struct {
	Success   bool      `json:"success"`
	Data      Verdict   `json:"data"`
	Timestamp time.Time `json:"timestamp"`

	// HTTPStatus is the status hint picked by the service. Never serialized.
	HTTPStatus int `json:"-"`
}

// Wrap builds an envelope around a verdict, stamping it with the current time
func Wrap(v Verdict, statusHint int) Envelope {
	return Envelope{
		Success:    !v.Failed(),
		Data:       v,
		Timestamp:  time.Now().UTC(),
		HTTPStatus: statusHint,
	}
}

// TransportStatus maps the envelope to the HTTP status code sent to the caller
func (e Envelope) TransportStatus() int {
	if e.Success {
		return http.StatusOK
	}
	if e.HTTPStatus >= 400 {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}
