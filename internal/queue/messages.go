package queue

import (
	"github.com/tabsdata/tabsdata/internal/domain"
)

// PayloadType tags the kind of a SupervisorMessage's payload.
type PayloadType string

const (
	PayloadRequest   PayloadType = "Request"
	PayloadResponse  PayloadType = "Response"
	PayloadException PayloadType = "Exception"
)

// RequestStatus is the status a worker reports at the end of one
// invocation, carried back in a Response payload.
type RequestStatus string

const (
	StatusRunning RequestStatus = "Running"
	StatusDone    RequestStatus = "Done"
	StatusError   RequestStatus = "Error"  // failed but will retry
	StatusFailed  RequestStatus = "Failed" // terminal
)

// Payload is the decoded JSON body of a SupervisorMessage. Exactly one
// payload type is meaningful at a time, selected by Type.
type Payload struct {
	Type      PayloadType            `json:"type"`
	Class     domain.ControllerClass `json:"class,omitempty"`
	Worker    string                 `json:"worker,omitempty"`
	Arguments []string               `json:"arguments,omitempty"`
	Work      string                 `json:"work,omitempty"`

	// Response/Exception fields.
	Status  RequestStatus `json:"status,omitempty"`
	Attempt int           `json:"attempt,omitempty"`
	Retries int           `json:"retries,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// SupervisorMessage is the on-disk, JSON-encoded unit the queue moves
// between state directories. File is populated at read time, never
// serialized back into the JSON body.
type SupervisorMessage struct {
	Payload Payload `json:"payload"`
	File    string  `json:"file"`
}

// ID and Run extract the message's identity from its backing filename,
// which encodes "<id>_<run>.<ext>".
func (m SupervisorMessage) ID() string {
	id, _, _, ok := ParseFilename(m.File)
	if !ok {
		return ""
	}
	return id
}

func (m SupervisorMessage) Run() int {
	_, run, _, ok := ParseFilename(m.File)
	if !ok {
		return 0
	}
	return run
}
