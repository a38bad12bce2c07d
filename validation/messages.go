// Package validation is request/reply over the bus: a Requester publishes a
// correlated request and waits on a Registry slot; a Listener resolves slots
// from the response topic; a Responder in the issuing service answers.
package validation

const (
	StatusValid            = "credential valid"
	StatusRevoked          = "credential revoked"
	StatusMalformed        = "credential malformed"
	StatusExpired          = "credential expired"
	StatusSignatureInvalid = "credential signature invalid"
	StatusInvalid          = "credential invalid"

	StatusTimedOut    = "validation timed out"
	StatusUnavailable = "validation unavailable"
	StatusCanceled    = "validation canceled"
)

// Request is published once per Validate call.
type Request struct {
	RequestID         string `json:"requestId" cbor:"requestId"`
	Credential        string `json:"credential" cbor:"credential"`
	RequestingService string `json:"requestingService" cbor:"requestingService"`
}

// Response answers exactly one Request and always carries its RequestID.
type Response struct {
	RequestID string          `json:"requestId" cbor:"requestId"`
	Message   ResponseMessage `json:"message" cbor:"message"`
}

type ResponseMessage struct {
	Credential    string `json:"credential" cbor:"credential"`
	IsValid       bool   `json:"isValid" cbor:"isValid"`
	SubjectID     string `json:"subjectId,omitempty" cbor:"subjectId,omitempty"`
	Role          string `json:"role,omitempty" cbor:"role,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty" cbor:"statusMessage,omitempty"`
}

// Outcome is all a caller of Validate ever sees. Anything short of a valid
// answer from the issuing service has Valid false.
type Outcome struct {
	Valid     bool
	SubjectID string
	Role      string
	Status    string
}

func (r Response) Outcome() Outcome {
	return Outcome{
		Valid:     r.Message.IsValid,
		SubjectID: r.Message.SubjectID,
		Role:      r.Message.Role,
		Status:    r.Message.StatusMessage,
	}
}

func failed(status string) Outcome {
	return Outcome{Status: status}
}
