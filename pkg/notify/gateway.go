// Package notify delivers absence notifications to parents.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Outcome is the result class of a single send attempt.
type Outcome string

const (
	OutcomeSent             Outcome = "sent"
	OutcomeFailed           Outcome = "failed"
	OutcomePermissionDenied Outcome = "permission_denied"
)

// Result describes one send attempt. AckID is set when the transport returns
// a message identifier; Reason explains a failure.
type Result struct {
	Outcome Outcome
	AckID   string
	Reason  string
}

// Sent reports whether the message was handed to the transport.
func (r Result) Sent() bool {
	return r.Outcome == OutcomeSent
}

// Gateway sends a single text message. Implementations never retry.
type Gateway interface {
	Send(ctx context.Context, phone, message string) Result
}

// AbsenceMessage renders the parent notification for an absent student.
func AbsenceMessage(studentName string) string {
	return fmt.Sprintf("Your child %s was marked absent today.", studentName)
}

// DigitsOnly strips everything but digits from a phone number.
func DigitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func failed(format string, args ...interface{}) Result {
	return Result{Outcome: OutcomeFailed, Reason: fmt.Sprintf(format, args...)}
}
