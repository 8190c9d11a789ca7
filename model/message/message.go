// Package message defines the wire contract of the approval saga: the inbound
// events that drive a process instance and the outbound status notification.
// All payload fields beyond the correlation id are opaque to the state
// machine and carried through for subscribers.
package message

import (
	"fmt"
	"time"
)

// Kind identifies the inbound event type carried by an Envelope.
type Kind string

const (
	KindRequest  Kind = "request"
	KindApprove  Kind = "approve"
	KindReject   Kind = "reject"
	KindReturn   Kind = "return"
	KindResubmit Kind = "resubmit"
	KindCancel   Kind = "cancel"
)

// Envelope is the routable unit received from the message transport. Exactly
// one payload pointer matching Kind is populated; the tagged-union shape keeps
// the envelope JSON-serialisable for durable queue vendors.
type Envelope struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	CorrelationID string    `json:"correlationId"`
	CreatedAt     time.Time `json:"createdAt"`

	Request  *Request  `json:"request,omitempty"`
	Approve  *Approve  `json:"approve,omitempty"`
	Reject   *Reject   `json:"reject,omitempty"`
	Return   *Return   `json:"return,omitempty"`
	Resubmit *Resubmit `json:"resubmit,omitempty"`
	Cancel   *Cancel   `json:"cancel,omitempty"`
}

// Request originates a new approval process instance. The correlation id is
// minted by the sender and identifies the instance for its whole lifetime.
type Request struct {
	ProcessID      string `json:"processId"`
	OrgStructureID string `json:"orgStructureId"`
	RecordID       string `json:"recordId"`
	RecordNumber   string `json:"recordNumber"`
	Description    string `json:"description,omitempty"`
	UserID         string `json:"userId"`
	SourceURI      string `json:"sourceUri,omitempty"`
	EntryURI       string `json:"entryUri,omitempty"`
	ApprovalsURI   string `json:"approvalsUri,omitempty"`
}

// Approve records an approval decision. LevelID may be empty for sequential
// instances, in which case the currently open level is assumed.
type Approve struct {
	UserID  string `json:"userId"`
	LevelID string `json:"levelId,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Reject halts the whole process regardless of topology.
type Reject struct {
	UserID  string `json:"userId"`
	LevelID string `json:"levelId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Return suspends the process until the requester resubmits.
type Return struct {
	UserID  string `json:"userId"`
	LevelID string `json:"levelId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Resubmit re-enters a returned process into the pending state.
type Resubmit struct {
	UserID  string `json:"userId"`
	Comment string `json:"comment,omitempty"`
}

// Cancel withdraws the request; cancellation is irreversible.
type Cancel struct {
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

// StatusUpdated is published after every accepted transition. Record fields
// are copied from the instance so that subscribers need no extra lookup.
type StatusUpdated struct {
	CorrelationID     string    `json:"correlationId"`
	UserID            string    `json:"userId"`
	Status            string    `json:"status"`
	ProcessID         string    `json:"processId"`
	OrgStructureID    string    `json:"orgStructureId"`
	RecordID          string    `json:"recordId"`
	RecordNumber      string    `json:"recordNumber"`
	RecordDescription string    `json:"recordDescription,omitempty"`
	EntryURI          string    `json:"entryUri,omitempty"`
	SourceURI         string    `json:"sourceUri,omitempty"`
	ApprovalsURI      string    `json:"approvalsUri,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Validate checks the envelope is routable: a correlation id, a known kind and
// the matching payload.
func (e *Envelope) Validate() error {
	if e == nil {
		return fmt.Errorf("envelope is nil")
	}
	if e.CorrelationID == "" {
		return fmt.Errorf("envelope %s has no correlation id", e.ID)
	}
	var present bool
	switch e.Kind {
	case KindRequest:
		present = e.Request != nil
	case KindApprove:
		present = e.Approve != nil
	case KindReject:
		present = e.Reject != nil
	case KindReturn:
		present = e.Return != nil
	case KindResubmit:
		present = e.Resubmit != nil
	case KindCancel:
		present = e.Cancel != nil
	default:
		return fmt.Errorf("envelope %s has unknown kind %q", e.ID, e.Kind)
	}
	if !present {
		return fmt.Errorf("envelope %s: missing %v payload", e.ID, e.Kind)
	}
	return nil
}
