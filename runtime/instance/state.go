package instance

// Status is the lifecycle status of an approval process instance.
type Status string

const (
	// StatusPending means at least one level is awaiting a decision.
	StatusPending Status = "pending"
	// StatusReturned means the request was sent back to the owner for more
	// information and the process is suspended until a resubmission.
	StatusReturned Status = "returned"
	// StatusApproved means every required level recorded an approval.
	StatusApproved Status = "approved"
	// StatusRejected means some level rejected the request.
	StatusRejected Status = "rejected"
	// StatusCancelled means the owner withdrew the request.
	StatusCancelled Status = "cancelled"
)

var terminal = map[Status]bool{
	StatusApproved:  true,
	StatusRejected:  true,
	StatusCancelled: true,
}

// Terminal reports whether no further business events are accepted.
func (s Status) Terminal() bool {
	return terminal[s]
}

func (s Status) String() string {
	return string(s)
}

// Decision is the outcome recorded against a single level.
type Decision string

const (
	DecisionNone     Decision = ""
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionReturned Decision = "returned"
)
