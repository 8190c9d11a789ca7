package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvelope_Validate(t *testing.T) {
	testCases := []struct {
		name     string
		envelope *Envelope
		valid    bool
	}{
		{
			name: "request with payload",
			envelope: &Envelope{
				ID:            "e-1",
				Kind:          KindRequest,
				CorrelationID: "c-1",
				Request:       &Request{ProcessID: "expense", UserID: "alice"},
			},
			valid: true,
		},
		{
			name: "approve with payload",
			envelope: &Envelope{
				ID:            "e-2",
				Kind:          KindApprove,
				CorrelationID: "c-1",
				Approve:       &Approve{UserID: "bob"},
			},
			valid: true,
		},
		{
			name: "missing correlation id",
			envelope: &Envelope{
				ID:      "e-3",
				Kind:    KindCancel,
				Cancel:  &Cancel{UserID: "alice"},
			},
			valid: false,
		},
		{
			name: "unknown kind",
			envelope: &Envelope{
				ID:            "e-4",
				Kind:          Kind("escalate"),
				CorrelationID: "c-1",
			},
			valid: false,
		},
		{
			name: "kind without matching payload",
			envelope: &Envelope{
				ID:            "e-5",
				Kind:          KindReject,
				CorrelationID: "c-1",
				Approve:       &Approve{UserID: "bob"},
			},
			valid: false,
		},
		{
			name:     "nil envelope",
			envelope: nil,
			valid:    false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.envelope.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
