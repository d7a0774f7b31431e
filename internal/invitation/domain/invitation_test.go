package domain

import (
	"testing"
	"time"
)

func TestStatus_Terminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("pending should not be terminal")
	}
	for _, s := range []Status{StatusAccepted, StatusExpired, StatusRevoked} {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
}

func TestInvitation_ExpiredAt(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		inv  Invitation
		want bool
	}{
		{"pending before expiry", Invitation{Status: StatusPending, ExpiresAt: now.Add(time.Minute)}, false},
		{"pending at expiry", Invitation{Status: StatusPending, ExpiresAt: now}, true},
		{"accepted past expiry", Invitation{Status: StatusAccepted, ExpiresAt: now.Add(-time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.ExpiredAt(now); got != tt.want {
				t.Errorf("ExpiredAt = %v, want %v", got, tt.want)
			}
		})
	}
}
