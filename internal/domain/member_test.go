package domain

import "testing"

func TestCanOrder(t *testing.T) {
	cases := []struct {
		name            string
		agreementSigned bool
		duesSettled     bool
		want            bool
	}{
		{name: "neither", agreementSigned: false, duesSettled: false, want: false},
		{name: "agreement only", agreementSigned: true, duesSettled: false, want: false},
		{name: "dues only", agreementSigned: false, duesSettled: true, want: false},
		{name: "both", agreementSigned: true, duesSettled: true, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			member := Member{AgreementSigned: tc.agreementSigned, DuesSettled: tc.duesSettled}
			if got := member.CanOrder(); got != tc.want {
				t.Fatalf("expected CanOrder=%v, got %v", tc.want, got)
			}
		})
	}
}

func TestIntentStatusTerminal(t *testing.T) {
	cases := []struct {
		status IntentStatus
		want   bool
	}{
		{IntentPending, false},
		{IntentVerified, true},
		{IntentExpired, true},
		{IntentRejected, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Fatalf("expected Terminal(%s)=%v, got %v", tc.status, tc.want, got)
		}
	}
}
