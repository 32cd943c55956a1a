package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionHasAccess(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(72 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		sub  *Subscription
		want bool
	}{
		{"nil", nil, false},
		{"trial", &Subscription{Status: SubscriptionTrial}, true},
		{"active", &Subscription{Status: SubscriptionActive}, true},
		{"past due", &Subscription{Status: SubscriptionPastDue}, false},
		{"canceled within period", &Subscription{Status: SubscriptionCanceled, CurrentPeriodEnd: &future}, true},
		{"canceled after period", &Subscription{Status: SubscriptionCanceled, CurrentPeriodEnd: &past}, false},
		{"canceled without period", &Subscription{Status: SubscriptionCanceled}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.HasAccess(now))
		})
	}
}

func TestPolicyTransitions(t *testing.T) {
	pending := &Policy{Status: PolicyPendingReview}
	active := &Policy{Status: PolicyActive}
	inactive := &Policy{Status: PolicyInactive}

	assert.True(t, pending.Approvable())
	assert.True(t, inactive.Approvable())
	assert.False(t, active.Approvable())

	assert.True(t, pending.Deletable())
	assert.True(t, inactive.Deletable())
	assert.False(t, active.Deletable())
}

func TestProjectConnected(t *testing.T) {
	var id int64 = 991
	var zero int64

	assert.False(t, (&Project{}).Connected())
	assert.False(t, (&Project{GitHubInstallationID: &zero}).Connected())
	assert.True(t, (&Project{GitHubInstallationID: &id}).Connected())
}

func TestRepositoryNames(t *testing.T) {
	r := Repository{Owner: "acme", Name: "checkout"}
	assert.Equal(t, "acme/checkout", r.FullName())
	assert.Equal(t, "https://github.com/acme/checkout", r.URL())
}
