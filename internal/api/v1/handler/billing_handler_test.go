package handler

import (
	"testing"
	"time"

	"policybolt/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionResponse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := NewBillingHandler(nil, nil, zerolog.Nop())
	h.now = func() time.Time { return now }

	assert.Equal(t, "none", h.subscriptionResponse(nil, nil).Status)

	end := now.Add(72 * time.Hour)
	resp := h.subscriptionResponse(&model.Subscription{
		Status:           model.SubscriptionCanceled,
		CurrentPeriodEnd: &end,
	}, &model.Plan{ID: "pro", Name: "Pro", MaxProjects: 10})
	assert.Equal(t, "canceled", resp.Status)
	assert.True(t, resp.HasAccess)
	require.NotNil(t, resp.Plan)
	assert.Equal(t, 10, resp.Plan.MaxProjects)

	resp = h.subscriptionResponse(&model.Subscription{Status: model.SubscriptionPastDue}, nil)
	assert.False(t, resp.HasAccess)
	assert.Nil(t, resp.Plan)
}
