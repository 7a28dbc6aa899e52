package subscription_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agendakit/agendakit/pkg/subscription"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from subscription.Status
		to   subscription.Status
		want bool
	}{
		{"trial to active", subscription.StatusTrialing, subscription.StatusActive, true},
		{"trial to past_due", subscription.StatusTrialing, subscription.StatusPastDue, true},
		{"trial to canceled", subscription.StatusTrialing, subscription.StatusCanceled, true},
		{"active back to trial", subscription.StatusActive, subscription.StatusTrialing, false},
		{"past_due back to trial", subscription.StatusPastDue, subscription.StatusTrialing, false},
		{"canceled back to trial", subscription.StatusCanceled, subscription.StatusTrialing, false},
		{"active to past_due", subscription.StatusActive, subscription.StatusPastDue, true},
		{"past_due recovers to active", subscription.StatusPastDue, subscription.StatusActive, true},
		{"incomplete to active", subscription.StatusIncomplete, subscription.StatusActive, true},
		{"incomplete to past_due", subscription.StatusIncomplete, subscription.StatusPastDue, false},
		{"canceled to active", subscription.StatusCanceled, subscription.StatusActive, true},
		{"canceled to past_due", subscription.StatusCanceled, subscription.StatusPastDue, false},
		{"replayed same status", subscription.StatusActive, subscription.StatusActive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, subscription.CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransitionTableCoversAllStatuses(t *testing.T) {
	t.Parallel()

	for _, from := range subscription.AllStatuses {
		assert.True(t, subscription.CanTransition(from, from),
			"self-transition must hold for %s", from)
		for _, to := range subscription.AllStatuses {
			// Every pair must have a defined answer; this guards against a
			// new status being added without extending the table.
			_ = subscription.CanTransition(from, to)
		}
	}
}
