package servicebus_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreframe/coreframe/internal/servicebus"
)

func TestNewAbilityTaskRoundTrips(t *testing.T) {
	payload := servicebus.AbilityPayload{
		Extension: "billing",
		Ability:   "sync_invoices",
		Args:      map[string]any{"since": "2026-01-01"},
	}
	task, err := servicebus.NewAbilityTask(payload)
	require.NoError(t, err)
	require.Equal(t, servicebus.TaskTypeAbility, task.Type())

	var decoded servicebus.AbilityPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	require.Equal(t, payload, decoded)
}
