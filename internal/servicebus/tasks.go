// Package servicebus dispatches extension ability invocations to a
// background queue, so an HTTP request that triggers an extension can
// return immediately while the ability runs out of band (spec §4.D).
package servicebus

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue every ability task is enqueued onto.
	QueueDefault = "default"
	// TaskTypeAbility is the Asynq task type for ability invocations.
	TaskTypeAbility = "extension:ability"
)

// AbilityPayload identifies the extension ability to run and the arguments
// to run it with.
type AbilityPayload struct {
	Extension string         `json:"extension"`
	Ability   string         `json:"ability"`
	Args      map[string]any `json:"args"`
}

// NewAbilityTask constructs the Asynq task for an ability invocation.
func NewAbilityTask(payload AbilityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAbility, data), nil
}
