package stream

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// TaskLeadCreated is the task type published for every committed lead.
const TaskLeadCreated = "lead.created"

// LeadCreatedPayload is the event message shape on the stream.
type LeadCreatedPayload struct {
	LeadID     string    `json:"leadId"`
	EventID    string    `json:"eventId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// NewLeadCreatedTask builds an asynq task carrying the event payload.
func NewLeadCreatedTask(payload LeadCreatedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadCreated, data), nil
}

// ParseLeadCreatedPayload decodes the event payload from a task.
func ParseLeadCreatedPayload(task *asynq.Task) (LeadCreatedPayload, error) {
	var payload LeadCreatedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadCreatedPayload{}, err
	}
	return payload, nil
}
