package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMastersSelfHeal repairs missing default and vendor locations.
	TaskMastersSelfHeal = "masters:self_heal"
)

// SelfHealPayload describes a self-heal request.
type SelfHealPayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// NewSelfHealTask builds a self-heal task. Only one may be queued at a time.
func NewSelfHealTask(payload SelfHealPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMastersSelfHeal, body, asynq.Queue(QueueDefault), asynq.Unique(SelfHealUniqueTTL)), nil
}
