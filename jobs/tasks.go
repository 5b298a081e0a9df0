package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/krishimarket/krishimarket/internal/orders"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrderSubmitted processes a freshly persisted invoice or sale.
	TaskOrderSubmitted = "orders:submitted"
	// TaskHarvestReminders scans crop cycles nearing harvest.
	TaskHarvestReminders = "planning:harvest_reminders"

	// HarvestRemindersCron runs the reminder scan daily at 06:00 UTC.
	HarvestRemindersCron = "0 6 * * *"
	// DefaultReminderWindowDays is the look-ahead of the reminder scan.
	DefaultReminderWindowDays = 7
)

// NewOrderSubmittedTask constructs the task for a submitted order.
func NewOrderSubmittedTask(event orders.SubmittedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderSubmitted, data, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// HarvestRemindersPayload configures one reminder scan.
type HarvestRemindersPayload struct {
	WindowDays int `json:"window_days"`
}

// NewHarvestRemindersTask constructs the reminder scan task.
func NewHarvestRemindersTask(windowDays int) (*asynq.Task, error) {
	data, err := json.Marshal(HarvestRemindersPayload{WindowDays: windowDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHarvestReminders, data), nil
}
