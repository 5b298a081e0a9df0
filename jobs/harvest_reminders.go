package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/krishimarket/krishimarket/internal/jobs"
	"github.com/krishimarket/krishimarket/internal/planning"
)

// HarvestPlanner lists crop cycles nearing harvest.
type HarvestPlanner interface {
	HarvestsDue(ctx context.Context, window time.Duration) ([]planning.CropCycle, error)
}

// HarvestRemindersJob logs crop cycles whose expected harvest falls inside
// the configured window.
type HarvestRemindersJob struct {
	Planner HarvestPlanner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewHarvestRemindersJob initialises the reminder scan handler.
func NewHarvestRemindersJob(planner HarvestPlanner, logger *slog.Logger, metrics *jobmetrics.Metrics) *HarvestRemindersJob {
	return &HarvestRemindersJob{Planner: planner, Logger: logger, Metrics: metrics}
}

// Handle executes the reminder scan.
func (j *HarvestRemindersJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Planner == nil {
		return errors.New("harvest reminders: handler not configured")
	}
	var payload HarvestRemindersPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = DefaultReminderWindowDays
	}

	start := time.Now()
	tracker := j.Metrics.Track(TaskHarvestReminders)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("window_days", payload.WindowDays))
	cycles, err := j.Planner.HarvestsDue(ctx, time.Duration(payload.WindowDays)*24*time.Hour)
	if err != nil {
		logger.Error("harvest scan failed", slog.Any("error", err))
		return err
	}

	byStatus := make(map[string]int)
	for _, c := range cycles {
		logger.Info("harvest due",
			slog.String("farmer_id", c.FarmerID),
			slog.String("crop", c.CropName),
			slog.String("field", c.FieldName),
			slog.Time("expected_harvest", c.ExpectedHarvest),
			slog.Int("days_to_harvest", c.DaysToHarvest),
		)
		byStatus[c.Status]++
	}
	for status, n := range byStatus {
		j.Metrics.AddHarvestReminders(status, n)
	}

	logger.Info("completed harvest scan",
		slog.Int("due", len(cycles)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *HarvestRemindersJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
