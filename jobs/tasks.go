// Package jobs runs the background maintenance tasks of the platform on an
// Asynq worker: scanning for stale pending reviews and digesting open
// reports for the moderation team.
package jobs

import "github.com/hibiken/asynq"

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStaleScan finds files stuck in pending review.
	TaskStaleScan = "moderation:stale_scan"
	// TaskReportDigest summarises open reports.
	TaskReportDigest = "moderation:report_digest"
)

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}
