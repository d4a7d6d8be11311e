package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/openshelf/openshelf/internal/jobs"
)

// StaleScanPayload carries the age threshold for the scan.
type StaleScanPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewStaleScanTask constructs an Asynq task for the pending-review scan.
func NewStaleScanTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(StaleScanPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStaleScan, body, asynq.Queue(QueueDefault)), nil
}

// NewStaleScanHandler counts files that have sat in pending review longer
// than the threshold and logs the backlog for the moderation team.
func NewStaleScanHandler(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("stale_scan")
		var payload StaleScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if payload.OlderThan <= 0 {
			payload.OlderThan = 72 * time.Hour
		}

		cutoff := time.Now().Add(-payload.OlderThan)
		var stale int64
		err := pool.QueryRow(ctx,
			`SELECT count(*) FROM file_records WHERE status = 'PENDING' AND created_at < $1`, cutoff).
			Scan(&stale)
		if err != nil {
			return tracker.End(err)
		}
		logger.Info("stale review scan",
			slog.Int64("stale_pending", stale),
			slog.Time("cutoff", cutoff),
		)
		return tracker.End(nil)
	}
}
