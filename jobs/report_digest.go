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

// ReportDigestPayload carries scheduling metadata.
type ReportDigestPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReportDigestTask constructs an Asynq task for the open-report digest.
func NewReportDigestTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ReportDigestPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportDigest, body, asynq.Queue(QueueDefault)), nil
}

// NewReportDigestHandler summarises open reports per owner so moderators see
// repeat offenders first.
func NewReportDigestHandler(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("report_digest")
		var payload ReportDigestPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}

		rows, err := pool.Query(ctx,
			`SELECT owner_id, count(*) FROM file_records
			 WHERE reported = TRUE
			 GROUP BY owner_id
			 ORDER BY count(*) DESC
			 LIMIT 20`)
		if err != nil {
			return tracker.End(err)
		}
		defer rows.Close()

		var total int64
		for rows.Next() {
			var ownerID string
			var count int64
			if err := rows.Scan(&ownerID, &count); err != nil {
				return tracker.End(err)
			}
			total += count
			logger.Info("open reports", slog.String("owner", ownerID), slog.Int64("count", count))
		}
		if err := rows.Err(); err != nil {
			return tracker.End(err)
		}
		logger.Info("report digest complete",
			slog.Int64("total_reported", total),
			slog.Time("scheduled_for", payload.ScheduledFor),
		)
		return tracker.End(nil)
	}
}
