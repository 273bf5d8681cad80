package intake

import (
	"context"
	"log/slog"

	"intake/internal/logging"
	"intake/internal/services"
	"intake/internal/services/sheets"
	"intake/internal/store"
)

// Ingestor scans response snapshots and enqueues jobs for unseen rows.
type Ingestor struct {
	store  *store.Store
	logger *slog.Logger
}

// NewIngestor wires the ingestion pass to its store.
func NewIngestor(st *store.Store, logger *slog.Logger) *Ingestor {
	return &Ingestor{store: st, logger: logging.WithComponent(logger, "intake")}
}

// Summary reports one ingestion pass.
type Summary struct {
	Rows    int `json:"rows"`
	Skipped int `json:"skipped"`
	Queued  int `json:"queued"`
}

// firstDataRow is the sheet row number of the first response; row 1 holds the
// header labels.
const firstDataRow = 2

// IngestRows enqueues a job for every response row not already tracked by a
// job or application. Running it twice over an unchanged snapshot queues
// nothing the second time.
func (ing *Ingestor) IngestRows(ctx context.Context, snapshot *sheets.Snapshot) (Summary, error) {
	summary := Summary{Rows: len(snapshot.Rows)}

	settings, err := ing.store.LoadSettings(ctx)
	if err != nil {
		return summary, err
	}
	if len(settings.Tracks) == 0 {
		return summary, services.Wrap(services.ErrConfiguration, "intake", "ingest",
			"no tracks configured", nil)
	}

	knownKeys, knownRows, err := ing.trackedSets(ctx)
	if err != nil {
		return summary, err
	}

	for i, row := range snapshot.Rows {
		rowIndex := firstDataRow + i
		if Blank(row) {
			summary.Skipped++
			continue
		}
		key := ResponseKey(snapshot.Headers, row)
		if key != "" && knownKeys[key] {
			summary.Skipped++
			continue
		}
		if key == "" && knownRows[rowIndex] {
			summary.Skipped++
			continue
		}

		trackKeys := InferTracks(&settings, snapshot.Headers, row)
		if len(trackKeys) == 0 {
			ing.logger.Warn("row matched no track and no default is set",
				logging.Int("row_index", rowIndex))
			summary.Skipped++
			continue
		}

		job := &store.Job{
			RowIndex:    rowIndex,
			TrackKeys:   trackKeys,
			ResponseKey: key,
			Headers:     snapshot.Headers,
			Row:         row,
		}
		if err := ing.store.AppendJob(ctx, job); err != nil {
			return summary, err
		}
		if key != "" {
			knownKeys[key] = true
		} else {
			knownRows[rowIndex] = true
		}
		summary.Queued++
		ing.logger.Info("queued application row",
			logging.String(logging.FieldJobID, job.JobID),
			logging.Int("row_index", rowIndex),
			logging.Any("tracks", trackKeys))
	}
	return summary, nil
}

// trackedSets rebuilds the dedup indexes from persisted jobs and applications
// on every pass, so restarts and manual queue edits cannot desync them.
func (ing *Ingestor) trackedSets(ctx context.Context) (map[string]bool, map[int]bool, error) {
	keys := make(map[string]bool)
	rows := make(map[int]bool)

	jobs, err := ing.store.ListJobs(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, job := range jobs {
		if job.ResponseKey != "" {
			keys[job.ResponseKey] = true
		} else {
			rows[job.RowIndex] = true
		}
	}

	apps, err := ing.store.ListApplications(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, app := range apps {
		if app.ResponseKey != "" {
			keys[app.ResponseKey] = true
		} else if app.RowIndex > 0 {
			rows[app.RowIndex] = true
		}
	}
	return keys, rows, nil
}
