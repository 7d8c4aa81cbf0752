package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"demogen/internal/config"
	"demogen/internal/crm"
	"demogen/internal/ledger"
	"demogen/internal/logging"
	"demogen/internal/runlog"
)

// ReconcileOptions configures a cleanup of one run.
type ReconcileOptions struct {
	// Resolved is the run's manifest as read by config.LoadManifest.
	Resolved *config.Resolved
	Client   crm.Client
	// Ledger overrides opening the run's ledger file. The caller keeps
	// ownership of a ledger passed here.
	Ledger ledger.Ledger
	// Sink, when set, receives cleanup errors.
	Sink   runlog.Sink
	Logger *slog.Logger
}

// CleanupReport summarizes a cleanup.
type CleanupReport struct {
	RunID string `json:"run_id"`
	Mode  string `json:"mode"`
	// Deleted counts deleted records per CRM object.
	Deleted map[string]int `json:"deleted"`
	// Missing counts records that were already gone.
	Missing int `json:"missing"`
	Failed  int `json:"failed"`
}

// Total is the number of records deleted.
func (r CleanupReport) Total() int {
	n := 0
	for _, v := range r.Deleted {
		n += v
	}
	return n
}

// objectFor maps a ledger activity type to its CRM object.
func objectFor(activityType string) (string, error) {
	switch activityType {
	case ledger.TypeMeeting:
		return crm.ObjectEvent, nil
	case ledger.TypeEmail:
		return crm.ObjectTask, nil
	}
	return "", fmt.Errorf("unknown activity type %q", activityType)
}

// Reconcile deletes what a run created. In tag mode it deletes every Event
// and Task tagged with the run id; otherwise it deletes each activity the
// run's ledger recorded. Cleanup is best-effort: a failed delete is counted
// and the rest are still attempted. Only failing to enumerate the run's
// records is returned as an error.
func Reconcile(ctx context.Context, opts ReconcileOptions) (CleanupReport, error) {
	if opts.Resolved == nil || opts.Client == nil {
		return CleanupReport{}, errors.New("reconcile: resolved config and CRM client are required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("reconcile")
	}
	run := opts.Resolved
	rc := &reconciler{
		opts:   opts,
		logger: opts.Logger.With("run_id", run.RunID),
		report: CleanupReport{
			RunID:   run.RunID,
			Mode:    run.Config.Run.IdempotencyMode,
			Deleted: map[string]int{crm.ObjectEvent: 0, crm.ObjectTask: 0},
		},
	}

	var err error
	if run.Config.Run.IdempotencyMode == config.ModeTag {
		rc.byTag(ctx, run.Config.Run.RunTagField)
	} else {
		err = rc.byLedger(ctx)
	}
	rc.logger.Info("cleanup finished",
		"deleted", rc.report.Total(),
		"missing", rc.report.Missing,
		"failed", rc.report.Failed)
	return rc.report, err
}

type reconciler struct {
	opts   ReconcileOptions
	logger *slog.Logger
	report CleanupReport
}

func (rc *reconciler) failed(err error, f runlog.Fields) {
	rc.report.Failed++
	rc.logger.Warn("cleanup delete failed", "error", err)
	if rc.opts.Sink != nil {
		rc.opts.Sink.Error(runlog.ErrorEntry{
			Stage:     StageCleanup,
			Err:       err,
			Retryable: crm.IsRetryable(err),
			Fields:    f,
		})
	}
}

func (rc *reconciler) byTag(ctx context.Context, field string) {
	for _, object := range []string{crm.ObjectEvent, crm.ObjectTask} {
		n, err := rc.opts.Client.DeleteRecordsByTag(ctx, object, field, rc.opts.Resolved.RunID)
		rc.report.Deleted[object] += n
		for _, e := range splitJoined(err) {
			if crm.IsAlreadyDeleted(e) {
				rc.report.Missing++
				continue
			}
			rc.failed(e, runlog.Fields{"object": object, "tag_field": field})
		}
	}
}

// splitJoined returns the errors joined in err, or err itself.
func splitJoined(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

func (rc *reconciler) byLedger(ctx context.Context) error {
	l := rc.opts.Ledger
	if l == nil {
		path := rc.opts.Resolved.LedgerPath()
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("run ledger unavailable, nothing to clean up: %w", err)
		}
		opened, err := ledger.Open(path)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer opened.Close()
		l = opened
	}

	activities, err := l.RunActivities(rc.opts.Resolved.RunID)
	if err != nil {
		return fmt.Errorf("list run activities: %w", err)
	}
	for _, a := range activities {
		object, err := objectFor(a.Type)
		if err != nil {
			rc.failed(err, runlog.Fields{"activity_id": a.ActivityID})
			continue
		}
		err = rc.opts.Client.DeleteRecord(ctx, object, a.ActivityID)
		switch {
		case err == nil:
			rc.report.Deleted[object]++
		case crm.IsAlreadyDeleted(err):
			rc.report.Missing++
		default:
			rc.failed(err, runlog.Fields{"object": object, "activity_id": a.ActivityID})
		}
	}
	return nil
}
