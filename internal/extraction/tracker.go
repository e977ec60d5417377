package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkellerhals/sourcelane-backend/pkg/db/models"
	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
	pkgerrors "github.com/mkellerhals/sourcelane-backend/pkg/errors"
	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
	"github.com/mkellerhals/sourcelane-backend/pkg/outbox"
	"github.com/mkellerhals/sourcelane-backend/pkg/outbox/payloads"
)

const (
	jobSnapshotTTL     = 24 * time.Hour
	cancelledByUserMsg = "cancelled by user"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// jobMirror is the slice of the Redis client the tracker uses to make job
// state visible to other processes. A nil mirror keeps the tracker DB-only.
type jobMirror interface {
	StoreJobSnapshot(ctx context.Context, jobID string, snapshot string, ttl time.Duration) error
	GetJobSnapshot(ctx context.Context, jobID string) (string, error)
}

// JobSnapshot is the Redis-side mirror of an import job row.
type JobSnapshot struct {
	ID        uuid.UUID             `json:"id"`
	Status    enums.ImportJobStatus `json:"status"`
	Progress  int                   `json:"progress"`
	Step      string                `json:"step"`
	Error     *string               `json:"error,omitempty"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Tracker owns the lifecycle of import job records. Jobs only move forward:
// pending, processing, then exactly one of completed or failed. Terminal rows
// never change again.
type Tracker struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	mirror jobMirror
	logg   *logger.Logger
}

// NewTracker wires the tracker's dependencies. The mirror is optional.
func NewTracker(repo Repository, tx txRunner, outboxSvc outboxPublisher, mirror jobMirror, logg *logger.Logger) (*Tracker, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "extraction repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Tracker{repo: repo, tx: tx, outbox: outboxSvc, mirror: mirror, logg: logg}, nil
}

// Create registers a new pending job and returns its row.
func (t *Tracker) Create(ctx context.Context, ownerID uuid.UUID, supplierURL string, categoryID *uuid.UUID) (*models.ImportJob, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if supplierURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier url required")
	}
	job := &models.ImportJob{
		OwnerID:     ownerID,
		SupplierURL: supplierURL,
		CategoryID:  categoryID,
		Status:      enums.ImportJobStatusPending,
		Progress:    0,
		Step:        "queued",
	}
	created, err := t.repo.CreateImportJob(ctx, job)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create import job")
	}
	t.mirrorJob(ctx, created)
	return created, nil
}

// Get returns the full job row from the repository. The Redis mirror only
// carries the polling fields, so anything needing the result payload or the
// source URL reads the database.
func (t *Tracker) Get(ctx context.Context, jobID uuid.UUID) (*models.ImportJob, error) {
	if jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id required")
	}
	job, err := t.repo.FindImportJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "import job not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find import job")
	}
	return job, nil
}

// MarkProcessing advances a pending job into processing.
func (t *Tracker) MarkProcessing(ctx context.Context, jobID uuid.UUID, progress int, step string) error {
	return t.advance(ctx, jobID, enums.ImportJobStatusProcessing, map[string]any{
		"status":   enums.ImportJobStatusProcessing,
		"progress": clampProgress(progress),
		"step":     step,
	}, nil)
}

// UpdateProgress records pipeline progress on a processing job.
func (t *Tracker) UpdateProgress(ctx context.Context, jobID uuid.UUID, progress int, step string) error {
	return t.advance(ctx, jobID, enums.ImportJobStatusProcessing, map[string]any{
		"progress": clampProgress(progress),
		"step":     step,
	}, nil)
}

// Complete moves a processing job to completed with its result payload and
// queues the completion event in the same transaction.
func (t *Tracker) Complete(ctx context.Context, jobID uuid.UUID, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode job result")
	}
	return t.advance(ctx, jobID, enums.ImportJobStatusCompleted, map[string]any{
		"status":   enums.ImportJobStatusCompleted,
		"progress": 100,
		"step":     "done",
		"result":   json.RawMessage(payload),
	}, func(job *models.ImportJob) outbox.DomainEvent {
		return outbox.DomainEvent{
			EventType:     enums.EventImportCompleted,
			AggregateType: enums.AggregateImportJob,
			AggregateID:   job.ID,
			Data: payloads.ImportCompletedEvent{
				JobID:       job.ID,
				OwnerID:     job.OwnerID,
				SupplierURL: job.SupplierURL,
			},
			Version: 1,
		}
	})
}

// Fail moves a non-terminal job to failed with the given message and queues
// the failure event in the same transaction.
func (t *Tracker) Fail(ctx context.Context, jobID uuid.UUID, message string) error {
	return t.advance(ctx, jobID, enums.ImportJobStatusFailed, map[string]any{
		"status": enums.ImportJobStatusFailed,
		"step":   "failed",
		"error":  message,
	}, func(job *models.ImportJob) outbox.DomainEvent {
		return outbox.DomainEvent{
			EventType:     enums.EventImportFailed,
			AggregateType: enums.AggregateImportJob,
			AggregateID:   job.ID,
			Data: payloads.ImportFailedEvent{
				JobID:   job.ID,
				OwnerID: job.OwnerID,
				Error:   message,
			},
			Version: 1,
		}
	})
}

// Cancel flips a non-terminal job to failed with the cancellation message.
// Cancelling an already-terminal job is a state conflict, not a no-op.
func (t *Tracker) Cancel(ctx context.Context, jobID uuid.UUID) error {
	return t.Fail(ctx, jobID, cancelledByUserMsg)
}

// IsCancelled reports whether a job has been moved to failed by a cancel
// request. The pipeline checks this between steps; the Redis snapshot answers
// first so the per-step poll skips the DB, falling back to the repository on
// a miss. Snapshots are written after commit, so a hit is never ahead of the
// row.
func (t *Tracker) IsCancelled(ctx context.Context, jobID uuid.UUID) bool {
	if t.mirror != nil {
		if raw, err := t.mirror.GetJobSnapshot(ctx, jobID.String()); err == nil {
			var snapshot JobSnapshot
			if err := json.Unmarshal([]byte(raw), &snapshot); err == nil {
				return snapshot.Status.IsTerminal()
			}
		}
	}
	job, err := t.Get(ctx, jobID)
	if err != nil {
		return false
	}
	return job.Status.IsTerminal()
}

func (t *Tracker) advance(ctx context.Context, jobID uuid.UUID, target enums.ImportJobStatus, updates map[string]any, eventFn func(*models.ImportJob) outbox.DomainEvent) error {
	if jobID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "job id required")
	}

	var updated *models.ImportJob
	err := t.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := t.repo.WithTx(tx)
		job, err := repo.FindImportJobForUpdate(ctx, jobID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "import job not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find import job")
		}
		if job.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "import job already "+job.Status.String())
		}
		if !canAdvance(job.Status, target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "import job cannot move from "+job.Status.String()+" to "+target.String())
		}
		if err := repo.UpdateImportJob(ctx, jobID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update import job")
		}
		if eventFn != nil {
			if err := t.outbox.Emit(ctx, tx, eventFn(job)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue import event")
			}
		}
		refreshed, err := repo.FindImportJob(ctx, jobID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload import job")
		}
		updated = refreshed
		return nil
	})
	if err != nil {
		return err
	}
	t.mirrorJob(ctx, updated)
	return nil
}

// canAdvance enforces the forward-only job lifecycle. Failed is reachable
// from any non-terminal state so cancellation and early pipeline errors both
// land there.
func canAdvance(from, to enums.ImportJobStatus) bool {
	switch to {
	case enums.ImportJobStatusProcessing:
		return from == enums.ImportJobStatusPending || from == enums.ImportJobStatusProcessing
	case enums.ImportJobStatusCompleted:
		return from == enums.ImportJobStatusProcessing
	case enums.ImportJobStatusFailed:
		return from == enums.ImportJobStatusPending || from == enums.ImportJobStatusProcessing
	}
	return false
}

func (t *Tracker) mirrorJob(ctx context.Context, job *models.ImportJob) {
	if t.mirror == nil || job == nil {
		return
	}
	snapshot := JobSnapshot{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Step:      job.Step,
		Error:     job.Error,
		UpdatedAt: job.UpdatedAt,
	}
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := t.mirror.StoreJobSnapshot(ctx, job.ID.String(), string(encoded), jobSnapshotTTL); err != nil {
		logCtx := t.logg.WithJobID(ctx, job.ID.String())
		t.logg.Warn(logCtx, "job snapshot mirror failed")
	}
}

func clampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
