package extraction

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mkellerhals/sourcelane-backend/pkg/db/models"
	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
	pkgerrors "github.com/mkellerhals/sourcelane-backend/pkg/errors"
	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
	"github.com/mkellerhals/sourcelane-backend/pkg/outbox"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

type memoryRepo struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*models.ImportJob
	products []*models.Product
	variants []models.ProductVariant
	sources  []*models.ProductSource
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{jobs: map[uuid.UUID]*models.ImportJob{}}
}

func (m *memoryRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memoryRepo) CreateImportJob(_ context.Context, job *models.ImportJob) (*models.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.UpdatedAt = time.Now()
	copied := *job
	m.jobs[job.ID] = &copied
	return job, nil
}

func (m *memoryRepo) FindImportJob(_ context.Context, jobID uuid.UUID) (*models.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *memoryRepo) FindImportJobForUpdate(ctx context.Context, jobID uuid.UUID) (*models.ImportJob, error) {
	return m.FindImportJob(ctx, jobID)
}

func (m *memoryRepo) UpdateImportJob(_ context.Context, jobID uuid.UUID, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"].(enums.ImportJobStatus); ok {
		job.Status = status
	}
	if progress, ok := updates["progress"].(int); ok {
		job.Progress = progress
	}
	if step, ok := updates["step"].(string); ok {
		job.Step = step
	}
	if message, ok := updates["error"].(string); ok {
		job.Error = &message
	}
	if _, ok := updates["result"]; ok {
		job.Result = []byte(`{}`)
	}
	job.UpdatedAt = time.Now()
	return nil
}

func (m *memoryRepo) CreateProduct(_ context.Context, product *models.Product) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	m.products = append(m.products, product)
	return product, nil
}

func (m *memoryRepo) CreateProductVariants(_ context.Context, variants []models.ProductVariant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variants = append(m.variants, variants...)
	return nil
}

func (m *memoryRepo) CreateProductSource(_ context.Context, source *models.ProductSource) (*models.ProductSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if source.ID == uuid.Nil {
		source.ID = uuid.New()
	}
	m.sources = append(m.sources, source)
	return source, nil
}

func (m *memoryRepo) FindProductSourceBySupplierProductID(_ context.Context, supplierProductID string) (*models.ProductSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, source := range m.sources {
		if source.SupplierProductID == supplierProductID {
			copied := *source
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type recordingOutbox struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingOutbox) byType(eventType enums.OutboxEventType) []outbox.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []outbox.DomainEvent{}
	for _, event := range r.events {
		if event.EventType == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type memoryMirror struct {
	mu        sync.Mutex
	snapshots map[string]string
}

func newMemoryMirror() *memoryMirror {
	return &memoryMirror{snapshots: map[string]string{}}
}

func (m *memoryMirror) StoreJobSnapshot(_ context.Context, jobID, snapshot string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[jobID] = snapshot
	return nil
}

func (m *memoryMirror) GetJobSnapshot(_ context.Context, jobID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshots[jobID], nil
}

func newTestTracker(t *testing.T) (*Tracker, *memoryRepo, *recordingOutbox, *memoryMirror) {
	t.Helper()
	repo := newMemoryRepo()
	sink := &recordingOutbox{}
	mirror := newMemoryMirror()
	tracker, err := NewTracker(repo, passthroughTx{}, sink, mirror, testLogger())
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	return tracker, repo, sink, mirror
}

func TestTrackerCreateValidates(t *testing.T) {
	tracker, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	if _, err := tracker.Create(ctx, uuid.Nil, "https://www.aliexpress.com/item/1.html", nil); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := tracker.Create(ctx, uuid.New(), "", nil); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTrackerLifecycle(t *testing.T) {
	tracker, _, sink, mirror := newTestTracker(t)
	ctx := context.Background()

	job, err := tracker.Create(ctx, uuid.New(), "https://www.aliexpress.com/item/1005001.html", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Status != enums.ImportJobStatusPending {
		t.Fatalf("expected pending, got %s", job.Status)
	}

	if err := tracker.MarkProcessing(ctx, job.ID, 10, "scraping"); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := tracker.UpdateProgress(ctx, job.ID, 60, "validating stock"); err != nil {
		t.Fatalf("update progress: %v", err)
	}
	if err := tracker.Complete(ctx, job.ID, map[string]string{"slug": "x"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	stored, err := tracker.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != enums.ImportJobStatusCompleted || stored.Progress != 100 {
		t.Fatalf("unexpected final state %s/%d", stored.Status, stored.Progress)
	}

	if events := sink.byType(enums.EventImportCompleted); len(events) != 1 {
		t.Fatalf("expected one completion event, got %d", len(events))
	}
	if snapshot, _ := mirror.GetJobSnapshot(ctx, job.ID.String()); snapshot == "" {
		t.Fatal("expected job snapshot mirrored to redis")
	}
}

func TestTrackerIsCancelledConsultsMirrorFirst(t *testing.T) {
	tracker, _, _, mirror := newTestTracker(t)
	ctx := context.Background()

	// A terminal snapshot answers the poll even when the row lives in
	// another process's database session.
	ghostID := uuid.New()
	snapshot, err := json.Marshal(JobSnapshot{ID: ghostID, Status: enums.ImportJobStatusFailed})
	if err != nil {
		t.Fatalf("encode snapshot: %v", err)
	}
	if err := mirror.StoreJobSnapshot(ctx, ghostID.String(), string(snapshot), time.Hour); err != nil {
		t.Fatalf("store snapshot: %v", err)
	}
	if !tracker.IsCancelled(ctx, ghostID) {
		t.Fatal("terminal mirror snapshot not honored")
	}

	// A mirror miss falls back to the repository.
	job, err := tracker.Create(ctx, uuid.New(), "https://www.aliexpress.com/item/1005009.html", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tracker.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	mirror.mu.Lock()
	delete(mirror.snapshots, job.ID.String())
	mirror.mu.Unlock()
	if !tracker.IsCancelled(ctx, job.ID) {
		t.Fatal("repository fallback not honored")
	}
}

func TestTrackerTerminalIsSticky(t *testing.T) {
	tracker, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	job, err := tracker.Create(ctx, uuid.New(), "https://www.aliexpress.com/item/1005002.html", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tracker.MarkProcessing(ctx, job.ID, 10, "scraping"); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := tracker.Fail(ctx, job.ID, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	if err := tracker.UpdateProgress(ctx, job.ID, 90, "late update"); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if err := tracker.Complete(ctx, job.ID, nil); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	stored, err := tracker.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != enums.ImportJobStatusFailed || stored.Error == nil || *stored.Error != "boom" {
		t.Fatalf("terminal state mutated: %+v", stored)
	}
}

func TestTrackerCompleteRequiresProcessing(t *testing.T) {
	tracker, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	job, err := tracker.Create(ctx, uuid.New(), "https://www.aliexpress.com/item/1005003.html", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tracker.Complete(ctx, job.ID, nil); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict completing a pending job, got %v", err)
	}
}

func TestTrackerCancel(t *testing.T) {
	tracker, _, sink, _ := newTestTracker(t)
	ctx := context.Background()

	job, err := tracker.Create(ctx, uuid.New(), "https://www.aliexpress.com/item/1005004.html", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tracker.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	stored, err := tracker.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != enums.ImportJobStatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.Error == nil || *stored.Error != cancelledByUserMsg {
		t.Fatalf("expected cancellation message, got %+v", stored.Error)
	}
	if events := sink.byType(enums.EventImportFailed); len(events) != 1 {
		t.Fatalf("expected one failure event, got %d", len(events))
	}

	if err := tracker.Cancel(ctx, job.ID); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict cancelling a terminal job, got %v", err)
	}
}

func TestTrackerGetUnknownJob(t *testing.T) {
	tracker, _, _, _ := newTestTracker(t)
	if _, err := tracker.Get(context.Background(), uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
