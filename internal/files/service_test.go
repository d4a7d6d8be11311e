package files

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf/internal/authz"
	"github.com/openshelf/openshelf/internal/shared"
	"github.com/openshelf/openshelf/internal/watermark"
)

type memoryRepo struct {
	mu      sync.Mutex
	files   map[string]FileRecord
	metas   map[string]Metadata
	creates int
	reviews int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{files: map[string]FileRecord{}, metas: map[string]Metadata{}}
}

func (m *memoryRepo) seed(rec FileRecord, meta Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[rec.ID] = rec
	m.metas[rec.ID] = meta
}

func (m *memoryRepo) CreateBatch(_ context.Context, records []FileRecord, metas []Metadata) ([]FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	now := time.Now()
	out := make([]FileRecord, 0, len(records))
	for i, rec := range records {
		rec.CreatedAt = now
		rec.UpdatedAt = now
		m.files[rec.ID] = rec
		m.metas[rec.ID] = metas[i]
		out = append(out, rec)
	}
	return out, nil
}

func (m *memoryRepo) FindFile(_ context.Context, id string) (FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[id]
	if !ok {
		return FileRecord{}, fmt.Errorf("%w: file", shared.ErrNotFound)
	}
	return rec, nil
}

func (m *memoryRepo) FindMetadata(_ context.Context, fileID string) (Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.metas[fileID]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: file metadata", shared.ErrNotFound)
	}
	return meta, nil
}

func (m *memoryRepo) UpdateFile(_ context.Context, id string, patch FilePatch) (FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[id]
	if !ok {
		return FileRecord{}, fmt.Errorf("%w: file", shared.ErrNotFound)
	}
	if patch.URL != nil {
		rec.URL = *patch.URL
	}
	if patch.Size != nil {
		rec.Size = *patch.Size
	}
	if patch.Type != nil {
		rec.Type = *patch.Type
	}
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.Comments != nil {
		rec.Comments = *patch.Comments
	}
	if patch.Display != nil {
		rec.Display = *patch.Display
	}
	rec.UpdatedAt = time.Now()
	m.files[id] = rec
	return rec, nil
}

func (m *memoryRepo) ApplyReview(_ context.Context, fileID string, status Status, rating int) (FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews++
	rec, ok := m.files[fileID]
	if !ok {
		return FileRecord{}, fmt.Errorf("%w: file", shared.ErrNotFound)
	}
	if rec.Status != StatusPending {
		return FileRecord{}, ErrInvalidTransition
	}
	rec.Status = status
	rec.Reported = false
	m.files[fileID] = rec
	meta := m.metas[fileID]
	meta.Rating = &rating
	m.metas[fileID] = meta
	return rec, nil
}

func (m *memoryRepo) SetReported(_ context.Context, fileID string, reported bool) (FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[fileID]
	if !ok {
		return FileRecord{}, fmt.Errorf("%w: file", shared.ErrNotFound)
	}
	rec.Reported = reported
	m.files[fileID] = rec
	return rec, nil
}

func (m *memoryRepo) IncrementLikes(_ context.Context, fileID string) (Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.metas[fileID]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: file metadata", shared.ErrNotFound)
	}
	meta.Likes++
	m.metas[fileID] = meta
	return meta, nil
}

func (m *memoryRepo) QueryFiles(_ context.Context, filter QueryFilter) ([]FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []FileRecord
	for _, rec := range m.files {
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if filter.Display != nil && rec.Display != *filter.Display {
			continue
		}
		if filter.Reported != nil && rec.Reported != *filter.Reported {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// SearchFiles is deliberately loose: a substring match with no visibility
// filtering, so the service layer has to narrow the rows itself.
func (m *memoryRepo) SearchFiles(_ context.Context, query string) ([]FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var out []FileRecord
	for _, rec := range m.files {
		meta := m.metas[rec.ID]
		haystack := strings.ToLower(rec.Name + " " + rec.URL + " " + rec.Type +
			" " + meta.Subject + " " + strings.Join(meta.Tags, " "))
		if strings.Contains(haystack, q) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListByOwner(_ context.Context, ownerID string) ([]FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []FileRecord
	for _, rec := range m.files {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type passStamper struct{ err error }

func (p passStamper) ApplyAll(_ context.Context, in []watermark.Artifact) ([]watermark.Artifact, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]watermark.Artifact, len(in))
	copy(out, in)
	return out, nil
}

type memoryBlobs struct {
	mu     sync.Mutex
	stored int
}

func (b *memoryBlobs) Store(_ context.Context, name, _ string, _ []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stored++
	return "https://blobs.local/" + name, nil
}

type staticRoles map[string]authz.Role

func (s staticRoles) ResolveRole(_ context.Context, userID string) (authz.Role, error) {
	role, ok := s[userID]
	if !ok {
		return 0, fmt.Errorf("%w: user", shared.ErrNotFound)
	}
	return role, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, passStamper{}, &memoryBlobs{}, staticRoles{
		"user-1":     authz.RoleUser,
		"user-2":     authz.RoleUser,
		"educator-1": authz.RoleEducator,
		"admin-1":    authz.RoleAdmin,
	}, nil)
}

func pendingRecord(id, owner string) FileRecord {
	return FileRecord{
		ID:      id,
		URL:     "https://blobs.local/" + id,
		Size:    1024,
		Type:    "application/pdf",
		Name:    id + ".pdf",
		Status:  StatusPending,
		Display: true,
		OwnerID: owner,
	}
}

func TestSubmitCreatesPendingRecords(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	records, err := svc.Submit(context.Background(), SubmitInput{
		OwnerID: "user-1",
		Subject: "algebra",
		Grade:   9,
		Tags:    []string{"math"},
		Uploads: []Upload{
			{Name: "a.pdf", Type: "application/pdf", Size: 10, Data: []byte("x")},
			{Name: "b.pdf", Type: "application/pdf", Size: 20, Data: []byte("y")},
		},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		require.Equal(t, StatusPending, rec.Status)
		require.True(t, rec.Display)
		require.False(t, rec.Reported)
		require.Equal(t, "user-1", rec.OwnerID)
		meta, err := repo.FindMetadata(context.Background(), rec.ID)
		require.NoError(t, err)
		require.Equal(t, "algebra", meta.Subject)
		require.Nil(t, meta.Rating)
	}
}

func TestSubmitRequiresOwner(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Submit(context.Background(), SubmitInput{
		Uploads: []Upload{{Name: "a.pdf", Type: "application/pdf", Size: 10, Data: []byte("x")}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Zero(t, repo.creates)
}

func TestSubmitWatermarkFailureLeavesNoRecords(t *testing.T) {
	repo := newMemoryRepo()
	blobs := &memoryBlobs{}
	svc := NewService(repo, passStamper{err: watermark.ErrAssetUnavailable}, blobs, staticRoles{}, nil)

	_, err := svc.Submit(context.Background(), SubmitInput{
		OwnerID: "user-1",
		Uploads: []Upload{{Name: "a.pdf", Type: "application/pdf", Size: 10, Data: []byte("x")}},
	})
	require.ErrorIs(t, err, watermark.ErrAssetUnavailable)
	require.Zero(t, repo.creates)
	require.Zero(t, blobs.stored)
}

func TestReviewResolvesPendingAndStoresRating(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(pendingRecord("f1", "user-1"), Metadata{FileID: "f1"})
	svc := newTestService(repo)

	updated, err := svc.Review(context.Background(), ReviewInput{
		ReviewerID: "educator-1", FileID: "f1", Rating: 4, Decision: DecisionApprove,
	})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, updated.Status)

	meta, err := repo.FindMetadata(context.Background(), "f1")
	require.NoError(t, err)
	require.NotNil(t, meta.Rating)
	require.Equal(t, 4, *meta.Rating)
}

func TestReviewReportsTerminalStatus(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(pendingRecord("f1", "user-1"), Metadata{FileID: "f1"})
	svc := newTestService(repo)

	var observed []string
	svc.ObserveReview = func(status string) {
		observed = append(observed, status)
	}

	_, err := svc.Review(context.Background(), ReviewInput{
		ReviewerID: "educator-1", FileID: "f1", Rating: 4, Decision: DecisionApprove,
	})
	require.NoError(t, err)
	require.Equal(t, []string{string(StatusApproved)}, observed)

	// A failed transition must not report anything.
	_, err = svc.Review(context.Background(), ReviewInput{
		ReviewerID: "educator-1", FileID: "f1", Rating: 2, Decision: DecisionReject,
	})
	require.Error(t, err)
	require.Len(t, observed, 1)
}

func TestSubmitAcceptsUploadWithoutDeclaredType(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	records, err := svc.Submit(context.Background(), SubmitInput{
		OwnerID: "user-1",
		Subject: "algebra",
		Grade:   9,
		Uploads: []Upload{{Name: "a.pdf", Size: 10, Data: []byte("x")}},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestReviewingResolvedFileFails(t *testing.T) {
	repo := newMemoryRepo()
	rec := pendingRecord("f1", "user-1")
	rec.Status = StatusApproved
	repo.seed(rec, Metadata{FileID: "f1"})
	svc := newTestService(repo)

	_, err := svc.Review(context.Background(), ReviewInput{
		ReviewerID: "educator-1", FileID: "f1", Rating: 2, Decision: DecisionReject,
	})
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReviewRatingValidatedBeforePersistence(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(pendingRecord("f1", "user-1"), Metadata{FileID: "f1"})
	svc := newTestService(repo)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Review(context.Background(), ReviewInput{
			ReviewerID: "educator-1", FileID: "f1", Rating: rating, Decision: DecisionApprove,
		})
		require.ErrorIs(t, err, ErrInvalidRating)
	}
	require.Zero(t, repo.reviews)

	rec, err := repo.FindFile(context.Background(), "f1")
	require.NoError(t, err)
	require.Equal(t, StatusPending, rec.Status)
}

func TestReviewClearsReportFlag(t *testing.T) {
	repo := newMemoryRepo()
	rec := pendingRecord("f1", "user-1")
	rec.Reported = true
	repo.seed(rec, Metadata{FileID: "f1"})
	svc := newTestService(repo)

	updated, err := svc.Review(context.Background(), ReviewInput{
		ReviewerID: "educator-1", FileID: "f1", Rating: 3, Decision: DecisionReject,
	})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, updated.Status)
	require.False(t, updated.Reported)
}

func TestReportIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(pendingRecord("f1", "user-1"), Metadata{FileID: "f1"})
	svc := newTestService(repo)

	first, err := svc.Report(context.Background(), "user-2", "f1")
	require.NoError(t, err)
	require.True(t, first.Reported)

	second, err := svc.Report(context.Background(), "user-2", "f1")
	require.NoError(t, err)
	require.True(t, second.Reported)
}

func TestReportOwnFileRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(pendingRecord("f1", "user-1"), Metadata{FileID: "f1"})
	svc := newTestService(repo)

	_, err := svc.Report(context.Background(), "user-1", "f1")
	require.ErrorIs(t, err, shared.ErrValidation)

	rec, err := repo.FindFile(context.Background(), "f1")
	require.NoError(t, err)
	require.False(t, rec.Reported)
}

func TestConcurrentLikesAllCount(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(pendingRecord("f1", "user-1"), Metadata{FileID: "f1"})
	svc := newTestService(repo)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Like(context.Background(), "f1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	meta, err := repo.FindMetadata(context.Background(), "f1")
	require.NoError(t, err)
	require.Equal(t, int64(n), meta.Likes)
}

func TestToggleVisibilityOwnerOnly(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(pendingRecord("f1", "user-1"), Metadata{FileID: "f1"})
	svc := newTestService(repo)

	_, err := svc.ToggleVisibility(context.Background(), "user-2", "f1")
	require.ErrorIs(t, err, ErrNotOwner)
	require.ErrorIs(t, err, shared.ErrDenied)

	hidden, err := svc.ToggleVisibility(context.Background(), "user-1", "f1")
	require.NoError(t, err)
	require.False(t, hidden.Display)

	shown, err := svc.ToggleVisibility(context.Background(), "user-1", "f1")
	require.NoError(t, err)
	require.True(t, shown.Display)
}

func TestUpdateHonorsExplicitFalseValues(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(pendingRecord("f1", "user-1"), Metadata{FileID: "f1"})
	svc := newTestService(repo)

	display := false
	updated, err := svc.Update(context.Background(), "user-1", "f1", FilePatch{Display: &display})
	require.NoError(t, err)
	require.False(t, updated.Display)

	_, err = svc.Update(context.Background(), "user-1", "f1", FilePatch{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSearchExcludesReportedAndRejected(t *testing.T) {
	repo := newMemoryRepo()

	visible := pendingRecord("f1", "user-1")
	visible.Name = "Final Exam Prep.pdf"
	repo.seed(visible, Metadata{FileID: "f1", Subject: "history"})

	reported := pendingRecord("f2", "user-1")
	reported.Name = "exam answers.pdf"
	reported.Reported = true
	repo.seed(reported, Metadata{FileID: "f2"})

	rejected := pendingRecord("f3", "user-1")
	rejected.Name = "leaked paper.pdf"
	rejected.Status = StatusRejected
	repo.seed(rejected, Metadata{FileID: "f3", Tags: []string{"EXAM"}})

	svc := newTestService(repo)

	for _, query := range []string{"exam", "EXAM"} {
		results, err := svc.Search(context.Background(), query)
		require.NoError(t, err, query)
		require.Len(t, results, 1, query)
		require.Equal(t, "f1", results[0].ID)
	}

	_, err := svc.Search(context.Background(), "   ")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCommunityProjectionByRole(t *testing.T) {
	repo := newMemoryRepo()

	approved := pendingRecord("f1", "user-1")
	approved.Status = StatusApproved
	repo.seed(approved, Metadata{FileID: "f1"})

	hidden := pendingRecord("f2", "user-1")
	hidden.Status = StatusApproved
	hidden.Display = false
	repo.seed(hidden, Metadata{FileID: "f2"})

	repo.seed(pendingRecord("f3", "user-1"), Metadata{FileID: "f3"})

	svc := newTestService(repo)

	userView, err := svc.Community(context.Background(), "user-2")
	require.NoError(t, err)
	require.Len(t, userView, 1)
	require.Equal(t, "f1", userView[0].ID)

	educatorView, err := svc.Community(context.Background(), "educator-1")
	require.NoError(t, err)
	require.Len(t, educatorView, 3)

	adminView, err := svc.Community(context.Background(), "admin-1")
	require.NoError(t, err)
	require.Len(t, adminView, 3)

	_, err = svc.Community(context.Background(), "stranger")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListByStatusFilter(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(pendingRecord("f1", "user-1"), Metadata{FileID: "f1"})
	approved := pendingRecord("f2", "user-1")
	approved.Status = StatusApproved
	repo.seed(approved, Metadata{FileID: "f2"})

	svc := newTestService(repo)

	all, err := svc.List(context.Background(), "all")
	require.NoError(t, err)
	require.Len(t, all, 2)

	pending, err := svc.List(context.Background(), "PENDING")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "f1", pending[0].ID)

	_, err = svc.List(context.Background(), "bogus")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestLikeUnknownFile(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Like(context.Background(), "missing")
	require.True(t, errors.Is(err, shared.ErrNotFound))
}
