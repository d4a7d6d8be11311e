package files

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/openshelf/openshelf/internal/authz"
	"github.com/openshelf/openshelf/internal/shared"
	"github.com/openshelf/openshelf/internal/watermark"
)

// RepositoryPort abstracts persistence for the service. Implementations must
// provide atomic increments for counters and all-or-nothing creation of a
// record/metadata pair.
type RepositoryPort interface {
	CreateBatch(ctx context.Context, records []FileRecord, metas []Metadata) ([]FileRecord, error)
	FindFile(ctx context.Context, id string) (FileRecord, error)
	FindMetadata(ctx context.Context, fileID string) (Metadata, error)
	UpdateFile(ctx context.Context, id string, patch FilePatch) (FileRecord, error)
	ApplyReview(ctx context.Context, fileID string, status Status, rating int) (FileRecord, error)
	SetReported(ctx context.Context, fileID string, reported bool) (FileRecord, error)
	IncrementLikes(ctx context.Context, fileID string) (Metadata, error)
	QueryFiles(ctx context.Context, filter QueryFilter) ([]FileRecord, error)
	SearchFiles(ctx context.Context, query string) ([]FileRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]FileRecord, error)
}

// QueryFilter selects records; nil fields match everything.
type QueryFilter struct {
	Status   *Status
	Display  *bool
	Reported *bool
}

// BlobStore hands watermarked binaries to the external hosting collaborator.
type BlobStore interface {
	Store(ctx context.Context, name, contentType string, data []byte) (url string, err error)
}

// Stamper is the watermark pipeline as consumed by the service.
type Stamper interface {
	ApplyAll(ctx context.Context, in []watermark.Artifact) ([]watermark.Artifact, error)
}

// RoleSource resolves the caller's role for role-based projections.
type RoleSource interface {
	ResolveRole(ctx context.Context, userID string) (authz.Role, error)
}

// Invalidator is notified after any mutation so read-side caches can drop
// stale community projections.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates the moderation state machine.
type Service struct {
	repo    RepositoryPort
	stamper Stamper
	blobs   BlobStore
	roles   RoleSource
	cache   Invalidator

	// ObserveReview, when set, receives the terminal status of every
	// resolved review.
	ObserveReview func(status string)
}

// NewService builds Service.
func NewService(repo RepositoryPort, stamper Stamper, blobs BlobStore, roles RoleSource, cache Invalidator) *Service {
	return &Service{repo: repo, stamper: stamper, blobs: blobs, roles: roles, cache: cache}
}

// Upload is one raw binary arriving with a submission.
type Upload struct {
	Name string
	Type string
	Size int64
	Data []byte
}

// SubmitInput describes one submission of one or more documents sharing a
// single metadata envelope.
type SubmitInput struct {
	OwnerID string
	Subject string
	Grade   int
	Tags    []string
	Uploads []Upload
}

// Submit watermarks every upload, stores the binaries and creates the
// record/metadata pairs in one transaction. No file reaches storage without
// a successful watermark pass, and a failure anywhere leaves no partial
// record behind. The owner identity is mandatory; there is no fallback.
func (s *Service) Submit(ctx context.Context, in SubmitInput) ([]FileRecord, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, fmt.Errorf("%w: submission requires an authenticated owner", shared.ErrValidation)
	}
	if len(in.Uploads) == 0 {
		return nil, fmt.Errorf("%w: no files provided", shared.ErrValidation)
	}

	artifacts := make([]watermark.Artifact, 0, len(in.Uploads))
	for _, up := range in.Uploads {
		if up.Name == "" || up.Size <= 0 {
			return nil, fmt.Errorf("%w: file name and size are required", shared.ErrValidation)
		}
		// A missing declared type is left for the pipeline to sniff.
		artifacts = append(artifacts, watermark.Artifact{Name: up.Name, Type: up.Type, Data: up.Data})
	}

	stamped, err := s.stamper.ApplyAll(ctx, artifacts)
	if err != nil {
		return nil, err
	}

	records := make([]FileRecord, 0, len(stamped))
	metas := make([]Metadata, 0, len(stamped))
	for i, artifact := range stamped {
		url, err := s.blobs.Store(ctx, artifact.Name, artifact.Type, artifact.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: store %s: %v", shared.ErrPersistence, artifact.Name, err)
		}
		id := uuid.NewString()
		records = append(records, FileRecord{
			ID:       id,
			URL:      url,
			Size:     in.Uploads[i].Size,
			Type:     artifact.Type,
			Name:     artifact.Name,
			Status:   StatusPending,
			Display:  true,
			Reported: false,
			OwnerID:  in.OwnerID,
		})
		metas = append(metas, Metadata{
			FileID:  id,
			Subject: in.Subject,
			Grade:   in.Grade,
			Tags:    in.Tags,
		})
	}

	created, err := s.repo.CreateBatch(ctx, records, metas)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return created, nil
}

// ReviewInput carries a reviewer verdict for one pending file.
type ReviewInput struct {
	ReviewerID string
	FileID     string
	Rating     int
	Decision   Decision
}

// Review resolves a pending record to a terminal status, stores the rating
// and clears any report flag: the act of reviewing supersedes the report.
func (s *Service) Review(ctx context.Context, in ReviewInput) (FileRecord, error) {
	// Rating is validated before any persistence call is made.
	if in.Rating < 1 || in.Rating > 5 {
		return FileRecord{}, ErrInvalidRating
	}

	record, err := s.repo.FindFile(ctx, in.FileID)
	if err != nil {
		return FileRecord{}, err
	}
	if record.Status != StatusPending {
		return FileRecord{}, ErrInvalidTransition
	}

	updated, err := s.repo.ApplyReview(ctx, in.FileID, in.Decision.Status(), in.Rating)
	if err != nil {
		return FileRecord{}, err
	}
	if s.ObserveReview != nil {
		s.ObserveReview(string(updated.Status))
	}
	s.invalidate(ctx)
	return updated, nil
}

// Report flags a record for review. Reporting is idempotent; reporting an
// already-reported file simply leaves the flag set. Owners cannot report
// their own files.
func (s *Service) Report(ctx context.Context, reporterID, fileID string) (FileRecord, error) {
	record, err := s.repo.FindFile(ctx, fileID)
	if err != nil {
		return FileRecord{}, err
	}
	if record.OwnerID == reporterID {
		return FileRecord{}, fmt.Errorf("%w: you cannot report your own file", shared.ErrValidation)
	}

	updated, err := s.repo.SetReported(ctx, fileID, true)
	if err != nil {
		return FileRecord{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// ToggleVisibility flips the display flag. Only the owner may do this.
func (s *Service) ToggleVisibility(ctx context.Context, callerID, fileID string) (FileRecord, error) {
	record, err := s.repo.FindFile(ctx, fileID)
	if err != nil {
		return FileRecord{}, err
	}
	if record.OwnerID != callerID {
		return FileRecord{}, ErrNotOwner
	}

	display := !record.Display
	updated, err := s.repo.UpdateFile(ctx, fileID, FilePatch{Display: &display})
	if err != nil {
		return FileRecord{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Like increments the like counter by exactly one. The increment is atomic
// at the persistence boundary so concurrent likes are all counted.
func (s *Service) Like(ctx context.Context, fileID string) (Metadata, error) {
	if _, err := s.repo.FindFile(ctx, fileID); err != nil {
		return Metadata{}, err
	}
	return s.repo.IncrementLikes(ctx, fileID)
}

// Update applies an explicit-presence patch to a record the caller owns.
func (s *Service) Update(ctx context.Context, callerID, fileID string, patch FilePatch) (FileRecord, error) {
	if patch.Empty() {
		return FileRecord{}, fmt.Errorf("%w: no fields provided to update", shared.ErrValidation)
	}
	record, err := s.repo.FindFile(ctx, fileID)
	if err != nil {
		return FileRecord{}, err
	}
	if record.OwnerID != callerID {
		return FileRecord{}, ErrNotOwner
	}

	updated, err := s.repo.UpdateFile(ctx, fileID, patch)
	if err != nil {
		return FileRecord{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Get returns one record together with its metadata.
func (s *Service) Get(ctx context.Context, fileID string) (FileWithMetadata, error) {
	record, err := s.repo.FindFile(ctx, fileID)
	if err != nil {
		return FileWithMetadata{}, err
	}
	meta, err := s.repo.FindMetadata(ctx, fileID)
	if err != nil {
		return FileWithMetadata{}, err
	}
	return FileWithMetadata{FileRecord: record, Metadata: meta}, nil
}

// ListByOwner returns the caller's own uploads.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]FileRecord, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// List returns records by status filter: "all" or one of the status names.
func (s *Service) List(ctx context.Context, filter string) ([]FileRecord, error) {
	if strings.EqualFold(filter, "all") {
		return s.repo.QueryFiles(ctx, QueryFilter{})
	}
	status, err := ParseStatus(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: filter must be all, pending, approved or rejected", shared.ErrValidation)
	}
	return s.repo.QueryFiles(ctx, QueryFilter{Status: &status})
}

// Search matches records on name, url, type, subject and tags,
// case-insensitively, always excluding reported and rejected records.
func (s *Service) Search(ctx context.Context, query string) ([]FileRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query required", shared.ErrValidation)
	}
	results, err := s.repo.SearchFiles(ctx, query)
	if err != nil {
		return nil, err
	}
	// Re-check every hit against the domain predicate so the reported and
	// rejected exclusions hold regardless of how the repository matched.
	filtered := results[:0:0]
	for _, rec := range results {
		meta, err := s.repo.FindMetadata(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		if !MatchesQuery(rec, meta, query) {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered, nil
}

/// Community returns the community view projected by the caller's role: USER
// sees only displayed, approved, unreported records; reviewer roles see all.
func (s *Service) Community(ctx context.Context, callerID string) ([]FileRecord, error) {
	role, err := s.roles.ResolveRole(ctx, callerID)
	if err != nil {
		return nil, err
	}

	switch role {
	case authz.RoleUser:
		display, reported := true, false
		status := StatusApproved
		return s.repo.QueryFiles(ctx, QueryFilter{Status: &status, Display: &display, Reported: &reported})
	case authz.RoleEducator, authz.RoleAdmin:
		return s.repo.QueryFiles(ctx, QueryFilter{})
	default:
		return nil, fmt.Errorf("%w: unhandled role %s", shared.ErrDenied, role)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx)
	}
}
