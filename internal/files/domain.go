// Package files implements the moderation lifecycle of uploaded documents:
// submission, review, reporting, visibility, likes and the community
// projections.
package files

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/openshelf/openshelf/internal/shared"
)

// Status tracks where a document sits in the review lifecycle. PENDING is the
// only non-terminal state; once reviewed a record never returns to PENDING —
// re-submission creates a new record.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Valid reports whether s is a member of the status enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// ParseStatus maps a stored status string onto the enumeration.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", shared.ErrValidation, s)
	}
	return status, nil
}

// Decision is a reviewer verdict.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// ParseDecision maps a request string onto the decision enumeration.
func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.ToUpper(strings.TrimSpace(s))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	default:
		return "", fmt.Errorf("%w: decision must be APPROVE or REJECT", shared.ErrValidation)
	}
}

// Status returns the terminal status the decision resolves to.
func (d Decision) Status() Status {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// FileRecord is the persisted representation of one uploaded document and
// its moderation state. Records are soft-state only and never deleted.
type FileRecord struct {
	ID        string
	URL       string
	Size      int64
	Type      string
	Name      string
	Status    Status
	Comments  string
	Display   bool
	Reported  bool
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Metadata is owned 1:1 by a FileRecord and created atomically with it.
type Metadata struct {
	FileID  string
	Subject string
	Grade   int
	Tags    []string
	Rating  *int
	Likes   int64
}

// FileWithMetadata pairs a record with its metadata for read endpoints.
type FileWithMetadata struct {
	FileRecord
	Metadata Metadata
}

// FilePatch is an explicit-presence update for editFileRecord: nil leaves a
// field alone, a pointer to a zero value writes the zero value. Status and
// the reported flag are deliberately absent — reviews and reports own those.
type FilePatch struct {
	URL      *string
	Size     *int64
	Type     *string
	Name     *string
	Comments *string
	Display  *bool
}

// Empty reports whether the patch changes nothing.
func (p FilePatch) Empty() bool {
	return p.URL == nil && p.Size == nil && p.Type == nil &&
		p.Name == nil && p.Comments == nil && p.Display == nil
}

var (
	// ErrInvalidTransition indicates a review of a non-pending record.
	ErrInvalidTransition = fmt.Errorf("%w: file is no longer pending review", shared.ErrValidation)
	// ErrNotOwner indicates the caller does not own the record.
	ErrNotOwner = fmt.Errorf("%w: only the owner may modify this file", shared.ErrDenied)
	// ErrInvalidRating indicates a rating outside the 1..5 domain.
	ErrInvalidRating = fmt.Errorf("%w: rating must be between 1 and 5", shared.ErrValidation)
)

var queryFolder = cases.Fold()

// MatchesQuery reports whether the record or its metadata matches the search
// query on name, url, type, subject or tags, case-insensitively. Reported
// and rejected records never match.
func MatchesQuery(rec FileRecord, meta Metadata, query string) bool {
	if rec.Reported || rec.Status == StatusRejected {
		return false
	}
	folded := queryFolder.String(query)
	contains := func(s string) bool {
		return strings.Contains(queryFolder.String(s), folded)
	}
	if contains(rec.Name) || contains(rec.URL) || contains(rec.Type) || contains(meta.Subject) {
		return true
	}
	for _, tag := range meta.Tags {
		if contains(tag) {
			return true
		}
	}
	return false
}
