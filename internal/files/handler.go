package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openshelf/openshelf/internal/platform/httpx"
	"github.com/openshelf/openshelf/internal/shared"
)

// maxSubmissionBytes caps one multipart submission in memory.
const maxSubmissionBytes = 64 << 20

// Handler wires the file record endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	cache    *Cache
	validate *validator.Validate
}

// NewHandler builds a Handler instance. Cache may be nil.
func NewHandler(logger *slog.Logger, service *Service, cache *Cache) *Handler {
	return &Handler{logger: logger, service: service, cache: cache, validate: validator.New()}
}

// MountRoutes registers file routes. The gate middleware in front of the
// router has already authorized the action and resolved the identity.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/createFileRecord", h.createFileRecord)
	r.Put("/editFileRecord", h.editFileRecord)
	r.Post("/likeFile", h.likeFile)
	r.Post("/rateFile", h.rateFile)
	r.Post("/reportFile", h.reportFile)
	r.Post("/toggleVisibility", h.toggleVisibility)
	r.Get("/searchFile", h.searchFile)
	r.Get("/getFile", h.getFile)
	r.Get("/getUserFiles", h.getUserFiles)
	r.Get("/getCommunityFiles", h.getCommunityFiles)
	r.Get("/getFilteredFiles", h.getFilteredFiles)
}

type fileView struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Size      int64  `json:"size"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Comments  string `json:"comments,omitempty"`
	Display   bool   `json:"display"`
	Reported  bool   `json:"reported"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
}

type metadataView struct {
	Subject string   `json:"subject"`
	Grade   int      `json:"grade"`
	Tags    []string `json:"tags"`
	Rating  *int     `json:"rating"`
	Likes   int64    `json:"likes"`
}

type fileDetailView struct {
	fileView
	Metadata metadataView `json:"metadata"`
}

func toFileView(rec FileRecord) fileView {
	return fileView{
		ID:        rec.ID,
		URL:       rec.URL,
		Size:      rec.Size,
		Type:      rec.Type,
		Name:      rec.Name,
		Status:    string(rec.Status),
		Comments:  rec.Comments,
		Display:   rec.Display,
		Reported:  rec.Reported,
		OwnerID:   rec.OwnerID,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toFileViews(recs []FileRecord) []fileView {
	views := make([]fileView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, toFileView(rec))
	}
	return views
}

func (h *Handler) createFileRecord(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if id == nil {
		httpx.RespondError(w, shared.ErrDenied)
		return
	}
	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected a multipart submission")
		return
	}

	grade, err := strconv.Atoi(r.FormValue("grade"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "grade must be a number")
		return
	}
	in := SubmitInput{
		OwnerID: id.UserID,
		Subject: r.FormValue("subject"),
		Grade:   grade,
		Tags:    splitTags(r.FormValue("tags")),
	}

	for _, header := range r.MultipartForm.File["files"] {
		part, err := header.Open()
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unreadable file part")
			return
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unreadable file part")
			return
		}
		in.Uploads = append(in.Uploads, Upload{
			Name: header.Filename,
			Type: header.Header.Get("Content-Type"),
			Size: header.Size,
			Data: data,
		})
	}

	records, err := h.service.Submit(r.Context(), in)
	if err != nil {
		h.logger.Error("create file record", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, fmt.Sprintf("created %d file record(s)", len(records)), toFileViews(records))
}

type editFileRequest struct {
	FileID   string  `json:"fileId" validate:"required"`
	URL      *string `json:"url"`
	Size     *int64  `json:"size"`
	Type     *string `json:"type"`
	Name     *string `json:"name"`
	Comments *string `json:"comments"`
	Display  *bool   `json:"display"`
}

func (h *Handler) editFileRecord(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if id == nil {
		httpx.RespondError(w, shared.ErrDenied)
		return
	}
	var req editFileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "fileId is required")
		return
	}
	patch := FilePatch{
		URL:      req.URL,
		Size:     req.Size,
		Type:     req.Type,
		Name:     req.Name,
		Comments: req.Comments,
		Display:  req.Display,
	}
	record, err := h.service.Update(r.Context(), id.UserID, req.FileID, patch)
	if err != nil {
		h.logger.Error("edit file record", slog.String("file", req.FileID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "file updated", toFileView(record))
}

type fileIDRequest struct {
	FileID string `json:"fileId" validate:"required"`
}

func (h *Handler) decodeFileID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req fileIDRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return "", false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "fileId is required")
		return "", false
	}
	return req.FileID, true
}

func (h *Handler) likeFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.decodeFileID(w, r)
	if !ok {
		return
	}
	meta, err := h.service.Like(r.Context(), fileID)
	if err != nil {
		h.logger.Error("like file", slog.String("file", fileID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "file liked", map[string]int64{"likes": meta.Likes})
}

type rateFileRequest struct {
	FileID   string `json:"fileId" validate:"required"`
	Rating   int    `json:"rating" validate:"required"`
	Decision string `json:"decision" validate:"required"`
}

func (h *Handler) rateFile(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if id == nil {
		httpx.RespondError(w, shared.ErrDenied)
		return
	}
	var req rateFileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "fileId, rating and decision are required")
		return
	}
	decision, err := ParseDecision(req.Decision)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	record, err := h.service.Review(r.Context(), ReviewInput{
		ReviewerID: id.UserID,
		FileID:     req.FileID,
		Rating:     req.Rating,
		Decision:   decision,
	})
	if err != nil {
		h.logger.Error("rate file", slog.String("file", req.FileID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "file reviewed", toFileView(record))
}

func (h *Handler) reportFile(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if id == nil {
		httpx.RespondError(w, shared.ErrDenied)
		return
	}
	fileID, ok := h.decodeFileID(w, r)
	if !ok {
		return
	}
	record, err := h.service.Report(r.Context(), id.UserID, fileID)
	if err != nil {
		h.logger.Error("report file", slog.String("file", fileID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "file reported", toFileView(record))
}

func (h *Handler) toggleVisibility(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if id == nil {
		httpx.RespondError(w, shared.ErrDenied)
		return
	}
	fileID, ok := h.decodeFileID(w, r)
	if !ok {
		return
	}
	record, err := h.service.ToggleVisibility(r.Context(), id.UserID, fileID)
	if err != nil {
		h.logger.Error("toggle visibility", slog.String("file", fileID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "visibility updated", toFileView(record))
}

func (h *Handler) searchFile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	records, err := h.service.Search(r.Context(), query)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "", toFileViews(records))
}

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "fileId is required")
		return
	}
	detail, err := h.service.Get(r.Context(), fileID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view := fileDetailView{
		fileView: toFileView(detail.FileRecord),
		Metadata: metadataView{
			Subject: detail.Metadata.Subject,
			Grade:   detail.Metadata.Grade,
			Tags:    detail.Metadata.Tags,
			Rating:  detail.Metadata.Rating,
			Likes:   detail.Metadata.Likes,
		},
	}
	httpx.OK(w, "", view)
}

func (h *Handler) getUserFiles(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if id == nil {
		httpx.RespondError(w, shared.ErrDenied)
		return
	}
	records, err := h.service.ListByOwner(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("get user files", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "", toFileViews(records))
}

func (h *Handler) getCommunityFiles(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if id == nil {
		httpx.RespondError(w, shared.ErrDenied)
		return
	}

	var views []fileView
	load := func(ctx context.Context) (interface{}, error) {
		records, err := h.service.Community(ctx, id.UserID)
		if err != nil {
			return nil, err
		}
		return toFileViews(records), nil
	}
	if h.cache != nil {
		key, err := h.cache.BuildKey(r.Context(), "files", "community", id.UserID)
		if err == nil {
			if err := h.cache.FetchJSON(r.Context(), key, &views, load); err != nil {
				httpx.RespondError(w, err)
				return
			}
			httpx.OK(w, "", views)
			return
		}
		h.logger.Warn("community cache key", slog.Any("error", err))
	}

	records, err := h.service.Community(r.Context(), id.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "", toFileViews(records))
}

func (h *Handler) getFilteredFiles(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	if filter == "" {
		filter = "all"
	}
	records, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "", toFileViews(records))
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
