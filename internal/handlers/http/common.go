package http

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
)

// fail hands err to the error middleware and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func invalid(op, format string, args ...interface{}) error {
	return domain.InvalidArgument(op, format, args...)
}

// pageFromQuery reads ?page=&limit=&sort_by=&sort_type=. Bounds are checked
// by the services.
func pageFromQuery(c *gin.Context, op string) (domain.PageRequest, error) {
	page := domain.PageRequest{
		Page:      defaultPage,
		PageSize:  defaultPageSize,
		SortBy:    c.Query("sort_by"),
		Direction: domain.SortDirection(c.Query("sort_type")),
	}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, invalid(op, "page must be an integer, got %q", raw)
		}
		page.Page = n
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, invalid(op, "limit must be an integer, got %q", raw)
		}
		page.PageSize = n
	}
	return page, nil
}

// pageMeta echoes the request so clients can ask for the next page.
func pageMeta(page domain.PageRequest, n int) gin.H {
	return gin.H{
		"page":  page.Page,
		"limit": page.PageSize,
		"count": n,
	}
}

// savedUpload is a multipart file written to a private temp directory; the
// handler removes it once the service call returns.
type savedUpload struct {
	Path string
	dir  string
}

func (u *savedUpload) Remove() {
	if u != nil && u.dir != "" {
		os.RemoveAll(u.dir)
	}
}

// saveUpload stores the multipart field on disk. A missing optional field
// yields (nil, nil).
func saveUpload(c *gin.Context, op, field string, required bool) (*savedUpload, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if required {
			return nil, invalid(op, "%s file is required", field)
		}
		return nil, nil
	}

	dir, err := os.MkdirTemp("", "vidtube-upload-*")
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	path := filepath.Join(dir, filepath.Base(header.Filename))
	if err := c.SaveUploadedFile(header, path); err != nil {
		os.RemoveAll(dir)
		return nil, domain.DependencyFailure(op, err)
	}
	return &savedUpload{Path: path, dir: dir}, nil
}

func uploadPath(u *savedUpload) string {
	if u == nil {
		return ""
	}
	return u.Path
}

func actor(c *gin.Context) domain.ActorID {
	return middleware.Actor(c)
}

// accountView is what the account owner sees about themselves; credentials
// never leave the server.
type accountView struct {
	ID           domain.ActorID   `json:"id"`
	Username     string           `json:"username"`
	Email        string           `json:"email"`
	FullName     string           `json:"full_name"`
	Avatar       domain.Asset     `json:"avatar"`
	CoverImage   domain.Asset     `json:"cover_image"`
	WatchHistory []domain.VideoID `json:"watch_history"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func newAccountView(a *domain.Actor) accountView {
	history := a.WatchHistory
	if history == nil {
		history = []domain.VideoID{}
	}
	return accountView{
		ID:           a.ID,
		Username:     a.Username,
		Email:        a.Email,
		FullName:     a.FullName,
		Avatar:       a.Avatar,
		CoverImage:   a.CoverImage,
		WatchHistory: history,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
