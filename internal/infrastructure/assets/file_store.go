package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vidtube/internal/core/domain"
	"vidtube/pkg/utils"

	"go.uber.org/zap"
)

// FileStore keeps uploaded assets under a local directory and serves them
// from baseURL (the API mounts the directory there).
type FileStore struct {
	root    string
	baseURL string
	logger  *zap.SugaredLogger
}

func NewFileStore(root, baseURL string, logger *zap.SugaredLogger) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	return &FileStore{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Root is the directory assets are written to.
func (fs *FileStore) Root() string {
	return fs.root
}

// Upload copies the file at localPath into the store under a fresh public id.
// The caller keeps ownership of localPath.
func (fs *FileStore) Upload(ctx context.Context, localPath string) (domain.Asset, error) {
	const op = "asset_upload"

	src, err := openLocal(op, localPath)
	if err != nil {
		return domain.Asset{}, err
	}
	defer src.Close()

	publicID := newPublicID(localPath)
	dst, err := os.OpenFile(filepath.Join(fs.root, publicID), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to create asset file: %w", err)
	}

	if _, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src}); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return domain.Asset{}, fmt.Errorf("failed to write asset data: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return domain.Asset{}, fmt.Errorf("failed to flush asset file: %w", err)
	}

	fs.logger.Debugw("Asset stored", "public_id", publicID, "source", localPath)
	return domain.Asset{URL: fs.baseURL + "/" + publicID, PublicID: publicID}, nil
}

// Delete removes an asset. Deleting an asset that is already gone succeeds.
func (fs *FileStore) Delete(ctx context.Context, publicID string) error {
	if err := validPublicID(publicID); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(fs.root, publicID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

func openLocal(op, localPath string) (*os.File, error) {
	if strings.TrimSpace(localPath) == "" {
		return nil, domain.InvalidArgument(op, "local file path is required")
	}
	f, err := os.Open(localPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.InvalidArgument(op, "local file %q does not exist", filepath.Base(localPath))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open local file: %w", err)
	}
	return f, nil
}

// newPublicID names a stored asset; the source extension is kept so the
// served file has a usable content type.
func newPublicID(localPath string) string {
	return utils.NewID() + strings.ToLower(filepath.Ext(localPath))
}

func validPublicID(publicID string) error {
	if publicID == "" || publicID != filepath.Base(publicID) || strings.HasPrefix(publicID, ".") {
		return domain.InvalidArgument("asset_delete", "invalid public id %q", publicID)
	}
	return nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
