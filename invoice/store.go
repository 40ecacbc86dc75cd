package invoice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	awspkg "github.com/Faraz011/Hindustan-Bills-sub001/pkg/aws"
)

// AssetStore reads previously generated invoice documents. A missing asset
// is reported as apperrors.ErrAssetNotFound; stores never regenerate.
type AssetStore interface {
	Read(ctx context.Context, assetPath string) ([]byte, error)
}

// FileName is the deterministic invoice name for an order.
func FileName(orderNumber string) string {
	return "invoice-" + orderNumber + ".pdf"
}

// AssetPath joins a shop's invoice prefix with the order's file name.
func AssetPath(prefix, orderNumber string) string {
	return path.Join(prefix, FileName(orderNumber))
}

// FileStore reads invoices from a directory on local durable storage.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Read(_ context.Context, assetPath string) ([]byte, error) {
	full, err := s.resolve(assetPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrap(apperrors.ErrAssetNotFound, fmt.Errorf("%s", full))
		}
		return nil, fmt.Errorf("read invoice %s: %w", full, err)
	}
	return b, nil
}

// resolve keeps relative asset paths inside root.
func (s *FileStore) resolve(assetPath string) (string, error) {
	if filepath.IsAbs(assetPath) && s.root == "" {
		return assetPath, nil
	}
	clean := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(assetPath)))
	if s.root != "" {
		root := filepath.Clean(s.root)
		if clean != root && !strings.HasPrefix(clean, root+string(filepath.Separator)) {
			return "", apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Errorf("asset path %q escapes invoice root", assetPath))
		}
	}
	return clean, nil
}

// S3Store reads invoices from a bucket; asset paths are object keys.
type S3Store struct {
	client awspkg.ObjectGetter
	bucket string
}

func NewS3Store(client awspkg.ObjectGetter, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) Read(ctx context.Context, assetPath string) ([]byte, error) {
	b, err := awspkg.GetObjectBytes(ctx, s.client, s.bucket, strings.TrimPrefix(assetPath, "/"))
	if err != nil {
		if errors.Is(err, awspkg.ErrObjectNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrAssetNotFound, err)
		}
		return nil, err
	}
	return b, nil
}
