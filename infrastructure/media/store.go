package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var (
	ErrNotFound = errors.New("media not found")
	ErrTooLarge = errors.New("media exceeds size limit")
)

// Store keeps request-scoped uploads under one directory of an afero filesystem.
type Store struct {
	fs       afero.Fs
	dir      string
	maxBytes int64
}

// NewStore uses fs rooted at dir. maxBytes <= 0 disables the size check.
func NewStore(fs afero.Fs, dir string, maxBytes int64) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create media dir %s: %w", dir, err)
	}
	return &Store{fs: fs, dir: dir, maxBytes: maxBytes}, nil
}

// NewOsStore is NewStore on the real filesystem.
func NewOsStore(dir string, maxSizeMB int64) (*Store, error) {
	return NewStore(afero.NewOsFs(), dir, maxSizeMB<<20)
}

func (s *Store) Save(ctx context.Context, fileName, contentType string, r io.Reader) (*model.MediaResource, error) {
	handle := uuid.NewString() + safeExt(fileName)
	if !validHandle(handle) {
		return nil, fmt.Errorf("save media %q: invalid handle %q", fileName, handle)
	}
	p := s.path(handle)
	f, err := s.fs.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create media file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = s.fs.Remove(p)
		return nil, fmt.Errorf("save media %q: %w", fileName, err)
	}

	logger.GetLogger().WithField("handle", handle).WithField("size", n).Debug("Media saved")
	return &model.MediaResource{Handle: handle, FileName: fileName, ContentType: contentType, Size: n}, nil
}

func (s *Store) Open(_ context.Context, handle string) (io.ReadSeekCloser, error) {
	if !validHandle(handle) {
		return nil, ErrNotFound
	}
	f, err := s.fs.Open(s.path(handle))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Release removes the file. A missing file is not an error.
func (s *Store) Release(_ context.Context, handle string) error {
	if !validHandle(handle) {
		return nil
	}
	if err := s.fs.Remove(s.path(handle)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release media %s: %w", handle, err)
	}
	logger.GetLogger().WithField("handle", handle).Debug("Media released")
	return nil
}

func (s *Store) path(handle string) string {
	return filepath.Join(s.dir, handle)
}

// safeExt keeps a short lowercase alphanumeric extension and drops anything else.
func safeExt(fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// validHandle rejects anything that could escape the media directory.
func validHandle(handle string) bool {
	return handle != "" && !strings.ContainsAny(handle, `/\`) && !strings.Contains(handle, "..")
}
