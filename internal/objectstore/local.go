package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"mediaflow/internal/services"
)

// LocalStore keeps objects as files below a root directory. Keys map directly
// to relative paths.
type LocalStore struct {
	root string
}

// NewLocal returns a store rooted at dir, creating it if needed.
func NewLocal(dir string) (*LocalStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "local", "local_dir is required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "local", "create root", err)
	}
	return &LocalStore{root: dir}, nil
}

// Root returns the directory backing the store.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}
	path, err := s.path(key)
	if err != nil {
		return nil, Info{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, Info{}, mapLocalError("get object", key, err)
	}
	info, err := s.statFile(key, path)
	if err != nil {
		_ = f.Close()
		return nil, Info{}, err
	}
	return f, info, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	path, err := s.path(key)
	if err != nil {
		return Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Info{}, services.Wrap(services.ErrTransient, "objectstore", "put object", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return Info{}, services.Wrap(services.ErrTransient, "objectstore", "put object", key, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	hash := md5.New()
	src := r
	if size >= 0 {
		src = io.LimitReader(r, size)
	}
	written, copyErr := io.Copy(io.MultiWriter(tmp, hash), src)
	closeErr := tmp.Close()
	if copyErr != nil {
		return Info{}, services.Wrap(services.ErrTransient, "objectstore", "put object", key, copyErr)
	}
	if closeErr != nil {
		return Info{}, services.Wrap(services.ErrTransient, "objectstore", "put object", key, closeErr)
	}
	if size >= 0 && written != size {
		return Info{}, services.Wrap(services.ErrTransient, "objectstore", "put object",
			fmt.Sprintf("%s: short write %d of %d bytes", key, written, size), nil)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return Info{}, services.Wrap(services.ErrTransient, "objectstore", "put object", key, err)
	}
	info, err := s.statFile(key, path)
	if err != nil {
		return Info{}, err
	}
	if contentType != "" {
		info.ContentType = contentType
	}
	info.ETag = hex.EncodeToString(hash.Sum(nil))
	return info, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrTransient, "objectstore", "remove object", key, err)
	}
	return nil
}

func (s *LocalStore) Stat(ctx context.Context, key string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	path, err := s.path(key)
	if err != nil {
		return Info{}, err
	}
	return s.statFile(key, path)
}

func (s *LocalStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.root)
	if err != nil {
		return mapLocalError("ping", s.root, err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "objectstore", "ping", fmt.Sprintf("%s is not a directory", s.root), nil)
	}
	return nil
}

func (s *LocalStore) statFile(key, path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, mapLocalError("stat object", key, err)
	}
	if st.IsDir() {
		return Info{}, services.Wrap(services.ErrNotFound, "objectstore", "stat object", key+" is a prefix, not an object", nil)
	}
	return Info{
		Key:          key,
		Size:         st.Size(),
		ContentType:  mime.TypeByExtension(filepath.Ext(path)),
		LastModified: st.ModTime().UTC(),
	}, nil
}

func mapLocalError(op, key string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrNotFound, "objectstore", op, key, err)
	}
	if errors.Is(err, os.ErrPermission) {
		return services.Wrap(services.ErrConfiguration, "objectstore", op, key, err)
	}
	return services.Wrap(services.ErrTransient, "objectstore", op, key, err)
}
