package local

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"saintplus-client/internal/shared/storage/object"
	"saintplus-client/internal/shared/util"
)

// Store implements ObjectStore on the local filesystem and presigns PUT URLs
// served by the stand-in backend's /storage route.
type Store struct {
	baseDir   string
	publicURL string
	secret    []byte
	now       func() time.Time
}

// New creates a new local object store rooted at baseDir.
func New(baseDir, publicURL string, secret []byte) *Store {
	return &Store{
		baseDir:   baseDir,
		publicURL: strings.TrimRight(publicURL, "/"),
		secret:    secret,
		now:       time.Now,
	}
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

// SaveWithKey writes the reader to disk at a specific storage key.
func (s *Store) SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		return 0, fmt.Errorf("write body: %w", err)
	}
	if contentType != "" {
		_ = os.WriteFile(fullPath+".content-type", []byte(contentType), 0o644)
	}
	return written, nil
}

// Delete removes a stored object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove: %w", err)
	}
	_ = os.Remove(fullPath + ".content-type")
	return nil
}

// Stat reports the stored size and the content type recorded at upload.
func (s *Store) Stat(ctx context.Context, storageKey string) (object.Info, error) {
	if err := ctx.Err(); err != nil {
		return object.Info{}, err
	}
	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return object.Info{}, err
	}
	fi, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		return object.Info{}, object.ErrNotFound
	}
	if err != nil {
		return object.Info{}, fmt.Errorf("stat: %w", err)
	}
	info := object.Info{Size: fi.Size(), ContentType: util.DefaultContentType}
	if raw, err := os.ReadFile(fullPath + ".content-type"); err == nil && len(raw) > 0 {
		info.ContentType = string(raw)
	}
	return info, nil
}

// PresignPut returns a URL carrying an HMAC over key, content type and expiry.
func (s *Store) PresignPut(ctx context.Context, storageKey string, contentType string, expires time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.resolve(storageKey); err != nil {
		return "", err
	}
	exp := s.now().Add(expires).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(exp, 10))
	q.Set("sig", s.sign(storageKey, contentType, exp))
	return s.publicURL + "/storage/" + escapeKey(storageKey) + "?" + q.Encode(), nil
}

// Verify checks a presigned PUT against the content type it was issued for.
func (s *Store) Verify(storageKey, contentType, expires, sig string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expiry")
	}
	if s.now().Unix() > exp {
		return fmt.Errorf("upload url expired")
	}
	want := s.sign(storageKey, contentType, exp)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func (s *Store) sign(storageKey, contentType string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "PUT\n%s\n%s\n%d", storageKey, contentType, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Store) resolve(storageKey string) (string, error) {
	clean := filepath.Clean(strings.TrimLeft(storageKey, "/"))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", object.ErrInvalidKey
	}
	return filepath.Join(s.baseDir, clean), nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var (
	_ object.ObjectStore = (*Store)(nil)
	_ object.Presigner   = (*Store)(nil)
)
