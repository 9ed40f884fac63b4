package object

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"saintplus-client/internal/shared/util"
)

var (
	// ErrInvalidKey is returned for keys that escape the store root.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrNotFound is returned by Stat when nothing is stored under the key.
	ErrNotFound = errors.New("object not found")
)

// Info describes a stored object.
type Info struct {
	ContentType string
	Size        int64
}

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
	Stat(ctx context.Context, storageKey string) (Info, error)
}

// Presigner issues time-limited URLs that accept a single PUT of the object.
type Presigner interface {
	PresignPut(ctx context.Context, storageKey string, contentType string, expires time.Duration) (string, error)
}

// OwnedBy reports whether key lives under userID's namespace.
func OwnedBy(key, userID string) bool {
	return strings.HasPrefix(key, path.Join("transcripts", util.StudentPrefix(userID))+"/")
}

// KeyFor builds a transcript storage key under the user's hashed namespace.
func KeyFor(userID, fileName string) (string, error) {
	name, err := util.CleanFileName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join("transcripts", util.StudentPrefix(userID), uuid.NewString()+"-"+name), nil
}
