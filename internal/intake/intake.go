package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// AcceptedExtensions lists the audio and video containers the dashboard
// accepts for transcription.
var AcceptedExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".mp4", ".avi", ".mov"}

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyName       = errors.New("file name is required")
)

// ObjectWriter stores uploaded audio
type ObjectWriter interface {
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// Audio describes an accepted upload
type Audio struct {
	Name      string
	Size      int64
	Hash      string
	ObjectKey string
}

// Intake validates uploads and streams them to object storage
type Intake struct {
	objects ObjectWriter
}

// NewIntake creates an intake. A nil writer hashes and sizes uploads
// without keeping their bytes.
func NewIntake(objects ObjectWriter) *Intake {
	return &Intake{objects: objects}
}

// Check returns an error when name cannot be accepted
func Check(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, accepted := range AcceptedExtensions {
		if ext == accepted {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedType, name)
}

// ObjectKey returns where the audio for jobID is stored
func ObjectKey(jobID, name string) string {
	return path.Join("audio", jobID, filepath.Base(name))
}

// Store reads one upload to the end, hashing it on the way
func (in *Intake) Store(ctx context.Context, jobID, name string, r io.Reader, size int64) (*Audio, error) {
	if err := Check(name); err != nil {
		return nil, err
	}

	hasher := sha256.New()
	counter := &countingReader{r: io.TeeReader(r, hasher)}
	var key string

	if in.objects != nil {
		key = ObjectKey(jobID, name)
		if err := in.objects.PutObject(ctx, key, counter, size, contentType(name)); err != nil {
			return nil, fmt.Errorf("failed to store audio: %w", err)
		}
	} else if _, err := io.Copy(io.Discard, counter); err != nil {
		return nil, fmt.Errorf("error reading upload: %w", err)
	}

	return &Audio{
		Name:      name,
		Size:      counter.n,
		Hash:      hex.EncodeToString(hasher.Sum(nil)),
		ObjectKey: key,
	}, nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".mp4":
		return "video/mp4"
	case ".avi":
		return "video/x-msvideo"
	case ".mov":
		return "video/quicktime"
	}
	return "application/octet-stream"
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
