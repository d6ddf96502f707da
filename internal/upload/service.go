package upload

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/support-relay/relay/pkg/util"
)

// DefaultMaxBytes caps a single upload.
const DefaultMaxBytes = 10 * 1024 * 1024

// Storage persists an uploaded object and returns its public URL.
type Storage interface {
	Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) (string, error)
}

// Descriptor is returned to the uploader and embedded in message attachments.
type Descriptor struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	Mime    string `json:"mime"`
	Size    int64  `json:"size"`
	IsImage bool   `json:"isImage"`
	IsText  bool   `json:"isText"`
	IsAudio bool   `json:"isAudio"`
}

// Service stores uploads under collision-free names.
type Service struct {
	storage  Storage
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewService builds the upload service.
func NewService(storage Storage, maxBytes int64, logger *zap.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{storage: storage, maxBytes: maxBytes, logger: logger, now: time.Now}
}

// MaxBytes returns the per-file size limit.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Upload stores the file and describes it. Empty files are accepted.
func (s *Service) Upload(ctx context.Context, filename, mime string, size int64, body io.Reader) (*Descriptor, error) {
	if size < 0 || body == nil {
		return nil, apperrors.NewValidationError("no file", nil)
	}
	if size > s.maxBytes {
		return nil, apperrors.NewValidationError("file too large", map[string]any{"maxBytes": s.maxBytes})
	}

	name := s.storedName(filename)
	url, err := s.storage.Put(ctx, name, io.LimitReader(body, s.maxBytes), size, mime)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("store upload: %w", err))
	}

	class := Classify(mime, filename)
	s.logger.Debug("upload stored", zap.String("name", name), zap.Int64("size", size))
	return &Descriptor{
		URL:     url,
		Name:    filename,
		Mime:    mime,
		Size:    size,
		IsImage: class.IsImage,
		IsText:  class.IsText,
		IsAudio: class.IsAudio,
	}, nil
}

func (s *Service) storedName(filename string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), id, storedExt(filename))
}
