package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hashdrop-io/hashdrop/internal/metrics"
	"github.com/hashdrop-io/hashdrop/internal/session"
	"github.com/hashdrop-io/hashdrop/internal/storage"
)

// FileField is the multipart form field carrying the uploaded file.
const FileField = "file-input"

// Client-input failures, surfaced as 400s by the handler.
var (
	ErrNotMultipart  = errors.New("request is not multipart/form-data")
	ErrMissingFile   = errors.New("multipart body has no " + FileField + " field")
	ErrMalformedBody = errors.New("malformed multipart body")
)

// Service ingests streamed multipart uploads: it tracks per-chunk progress
// in the session store while the body arrives and hands the file content to
// the blob store once the body is fully read.
type Service struct {
	sessions *session.Store
	blobs    storage.BlobStore
	stats    *metrics.Collector
}

// NewService creates an upload service. stats may be nil.
func NewService(sessions *session.Store, blobs storage.BlobStore, stats *metrics.Collector) *Service {
	return &Service{
		sessions: sessions,
		blobs:    blobs,
		stats:    stats,
	}
}

// Ingest processes one upload request body and returns the stored path.
//
// The session is registered at progress 0 before the first body read, then
// updated as chunks arrive based on contentLength (the declared request
// length, framing included). Once the body is fully read the file-input
// part is stored by content hash and the session is completed, which forces
// progress to exactly 100 even when the file was small enough that no
// intermediate update fired.
func (s *Service) Ingest(ctx context.Context, uid string, body io.Reader, contentType string, contentLength int64) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		return "", ErrNotMultipart
	}

	startTime := time.Now()
	s.sessions.Create(uid)

	counting := newProgressReader(body, contentLength, func(pct int) {
		s.sessions.SetProgress(uid, pct)
	})
	reader := multipart.NewReader(counting, params["boundary"])

	var fileBytes []byte
	var filename string
	found := false
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.countFailure()
			return "", fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		if !found && part.FormName() == FileField {
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, part); err != nil {
				part.Close()
				s.countFailure()
				return "", fmt.Errorf("%w: %v", ErrMalformedBody, err)
			}
			fileBytes = buf.Bytes()
			filename = part.FileName()
			found = true
		} else {
			// Drain so body byte accounting still covers trailing parts.
			io.Copy(io.Discard, part)
		}
		part.Close()
	}

	if !found {
		s.countFailure()
		return "", ErrMissingFile
	}

	path, err := s.blobs.Store(ctx, fileBytes, filepath.Ext(filename))
	if err != nil {
		s.countFailure()
		return "", fmt.Errorf("store upload: %w", err)
	}

	s.sessions.SetComplete(uid, path)
	if s.stats != nil {
		s.stats.Uploads.Inc()
		s.stats.UploadBytes.Add(float64(len(fileBytes)))
	}

	log.Info().
		Str("uid", uid).
		Str("filename", filename).
		Str("path", path).
		Int("file_bytes", len(fileBytes)).
		Int64("body_bytes", counting.BytesRead()).
		Dur("duration", time.Since(startTime)).
		Msg("upload complete")

	return path, nil
}

func (s *Service) countFailure() {
	if s.stats != nil {
		s.stats.UploadFailures.Inc()
	}
}
