package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"go-image-forensics/internal/analyzer"
	apperrors "go-image-forensics/internal/errors"
	"go-image-forensics/internal/observer"
	"go-image-forensics/internal/repository"
	"go-image-forensics/pkg/models"
	"go-image-forensics/pkg/services"
	"go-image-forensics/pkg/validation"
)

const (
	SourceUpload = "upload"
	SourceURL    = "url"
)

// ForensicsService scores uploaded or remotely held images for tampering
type ForensicsService interface {
	AnalyzeUpload(ctx context.Context, requestID string, raw []byte, contentType string) (*models.ForensicsResponse, error)
	AnalyzeURL(ctx context.Context, requestID string, ref string) (*models.ForensicsResponse, error)
	ValidateImageURL(ref string) error
	// Wait blocks until every analysis started so far has finished, including
	// runs whose caller already gave up on a timeout
	Wait()
}

// Timeouts bounds the remote fetch and the analysis run separately
type Timeouts struct {
	Fetch    time.Duration
	Analysis time.Duration
}

// Option configures the service
type Option func(*forensicsService)

// WithConcurrencyLimit caps how many analyses run at once. Callers beyond the
// limit queue until a slot frees or their analysis timeout expires.
func WithConcurrencyLimit(n int) Option {
	return func(s *forensicsService) {
		if n > 0 {
			s.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

type forensicsService struct {
	imageRepo repository.ImageRepository
	analyzer  analyzer.ImageAnalyzer
	validator *validation.ImageValidator
	events    observer.Subject
	timeouts  Timeouts
	slots     *semaphore.Weighted
	inflight  sync.WaitGroup
}

// NewForensicsService creates the service. events may be nil.
func NewForensicsService(
	imageRepository repository.ImageRepository,
	imageAnalyzer analyzer.ImageAnalyzer,
	events observer.Subject,
	timeouts Timeouts,
	opts ...Option,
) ForensicsService {
	if events == nil {
		events = observer.NewEventPublisher()
	}
	s := &forensicsService{
		imageRepo: imageRepository,
		analyzer:  imageAnalyzer,
		validator: validation.NewImageValidator(imageAnalyzer.Options().MaxPixels),
		events:    events,
		timeouts:  timeouts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *forensicsService) AnalyzeUpload(ctx context.Context, requestID string, raw []byte, contentType string) (*models.ForensicsResponse, error) {
	if err := s.validator.ValidateContentType(contentType); err != nil {
		return nil, apperrors.NewUnsupportedMediaError("uploaded file is not an image", err)
	}
	if err := s.validator.ValidatePayload(raw); err != nil {
		return nil, apperrors.NewValidationError("uploaded file is empty", err)
	}
	return s.analyze(ctx, requestID, SourceUpload, "", raw)
}

func (s *forensicsService) AnalyzeURL(ctx context.Context, requestID string, ref string) (*models.ForensicsResponse, error) {
	if err := s.ValidateImageURL(ref); err != nil {
		return nil, apperrors.NewValidationError("invalid image URL", err)
	}

	fetchCtx := ctx
	if s.timeouts.Fetch > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.timeouts.Fetch)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.imageRepo.FetchImage(fetchCtx, ref)
	if err != nil {
		appErr := mapFetchError(err)
		s.events.NotifyObservers(ctx, observer.AnalysisEvent{
			EventType:      observer.ImageFetchFailed,
			RequestID:      requestID,
			Source:         SourceURL,
			ImageURL:       ref,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, appErr
	}
	s.events.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType:      observer.ImageFetched,
		RequestID:      requestID,
		Source:         SourceURL,
		ImageURL:       ref,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata:       map[string]interface{}{"bytes": len(raw)},
	})

	return s.analyze(ctx, requestID, SourceURL, ref, raw)
}

func (s *forensicsService) ValidateImageURL(ref string) error {
	return s.imageRepo.ValidateImageURL(ref)
}

func (s *forensicsService) Wait() {
	s.inflight.Wait()
}

type analysisOutcome struct {
	result *analyzer.AnalysisResult
	err    error
}

// analyze runs the analyzer under the analysis timeout. The analyzer itself is
// not interruptible; on timeout its result is discarded.
func (s *forensicsService) analyze(ctx context.Context, requestID, source, ref string, raw []byte) (*models.ForensicsResponse, error) {
	start := time.Now()
	s.events.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType: observer.AnalysisStarted,
		RequestID: requestID,
		Source:    source,
		ImageURL:  ref,
		Metadata:  map[string]interface{}{"bytes": len(raw)},
	})

	if s.timeouts.Analysis > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Analysis)
		defer cancel()
	}

	var outcome analysisOutcome
	if err := s.acquire(ctx); err != nil {
		outcome.err = err
	} else {
		done := make(chan analysisOutcome, 1)
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			defer s.release()
			result, err := s.analyzer.Analyze(raw)
			done <- analysisOutcome{result: result, err: err}
		}()

		select {
		case outcome = <-done:
		case <-ctx.Done():
			outcome.err = ctx.Err()
		}
	}

	if outcome.err != nil {
		appErr := mapAnalysisError(outcome.err)
		s.events.NotifyObservers(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisFailed,
			RequestID:      requestID,
			Source:         source,
			ImageURL:       ref,
			ProcessingTime: time.Since(start),
			ErrorMessage:   outcome.err.Error(),
		})
		return nil, appErr
	}

	resp := services.NewForensicsResponse(requestID, source, outcome.result, s.analyzer.Options())
	s.events.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType:       observer.AnalysisCompleted,
		RequestID:       requestID,
		Source:          source,
		ImageURL:        ref,
		ProcessingTime:  time.Since(start),
		Success:         true,
		Score:           outcome.result.Score,
		Recommendation:  resp.Recommendation,
		DegradedSignals: resp.DegradedSignals,
	})
	return resp, nil
}

// acquire takes an analysis slot. The slot is held until the analyzer
// returns, not until the caller stops waiting.
func (s *forensicsService) acquire(ctx context.Context) error {
	if s.slots == nil {
		return nil
	}
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", errAtCapacity, err)
	}
	return nil
}

func (s *forensicsService) release() {
	if s.slots != nil {
		s.slots.Release(1)
	}
}

var errAtCapacity = errors.New("all analysis slots busy")

func mapAnalysisError(err error) error {
	var decodeErr *analyzer.DecodeError
	switch {
	case errors.Is(err, errAtCapacity):
		return apperrors.NewUnavailableError("analysis capacity exhausted, retry later", err)
	case errors.Is(err, analyzer.ErrAnalyzerClosed):
		return apperrors.NewUnavailableError("service is shutting down", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("analysis timed out", err)
	case errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError("analysis cancelled", err)
	case errors.Is(err, validation.ErrTooManyPixels):
		return apperrors.NewPayloadTooLargeError("image dimensions exceed the pixel limit", err).WithDetails(err.Error())
	case errors.Is(err, validation.ErrEmptyPayload):
		return apperrors.NewValidationError("image is empty", err)
	case errors.As(err, &decodeErr):
		return apperrors.NewProcessingError("unreadable image", err).WithDetails(err.Error())
	default:
		return apperrors.NewInternalError("analysis failed", err)
	}
}

func mapFetchError(err error) error {
	switch {
	case errors.Is(err, repository.ErrInvalidImageURL):
		return apperrors.NewValidationError("invalid image URL", err)
	case errors.Is(err, repository.ErrImageNotFound):
		return apperrors.NewNotFoundError("image not found", err)
	case errors.Is(err, repository.ErrImageTooLarge):
		return apperrors.NewPayloadTooLargeError("image exceeds size limit", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("image fetch timed out", err)
	default:
		return apperrors.NewNetworkError("failed to fetch image", err)
	}
}
