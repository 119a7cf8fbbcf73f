package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-image-forensics/internal/analyzer"
	apperrors "go-image-forensics/internal/errors"
	"go-image-forensics/internal/observer"
	"go-image-forensics/internal/repository"
)

type stubRepo struct {
	data []byte
	err  error
}

func (r *stubRepo) FetchImage(context.Context, string) ([]byte, error) { return r.data, r.err }

func (r *stubRepo) ValidateImageURL(ref string) error {
	if ref == "" || ref == "ftp://example.com/a.png" {
		return repository.ErrInvalidImageURL
	}
	return nil
}

// slowAnalyzer blocks until released
type slowAnalyzer struct {
	release chan struct{}
}

func (s *slowAnalyzer) Analyze([]byte) (*analyzer.AnalysisResult, error) {
	<-s.release
	return nil, fmt.Errorf("released")
}
func (s *slowAnalyzer) Options() analyzer.AnalysisOptions { return analyzer.DefaultOptions() }
func (s *slowAnalyzer) Close() error                      { return nil }

type recordingObserver struct {
	mu     sync.Mutex
	events []observer.AnalysisEvent
}

func (r *recordingObserver) OnEvent(_ context.Context, e observer.AnalysisEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver) GetObserverName() string { return "recording" }

func (r *recordingObserver) types() map[observer.EventType]observer.AnalysisEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[observer.EventType]observer.AnalysisEvent)
	for _, e := range r.events {
		out[e.EventType] = e
	}
	return out
}

func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestService(t *testing.T, repo repository.ImageRepository, a analyzer.ImageAnalyzer) (ForensicsService, *recordingObserver, observer.Subject) {
	t.Helper()
	if a == nil {
		var err error
		a, err = analyzer.NewImageAnalyzer(analyzer.SequentialOptions())
		require.NoError(t, err)
		t.Cleanup(func() { _ = a.Close() })
	}
	rec := &recordingObserver{}
	events := observer.NewEventPublisher()
	events.Subscribe(rec)
	svc := NewForensicsService(repo, a, events, Timeouts{Fetch: time.Second, Analysis: 5 * time.Second})
	return svc, rec, events
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return apperrors.GetStatusCode(err)
}

func TestAnalyzeUpload_Success(t *testing.T) {
	svc, rec, events := newTestService(t, &stubRepo{}, nil)

	resp, err := svc.AnalyzeUpload(context.Background(), "req-1", noisePNG(t, 32, 32), "image/png")
	require.NoError(t, err)
	events.Wait()

	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, SourceUpload, resp.Source)
	assert.Equal(t, 32, resp.ImageWidth)
	assert.Equal(t, "png", resp.Format)
	assert.Len(t, resp.Signals, 4)
	assert.GreaterOrEqual(t, resp.TamperingScore, 0.0)
	assert.LessOrEqual(t, resp.TamperingScore, 1.0)
	assert.NotEmpty(t, resp.Explanation)

	seen := rec.types()
	require.Contains(t, seen, observer.AnalysisStarted)
	require.Contains(t, seen, observer.AnalysisCompleted)
	assert.Equal(t, resp.Recommendation, seen[observer.AnalysisCompleted].Recommendation)
	assert.Equal(t, "req-1", seen[observer.AnalysisCompleted].RequestID)
}

func TestAnalyzeUpload_Rejections(t *testing.T) {
	svc, _, _ := newTestService(t, &stubRepo{}, nil)

	tests := []struct {
		name        string
		raw         []byte
		contentType string
		status      int
	}{
		{"not an image content type", []byte("%PDF"), "application/pdf", http.StatusUnsupportedMediaType},
		{"empty file", nil, "image/jpeg", http.StatusBadRequest},
		{"undecodable bytes", []byte("definitely not pixels"), "image/jpeg", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.AnalyzeUpload(context.Background(), "req", tt.raw, tt.contentType)
			assert.Nil(t, resp)
			assert.Equal(t, tt.status, statusOf(t, err))
		})
	}
}

func TestAnalyzeUpload_DecodeFailureIsReported(t *testing.T) {
	svc, rec, events := newTestService(t, &stubRepo{}, nil)

	_, err := svc.AnalyzeUpload(context.Background(), "req-9", []byte("garbage"), "")
	events.Wait()

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "unreadable image", appErr.Message)
	assert.Contains(t, appErr.Details, "unreadable image")
	assert.Contains(t, rec.types(), observer.AnalysisFailed)
}

func TestAnalyzeURL(t *testing.T) {
	svc, rec, events := newTestService(t, &stubRepo{data: noisePNG(t, 24, 24)}, nil)

	resp, err := svc.AnalyzeURL(context.Background(), "req-2", "https://example.com/a.png")
	require.NoError(t, err)
	events.Wait()

	assert.Equal(t, SourceURL, resp.Source)
	assert.Equal(t, 24, resp.ImageHeight)
	assert.Contains(t, rec.types(), observer.ImageFetched)
}

func TestAnalyzeURL_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		ref    string
		err    error
		status int
	}{
		{"invalid url", "ftp://example.com/a.png", nil, http.StatusBadRequest},
		{"not found", "https://example.com/a.png", fmt.Errorf("%w: 404", repository.ErrImageNotFound), http.StatusNotFound},
		{"too large", "https://example.com/a.png", repository.ErrImageTooLarge, http.StatusRequestEntityTooLarge},
		{"upstream down", "https://example.com/a.png", repository.ErrRepositoryUnavailable, http.StatusBadGateway},
		{"fetch deadline", "https://example.com/a.png", context.DeadlineExceeded, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t, &stubRepo{err: tt.err}, nil)
			_, err := svc.AnalyzeURL(context.Background(), "req", tt.ref)
			assert.Equal(t, tt.status, statusOf(t, err))
		})
	}
}

func TestAnalyze_Timeout(t *testing.T) {
	slow := &slowAnalyzer{release: make(chan struct{})}
	defer close(slow.release)

	rec := &recordingObserver{}
	events := observer.NewEventPublisher()
	events.Subscribe(rec)
	svc := NewForensicsService(&stubRepo{}, slow, events, Timeouts{Analysis: 20 * time.Millisecond})

	_, err := svc.AnalyzeUpload(context.Background(), "req-3", []byte{1, 2, 3}, "image/png")
	events.Wait()

	assert.Equal(t, http.StatusGatewayTimeout, statusOf(t, err))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout))
	assert.Contains(t, rec.types(), observer.AnalysisFailed)
}

func TestMapAnalysisError_PixelLimit(t *testing.T) {
	opts := analyzer.SequentialOptions()
	opts.MaxPixels = 100
	a, err := analyzer.NewImageAnalyzer(opts)
	require.NoError(t, err)
	defer a.Close()

	svc, _, _ := newTestService(t, &stubRepo{}, a)
	_, err = svc.AnalyzeUpload(context.Background(), "req", noisePNG(t, 20, 20), "image/png")
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusOf(t, err))
}

func TestWait_DrainsAbandonedAnalyses(t *testing.T) {
	slow := &slowAnalyzer{release: make(chan struct{})}
	svc := NewForensicsService(&stubRepo{}, slow, nil, Timeouts{Analysis: 20 * time.Millisecond})

	_, err := svc.AnalyzeUpload(context.Background(), "req-4", []byte{1, 2, 3}, "image/png")
	assert.Equal(t, http.StatusGatewayTimeout, statusOf(t, err))

	drained := make(chan struct{})
	go func() {
		svc.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		t.Fatal("Wait returned while the analyzer was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(slow.release)
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the analyzer finished")
	}
}

func TestAnalyze_ConcurrencyLimit(t *testing.T) {
	slow := &slowAnalyzer{release: make(chan struct{})}
	svc := NewForensicsService(&stubRepo{}, slow, nil, Timeouts{Analysis: 20 * time.Millisecond}, WithConcurrencyLimit(1))

	// the abandoned run keeps its slot until the analyzer returns
	_, err := svc.AnalyzeUpload(context.Background(), "first", []byte{1}, "image/png")
	assert.Equal(t, http.StatusGatewayTimeout, statusOf(t, err))

	_, err = svc.AnalyzeUpload(context.Background(), "second", []byte{1}, "image/png")
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, err))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))

	close(slow.release)
	svc.Wait()

	// slot is free again; the analyzer itself now fails
	_, err = svc.AnalyzeUpload(context.Background(), "third", []byte{1}, "image/png")
	assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
}

func TestAnalyze_ClosedAnalyzerIsUnavailable(t *testing.T) {
	a, err := analyzer.NewImageAnalyzer(analyzer.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, a.Close())

	svc, _, _ := newTestService(t, &stubRepo{}, a)
	_, err = svc.AnalyzeUpload(context.Background(), "req", noisePNG(t, 16, 16), "image/png")
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, err))
}
