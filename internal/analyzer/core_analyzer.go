package analyzer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go-image-forensics/internal/logger"
	"go-image-forensics/pkg/validation"

	"github.com/sirupsen/logrus"
)

// ErrAnalyzerClosed is returned by Analyze once Close has been called
var ErrAnalyzerClosed = errors.New("analyzer is closed")

// coreAnalyzer implements ImageAnalyzer: decode once, extract every signal, aggregate
type coreAnalyzer struct {
	opts       AnalysisOptions
	signals    []SignalAnalyzer
	aggregator *Aggregator
	validator  *validation.ImageValidator
	workerPool *WorkerPool

	// mu is held for reading by every running analysis; Close takes it for
	// writing so the pool is never closed under an active batch.
	mu     sync.RWMutex
	closed bool
}

// DefaultSignalAnalyzers returns the four core analyzers in scoring order
func DefaultSignalAnalyzers(opts AnalysisOptions) []SignalAnalyzer {
	return []SignalAnalyzer{
		NewMetadataInspector(opts),
		NewRecompressionAnalyzer(opts),
		NewTextureAnalyzer(opts),
		NewChannelCorrelationAnalyzer(opts),
	}
}

// NewImageAnalyzer creates the pipeline. With no signals given, the four core
// analyzers are used.
func NewImageAnalyzer(opts AnalysisOptions, signals ...SignalAnalyzer) (ImageAnalyzer, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis options: %w", err)
	}
	if len(signals) == 0 {
		signals = DefaultSignalAnalyzers(opts)
	}

	ca := &coreAnalyzer{
		opts:       opts,
		signals:    signals,
		aggregator: NewAggregator(opts),
		validator:  validation.NewImageValidator(opts.MaxPixels),
	}
	if opts.UseWorkerPool {
		ca.workerPool = NewWorkerPool(opts.MaxWorkers)
		ca.workerPool.Start()
	}
	return ca, nil
}

func (ca *coreAnalyzer) Options() AnalysisOptions {
	return ca.opts
}

// Analyze decodes raw and scores it
func (ca *coreAnalyzer) Analyze(raw []byte) (*AnalysisResult, error) {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	if ca.closed {
		return nil, ErrAnalyzerClosed
	}

	start := time.Now()

	in, err := DecodeInput(raw, ca.validator)
	if err != nil {
		return nil, err
	}

	aggregate := ca.aggregator.Aggregate(ca.extractSignals(in))

	return &AnalysisResult{
		AggregateResult:   aggregate,
		Width:             in.Width(),
		Height:            in.Height(),
		Format:            in.Format,
		Timestamp:         start,
		ProcessingTimeSec: time.Since(start).Seconds(),
	}, nil
}

// extractSignals runs every analyzer. Each writes only its own slot, so the
// parallel and sequential paths produce identical results.
func (ca *coreAnalyzer) extractSignals(in *Input) []SignalResult {
	results := make([]SignalResult, len(ca.signals))

	if ca.workerPool == nil {
		for i, s := range ca.signals {
			results[i] = ca.runSignal(s, in)
		}
		return results
	}

	jobs := make([]func(), len(ca.signals))
	for i, s := range ca.signals {
		i, s := i, s
		jobs[i] = func() { results[i] = ca.runSignal(s, in) }
	}
	ca.workerPool.Run(jobs...)
	return results
}

// runSignal never fails: errors and panics become a degraded result
func (ca *coreAnalyzer) runSignal(s SignalAnalyzer, in *Input) (res SignalResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("analyzer panicked: %v", r)
			logger.WithFields(logrus.Fields{
				"signal": s.Name(),
				"width":  in.Width(),
				"height": in.Height(),
			}).WithError(err).Error("Signal analyzer panicked; using maximum suspicion")
			res = s.Degrade(err)
		}
	}()

	var err error
	res, err = s.Analyze(in)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"signal": s.Name(),
			"width":  in.Width(),
			"height": in.Height(),
		}).WithError(err).Warn("Signal analyzer degraded; using maximum suspicion")
		return s.Degrade(err)
	}
	res.Name = s.Name()
	return res
}

// Close waits for running analyses, then releases the worker pool. Later
// calls to Analyze return ErrAnalyzerClosed.
func (ca *coreAnalyzer) Close() error {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	if ca.closed {
		return nil
	}
	ca.closed = true
	if ca.workerPool != nil {
		ca.workerPool.Close()
	}
	return nil
}
