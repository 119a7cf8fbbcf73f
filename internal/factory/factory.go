package factory

import (
	"fmt"
	"time"

	"go-image-forensics/internal/analyzer"
	"go-image-forensics/internal/storage"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// SignalConstructor builds one signal analyzer from the scoring policy
type SignalConstructor func(opts analyzer.AnalysisOptions) analyzer.SignalAnalyzer

// AnalyzerFactory creates image analyzers from named signal sets
type AnalyzerFactory interface {
	// CreateAnalyzer builds an analyzer over the named signals; no names means all registered signals
	CreateAnalyzer(opts analyzer.AnalysisOptions, signals ...analyzer.SignalName) (analyzer.ImageAnalyzer, error)
	// Register adds or replaces a signal constructor
	Register(name analyzer.SignalName, build SignalConstructor)
	Signals() []analyzer.SignalName
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
	CreateBlobStorage(accountName, accountKey string) (storage.BlobStorage, error)
}

// analyzerFactory implements AnalyzerFactory
type analyzerFactory struct {
	order        []analyzer.SignalName
	constructors map[analyzer.SignalName]SignalConstructor
}

// NewAnalyzerFactory creates a factory with the four built-in signals registered
func NewAnalyzerFactory() AnalyzerFactory {
	f := &analyzerFactory{constructors: make(map[analyzer.SignalName]SignalConstructor)}
	f.Register(analyzer.SignalMetadata, func(o analyzer.AnalysisOptions) analyzer.SignalAnalyzer {
		return analyzer.NewMetadataInspector(o)
	})
	f.Register(analyzer.SignalELA, func(o analyzer.AnalysisOptions) analyzer.SignalAnalyzer {
		return analyzer.NewRecompressionAnalyzer(o)
	})
	f.Register(analyzer.SignalTexture, func(o analyzer.AnalysisOptions) analyzer.SignalAnalyzer {
		return analyzer.NewTextureAnalyzer(o)
	})
	f.Register(analyzer.SignalChannelCorrelation, func(o analyzer.AnalysisOptions) analyzer.SignalAnalyzer {
		return analyzer.NewChannelCorrelationAnalyzer(o)
	})
	return f
}

func (f *analyzerFactory) Register(name analyzer.SignalName, build SignalConstructor) {
	if _, ok := f.constructors[name]; !ok {
		f.order = append(f.order, name)
	}
	f.constructors[name] = build
}

func (f *analyzerFactory) Signals() []analyzer.SignalName {
	return append([]analyzer.SignalName(nil), f.order...)
}

// CreateAnalyzer creates an analyzer over the requested signals. Signals left
// out are scored as degraded by the aggregator.
func (f *analyzerFactory) CreateAnalyzer(opts analyzer.AnalysisOptions, signals ...analyzer.SignalName) (analyzer.ImageAnalyzer, error) {
	if len(signals) == 0 {
		signals = f.order
	}

	seen := make(map[analyzer.SignalName]bool, len(signals))
	analyzers := make([]analyzer.SignalAnalyzer, 0, len(signals))
	for _, name := range signals {
		build, ok := f.constructors[name]
		if !ok {
			return nil, fmt.Errorf("unsupported signal: %s", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		analyzers = append(analyzers, build(opts))
	}
	return analyzer.NewImageAnalyzer(opts, analyzers...)
}

// storageFactory implements StorageFactory
type storageFactory struct {
	fetchTimeout time.Duration
	maxBytes     int64
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(fetchTimeout time.Duration, maxBytes int64) StorageFactory {
	return &storageFactory{fetchTimeout: fetchTimeout, maxBytes: maxBytes}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPImageFetcher(f.fetchTimeout, f.maxBytes), nil
	case LocalStorage:
		return storage.NewFileImageFetcher(f.maxBytes), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// CreateBlobStorage creates the Azure Blob Storage backend
func (f *storageFactory) CreateBlobStorage(accountName, accountKey string) (storage.BlobStorage, error) {
	return storage.NewAzureStorage(accountName, accountKey, f.maxBytes)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory AnalyzerFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(fetchTimeout time.Duration, maxBytes int64) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory: NewAnalyzerFactory(),
		StorageFactory:  NewStorageFactory(fetchTimeout, maxBytes),
	}
}
