package container

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"go-image-forensics/internal/analyzer"
	"go-image-forensics/internal/config"
	"go-image-forensics/internal/factory"
	"go-image-forensics/internal/logger"
	"go-image-forensics/internal/observer"
	"go-image-forensics/internal/repository"
	"go-image-forensics/internal/service"
	"go-image-forensics/internal/storage"
	"go-image-forensics/internal/transport"
	"go-image-forensics/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config           *config.Config
	registry         *prometheus.Registry
	events           observer.Subject
	imageFetcher     storage.ImageFetcher
	blobStorage      storage.BlobStorage
	imageAnalyzer    analyzer.ImageAnalyzer
	imageRepository  repository.ImageRepository
	forensicsService service.ForensicsService
	handler          http.Handler
}

// NewContainer wires the service graph from cfg
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := observer.NewMetricsObserver(registry)
	if err != nil {
		return nil, err
	}
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	components := factory.NewComponentFactory(cfg.ImageFetchTimeout, cfg.MaxRequestBodySize)

	imageFetcher, err := components.StorageFactory.CreateStorage(factory.HTTPStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to create image fetcher: %w", err)
	}

	var blobStorage storage.BlobStorage
	if cfg.BlobStorageEnabled() {
		blobStorage, err = components.StorageFactory.CreateBlobStorage(cfg.AzureStorageAccount, cfg.AzureStorageKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob storage: %w", err)
		}
		logger.WithField("account", cfg.AzureStorageAccount).Info("Blob storage references enabled")
	}

	validator := validation.NewURLValidatorWithOptions([]string{"http", "https"}, cfg.AllowedImageHosts)
	imageRepository := repository.NewImageRepository(imageFetcher, blobStorage, validator)

	imageAnalyzer, err := components.AnalyzerFactory.CreateAnalyzer(cfg.Analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	forensicsService := service.NewForensicsService(imageRepository, imageAnalyzer, events, service.Timeouts{
		Fetch:    cfg.ImageFetchTimeout,
		Analysis: cfg.AnalysisTimeout,
	}, service.WithConcurrencyLimit(cfg.MaxConcurrentAnalyses))
	handler := transport.NewHandler(forensicsService, cfg, registry)

	return &Container{
		config:           cfg,
		registry:         registry,
		events:           events,
		imageFetcher:     imageFetcher,
		blobStorage:      blobStorage,
		imageAnalyzer:    imageAnalyzer,
		imageRepository:  imageRepository,
		forensicsService: forensicsService,
		handler:          handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Events returns the analysis event publisher
func (c *Container) Events() observer.Subject {
	return c.events
}

// Service returns the forensics service
func (c *Container) Service() service.ForensicsService {
	return c.forensicsService
}

// Close waits for running analyses, drains pending events and stops the
// analyzer's workers. Analyses submitted afterwards fail as unavailable.
func (c *Container) Close() error {
	c.forensicsService.Wait()
	c.events.Wait()
	return c.imageAnalyzer.Close()
}
