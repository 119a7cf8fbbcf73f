package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"go-image-forensics/internal/config"
	apperrors "go-image-forensics/internal/errors"
	"go-image-forensics/internal/logger"
	"go-image-forensics/internal/service"
	"go-image-forensics/pkg/models"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	uploadField     = "image"
	maxRequestIDLen = 128
	version         = "1.0.0"
)

type handler struct {
	svc service.ForensicsService
	cfg *config.Config
}

// NewHandler builds the HTTP API. gatherer backs /metrics and may be nil.
func NewHandler(svc service.ForensicsService, cfg *config.Config, gatherer prometheus.Gatherer) http.Handler {
	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxRequestBodySize

	r.Use(gin.Recovery(), requestID())
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(corsPolicy(cfg.CORSAllowedOrigins))
	}
	r.Use(
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	h := &handler{svc: svc, cfg: cfg}

	r.GET("/health", healthCheck)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	r.POST("/analyze", h.analyzeUpload)
	r.POST("/analyze/url", h.analyzeURL)

	return r
}

func (h *handler) analyzeUpload(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	file, err := c.FormFile(uploadField)
	if err != nil {
		if isBodyTooLarge(err) {
			respondError(c, apperrors.NewPayloadTooLargeError("request body too large", err))
			return
		}
		respondError(c, apperrors.NewValidationError(fmt.Sprintf("multipart field %q is required", uploadField), err))
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, apperrors.NewValidationError("unable to open uploaded file", err))
		return
	}
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		respondError(c, apperrors.NewInternalError("failed to read uploaded file", err))
		return
	}

	resp, err := h.svc.AnalyzeUpload(ctx, requestIDFrom(c), raw, file.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) analyzeURL(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	var req models.AnalyzeURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isBodyTooLarge(err) {
			respondError(c, apperrors.NewPayloadTooLargeError("request body too large", err))
			return
		}
		respondError(c, apperrors.NewValidationError("invalid request format", err))
		return
	}

	resp, err := h.svc.AnalyzeURL(ctx, requestIDFrom(c), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "available",
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions

// corsPolicy answers browser preflights. Credentials are never allowed, so a
// "*" entry is safe to serve as a wildcard.
func corsPolicy(origins []string) gin.HandlerFunc {
	policy := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			policy.AllowAllOrigins = true
		}
	}
	if !policy.AllowAllOrigins {
		policy.AllowOrigins = origins
	}
	return cors.New(policy)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"request_id":  requestIDFrom(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			respondError(c, apperrors.NewPayloadTooLargeError(
				fmt.Sprintf("request body exceeds %d bytes", maxBytes), nil))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, c.Errors.Last().Err)
		}
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func determineStatusCode(err error) int {
	if _, ok := apperrors.As(err); ok {
		return apperrors.GetStatusCode(err)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)

	body := models.ErrorResponse{
		Error:     http.StatusText(code),
		Message:   "request processing failed",
		RequestID: requestIDFrom(c),
	}
	if appErr, ok := apperrors.As(err); ok {
		body.Message = appErr.Message
		body.Details = appErr.Details
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"request_id":  body.RequestID,
		"status_code": code,
		"message":     body.Message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, body)
}
