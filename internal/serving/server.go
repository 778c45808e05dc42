package serving

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"automl/domain/run"
	"automl/internal"
	"automl/internal/pipeline"
)

// Server answers single-record predictions with the production pipeline.
// The pipeline is swapped atomically on reload; requests in flight keep the
// one they started with.
type Server struct {
	router  *gin.Engine
	loader  *Loader
	logger  *internal.Logger
	metrics http.Handler

	mu      sync.RWMutex
	model   *pipeline.Pipeline
	version run.RegisteredModel

	predictions metric.Int64Counter
	latency     metric.Float64Histogram
}

// Option customises a Server.
type Option func(*Server)

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer builds the router. Call Load before serving traffic; until a
// model is loaded /predict answers 503.
func NewServer(loader *Loader, logger *internal.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router: gin.New(),
		loader: loader,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter("automl/serving")
	s.predictions, _ = meter.Int64Counter("automl.predictions",
		metric.WithDescription("Prediction requests by outcome"),
		metric.WithUnit("1"))
	s.latency, _ = meter.Float64Histogram("automl.prediction.duration",
		metric.WithDescription("Prediction latency"),
		metric.WithUnit("s"))

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("[Serving] %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	})
}

func (s *Server) setupRoutes() {
	s.router.POST("/predict", s.handlePredict)
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/reload", s.handleReload)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Load fetches the production pipeline. On failure the previous model, if
// any, stays in service.
func (s *Server) Load(ctx context.Context) error {
	s.logger.Info("[Serving] Loading model: %s...", s.loader.Name())
	p, rm, err := s.loader.Load(ctx)
	if err != nil {
		s.logger.Error("[Serving] Failed to load model. Predictions will fail. Error: %v", err)
		return err
	}

	s.mu.Lock()
	s.model, s.version = p, rm
	s.mu.Unlock()
	s.logger.Info("[Serving] Model %s version %d (%s) loaded successfully.", rm.Name, rm.Version, p.Architecture)
	return nil
}

func (s *Server) current() (*pipeline.Pipeline, run.RegisteredModel) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model, s.version
}

// Run serves on addr until ctx is cancelled, then drains for up to
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[Serving] Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("[Serving] API Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
