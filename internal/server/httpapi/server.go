// Package httpapi exposes the card store over JSON/HTTP with gin: routing,
// authentication, request logging and metrics.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// CardService is the subset of services.CardService the handlers use.
type CardService interface {
	Create(ctx context.Context, ownerID, content string, cursor int64) (*services.MutationResult, error)
	Update(ctx context.Context, ownerID string, cardID int64, content string, expected, cursor int64) (*services.MutationResult, error)
	Delete(ctx context.Context, ownerID string, cardID, cursor int64) (*services.SyncResult, error)
	Get(ctx context.Context, ownerID string, cardID int64) (*models.Card, error)
	List(ctx context.Context, ownerID string, firstID, lastID int64) ([]*models.Card, error)
	Changes(ctx context.Context, ownerID string, cursor int64) (*services.SyncResult, error)
	History(ctx context.Context, ownerID string, cardID int64) ([]models.ChangeLogEntry, *models.CardState, error)
}

type UserService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

type ExportService interface {
	Export(ctx context.Context, ownerID string) (*services.ExportResult, error)
}

type Server struct {
	address   string
	cards     CardService
	users     UserService
	exports   ExportService
	logger    logging.Logger
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	jwtSecret []byte
}

func NewServer(address string, l logging.Logger, cs CardService, us UserService, es ExportService,
	m *metrics.Metrics, g prometheus.Gatherer, secretKey string) *Server {
	return &Server{
		address:   address,
		cards:     cs,
		users:     us,
		exports:   es,
		logger:    l.With("module", "http_server"),
		metrics:   m,
		gatherer:  g,
		jwtSecret: []byte(secretKey),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog())

	r.GET("/ping", s.ping)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	a := r.Group("/auth")
	a.POST("/register", s.register)
	a.POST("/login", s.login)
	a.POST("/refresh", s.refresh)

	api := r.Group("/", s.authenticate())
	api.POST("/cards", s.createCard)
	api.GET("/cards", s.listCards)
	api.GET("/cards/:cid", s.getCard)
	api.PUT("/cards/:cid", s.updateCard)
	api.DELETE("/cards/:cid", s.deleteCard)
	api.GET("/cards/:cid/history", s.cardHistory)
	api.GET("/changes", s.changes)
	api.POST("/export", s.export)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "err", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}
