package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"keyward/internal/config"
	"keyward/internal/domain"
	"keyward/internal/infra/beacon"
	"keyward/internal/infra/crypto"
	"keyward/internal/infra/custodymem"
	"keyward/internal/infra/db"
	"keyward/internal/infra/metrics"
	"keyward/internal/infra/policyopa"
	"keyward/internal/infra/ratelimit"
	"keyward/internal/infra/threshold"
	"keyward/internal/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	storageModeDB     = "db"
	storageModeMemory = "memory"
)

type Server struct {
	cfg     config.Config
	r       *gin.Engine
	log     *zap.Logger
	metrics *metrics.Metrics
	mode    string
	closers []func() error

	signDigest  *usecase.SignDigest
	signMessage *usecase.SignMessage
	publicKeys  *usecase.PublicKeyQuery
	issuance    *usecase.KeyIssuance
	external    *usecase.ExternalSigning

	identityHeader string

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

// NewServer wires the production dependencies: postgres custody when the
// store has a DB and memory custody otherwise.
func NewServer(ctx context.Context, cfg config.Config, store *db.Store, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	alg, err := domain.ParseHashAlgorithm(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	var custody usecase.KeyCustodyStore
	mode := storageModeMemory
	if store != nil && store.DB != nil {
		custody = db.NewCustodyStore(store.DB)
		mode = storageModeDB
	} else {
		custody = custodymem.NewStore()
	}

	policy, err := newPolicyEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var rnd usecase.RandomBeacon = beacon.NewLocal()
	if cfg.BeaconURL != "" {
		rnd = beacon.New(cfg.BeaconURL, cfg.ExternalTimeout())
	}
	var remote usecase.ThresholdSigner
	if cfg.ThresholdURL != "" {
		remote = threshold.New(cfg.ThresholdURL, cfg.ExternalTimeout())
	}

	deps := ServerDeps{
		Logger:      log,
		Metrics:     metrics.New(),
		StorageMode: mode,
	}
	cryptoSvc := crypto.NewService()
	deps.SignDigest = &usecase.SignDigest{
		Store:        custody,
		Crypto:       cryptoSvc,
		Policy:       policy,
		Algorithm:    alg,
		AllowRawKeys: cfg.AllowRawKeys,
		Logger:       log.Named("sign"),
	}
	deps.SignMessage = &usecase.SignMessage{Digest: deps.SignDigest}
	deps.PublicKeys = &usecase.PublicKeyQuery{Store: custody, Crypto: cryptoSvc}
	deps.Issuance = &usecase.KeyIssuance{
		Store:  custody,
		Beacon: rnd,
		Crypto: cryptoSvc,
		Logger: log.Named("issuance"),
	}
	deps.External = &usecase.ExternalSigning{
		Threshold: remote,
		Crypto:    cryptoSvc,
		Policy:    policy,
		KeyName:   cfg.ThresholdKeyName,
		Timeout:   cfg.ExternalTimeout(),
		Algorithm: alg,
		Logger:    log.Named("external"),
	}

	var closers []func() error
	if cfg.RateLimitRequests > 0 {
		limiter, closeFn, err := ratelimit.FromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("init rate limiter: %w", err)
		}
		deps.RateLimiter = limiter
		closers = append(closers, closeFn)
	}

	s := NewServerWithDeps(cfg, deps)
	s.closers = closers
	log.Info("server configured",
		zap.String("storage", mode),
		zap.String("algorithm", string(alg)),
		zap.Bool("allow_raw_keys", cfg.AllowRawKeys),
		zap.Bool("external_signing", remote != nil),
		zap.Bool("remote_beacon", cfg.BeaconURL != ""),
		zap.Int("rate_limit_requests", cfg.RateLimitRequests),
	)
	return s, nil
}

func newPolicyEngine(ctx context.Context, cfg config.Config) (*policyopa.Engine, error) {
	if cfg.PolicyPath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(ctx, cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("load policy bundle %s: %w", cfg.PolicyPath, err)
		}
		return engine, nil
	}
	return policyopa.NewEngine(ctx)
}

type ServerDeps struct {
	SignDigest  *usecase.SignDigest
	SignMessage *usecase.SignMessage
	PublicKeys  *usecase.PublicKeyQuery
	Issuance    *usecase.KeyIssuance
	External    *usecase.ExternalSigning
	RateLimiter domain.RateLimiter
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	StorageMode string
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	mode := deps.StorageMode
	if mode == "" {
		mode = storageModeMemory
	}
	header := cfg.IdentityHeader
	if header == "" {
		header = "X-Caller-Identity"
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		cfg:                 cfg,
		r:                   r,
		log:                 log,
		metrics:             m,
		mode:                mode,
		signDigest:          deps.SignDigest,
		signMessage:         deps.SignMessage,
		publicKeys:          deps.PublicKeys,
		issuance:            deps.Issuance,
		external:            deps.External,
		identityHeader:      header,
		rateLimiter:         deps.RateLimiter,
		rateLimitRequests:   cfg.RateLimitRequests,
		rateLimitWindow:     cfg.RateLimitWindow(),
		rateLimitFailClosed: cfg.RateLimitFailClosed,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": s.mode})
	})
	s.r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.r.POST("/rpc", s.handleRPC)
	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) Close() error {
	var errs []error
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
