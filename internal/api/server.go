// Package api serves the reference oracle over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"stdref/internal/auth"
	"stdref/internal/metrics"
	"stdref/internal/oracle"
)

// Oracle is the facade the handlers drive. *oracle.Reference implements it.
type Oracle interface {
	BaseSymbol() oracle.Symbol
	CurrentAdmin(ctx context.Context) (oracle.Identity, error)
	IsRelayer(ctx context.Context, id oracle.Identity) (bool, error)
	TransferAdmin(ctx context.Context, caller, newAdmin oracle.Identity) error
	GrantRelayers(ctx context.Context, caller oracle.Identity, ids []oracle.Identity) error
	RevokeRelayers(ctx context.Context, caller oracle.Identity, ids []oracle.Identity) error
	Relay(ctx context.Context, caller oracle.Identity, updates []oracle.SymbolRate, resolveTime, requestID uint64) error
	ForceRelay(ctx context.Context, caller oracle.Identity, updates []oracle.SymbolRate, resolveTime, requestID uint64) error
	GetReferenceData(ctx context.Context, base, quote oracle.Symbol) (oracle.ReferencePrice, error)
	GetReferenceDataBulk(ctx context.Context, pairs []oracle.SymbolPair) []oracle.Result
	ReplaceCode(ctx context.Context, caller oracle.Identity, codeHash [32]byte)
	CodeHash() ([32]byte, bool)
	ContractID() string
}

var _ Oracle = (*oracle.Reference)(nil)

// Verifier turns a bearer token into a caller identity.
type Verifier interface {
	Verify(token string) (oracle.Identity, error)
}

var _ Verifier = (*auth.Signer)(nil)

// MaxBulkPairs caps a single bulk query.
const MaxBulkPairs = 1000

// Server holds the handler dependencies.
type Server struct {
	oracle   Oracle
	verifier Verifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	limiter  *RateLimiter
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics instruments every route and mounts GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimiter limits requests per caller identity or remote address.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

func NewServer(o Oracle, v Verifier, opts ...Option) *Server {
	s := &Server{oracle: o, verifier: v, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	if s.metrics != nil {
		r.Use(s.metrics.InstrumentHandler)
	}
	r.Use(s.logRequests, withJSONHeaders, withGzip, s.recoverPanic, limitBody, s.authenticate)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, statusOK)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	// health checks and metric scrapes are never throttled
	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Handler)
		}
		r.Get("/admin", s.handleCurrentAdmin)
		r.Get("/relayers/{id}", s.handleIsRelayer)
		r.Get("/reference", s.handleReference)
		r.Post("/reference/bulk", s.handleReferenceBulk)
		r.Get("/upgrade", s.handleCodeHash)
		r.Get("/contract", s.handleContractID)

		r.Group(func(r chi.Router) {
			r.Use(requireIdentity)
			r.Post("/admin/transfer", s.handleTransferAdmin)
			r.Post("/relayers/grant", s.handleGrantRelayers)
			r.Post("/relayers/revoke", s.handleRevokeRelayers)
			r.Post("/relay", s.handleRelay(false))
			r.Post("/relay/force", s.handleRelay(true))
			r.Post("/upgrade", s.handleReplaceCode)
		})
	})

	return r
}
