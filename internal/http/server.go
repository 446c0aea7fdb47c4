package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"buste/internal/amqp"
	applog "buste/internal/log"
	"buste/internal/middleware/ratelimit"
	"buste/internal/middleware/security"
	"buste/internal/middleware/trace"
	"buste/internal/services"
	"buste/internal/storage"
)

type Server struct {
	http.Server

	storage     *storage.SQLiteRepository
	transfers   *services.TransferService
	splits      *services.SplitService
	allocations *services.AllocationService
	cards       *services.CardService
	debts       *services.DebtService
	incomes     *services.IncomeService

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer wires the ledger services behind the JSON API. The AMQP client
// may be nil; the ledger works without a broker.
func NewServer(port string, repo *storage.SQLiteRepository, amqpClient *amqp.Client) *Server {
	s := &Server{
		storage:     repo,
		transfers:   services.NewTransferService(repo, amqpClient),
		splits:      services.NewSplitService(repo, amqpClient),
		allocations: services.NewAllocationService(repo, amqpClient),
		cards:       services.NewCardService(repo, amqpClient),
		debts:       services.NewDebtService(repo, amqpClient),
		incomes:     services.NewIncomeService(repo, amqpClient),
		limiter:     ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	traceMW := trace.NewMiddleware(clientIP)
	headersMW := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	logMW := applog.Middleware(applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP))
	requestIDMW := applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})
	limitMW := s.limiter.Middleware(clientIP, nil)

	s.Server = http.Server{
		Addr:              ":" + port,
		Handler:           traceMW.Middleware(logMW(requestIDMW(headersMW.Middleware(limitMW(mux))))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/transfers", s.handleTransfer)

	mux.HandleFunc("PUT /api/transactions/{id}/splits", s.handleSaveSplits)
	mux.HandleFunc("GET /api/transactions/{id}/splits", s.handleGetSplits)
	mux.HandleFunc("POST /api/transactions/{id}/allocation-plan", s.handleProposePlan)

	mux.HandleFunc("GET /api/allocation-plans/{id}", s.handleGetPlan)
	mux.HandleFunc("POST /api/allocation-plans/{id}/apply", s.handleApplyPlan)
	mux.HandleFunc("POST /api/allocation-plans/{id}/reject", s.handleRejectPlan)

	mux.HandleFunc("POST /api/cards/{id}/spend", s.handleCardSpend)
	mux.HandleFunc("POST /api/cards/{id}/interest", s.handleCardInterest)
	mux.HandleFunc("POST /api/cards/{id}/payments", s.handleCardPayment)
	mux.HandleFunc("GET /api/cards/{id}/cycles", s.handleOpenCycles)
	mux.HandleFunc("POST /api/cards/{id}/cycles/{key}/close", s.handleCloseCycle)

	mux.HandleFunc("POST /api/accounts/{id}/debt-sync", s.handleDebtSync)
	mux.HandleFunc("GET /api/debts/{id}/projection", s.handleDebtProjection)
	mux.HandleFunc("GET /api/payoff", s.handlePayoffPreview)

	mux.HandleFunc("POST /api/income-sources/{id}/reconcile", s.handleIncomeReconcile)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

// Shutdown drains in-flight requests and stops the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// clientIP prefers proxy headers over the raw remote address.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// ownerOr401 extracts the owner scope, answering 401 when absent.
func ownerOr401(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, err := OwnerID(r)
	if err != nil {
		NewJSONResponse().Status(http.StatusUnauthorized).Body(errorBody{Error: err.Error()}).Write(w)
		return "", false
	}
	return owner, true
}
