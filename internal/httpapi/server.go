// Package httpapi expõe o engine do pool via REST.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/betpool/internal/pool"
)

// Engine é o subconjunto do *pool.Engine usado pela API.
type Engine interface {
	EnsureUser(ctx context.Context, id, name string) (pool.User, bool, error)
	GetUser(ctx context.Context, id string) (pool.User, error)
	Leaderboard(ctx context.Context, limit int) ([]pool.User, error)
	CreateEvent(ctx context.Context, name string, options []string, endsAt *time.Time) (pool.Event, error)
	ListEvents(ctx context.Context) ([]pool.EventView, error)
	EventView(ctx context.Context, id string) (pool.EventView, error)
	EventBets(ctx context.Context, eventID string) ([]pool.Bet, error)
	PlaceBet(ctx context.Context, userID, eventID, choice string, amount int64) (pool.Bet, error)
	ResolveEvent(ctx context.Context, eventID, winning string) (pool.PayoutSummary, error)
}

// API expõe os endpoints REST de usuários, eventos, apostas e resolução
type API struct {
	log            *zap.Logger
	engine         Engine
	allowedOrigins []string
}

func New(log *zap.Logger, engine Engine, allowedOrigins []string) *API {
	if log == nil {
		log = zap.NewNop()
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &API{log: log, engine: engine, allowedOrigins: allowedOrigins}
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", a.ensureUser)       // Cria (ou devolve) um usuário
		r.Get("/users/{id}", a.getUser)      // Saldo do usuário
		r.Get("/leaderboard", a.leaderboard) // Maiores saldos

		r.Post("/events", a.createEvent)               // Cria evento
		r.Get("/events", a.listEvents)                 // Lista eventos com odds atuais
		r.Get("/events/{id}", a.getEvent)              // Evento com odds e totais
		r.Get("/events/{id}/odds", a.getOdds)          // Somente odds
		r.Get("/events/{id}/bets", a.listBets)         // Apostas do evento
		r.Post("/events/{id}/bets", a.placeBet)        // Aposta
		r.Post("/events/{id}/resolve", a.resolveEvent) // Resolução e pagamento
	})
	return r
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	// corpo vazio equivale a {}
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeError traduz os erros do engine para status HTTP
func (a *API) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch pool.Kind(err) {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "event_resolved", "already_resolved":
		return http.StatusConflict
	case "lock_timeout":
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
