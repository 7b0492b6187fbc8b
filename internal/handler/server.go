// Package handler implements the HTTP handlers for the trip bot.
// Discord delivers slash commands as interactions POSTed to one endpoint;
// HandleInteraction decodes them and dispatches each command to a method of
// the trip service. All handlers are methods on Server so they share its
// dependencies.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pkordes/tripbot/internal/discord"
	"github.com/pkordes/tripbot/internal/domain"
	"github.com/pkordes/tripbot/internal/metrics"
	"github.com/pkordes/tripbot/internal/service"
)

// TripServicer defines the trip operations the interaction handler depends on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without a Discord client or cache.
type TripServicer interface {
	CreateTrip(ctx context.Context, guildID, name string) (discord.Channel, error)
	SetField(ctx context.Context, threadID string, field domain.Field, value string) (domain.Record, error)
	LogSpending(ctx context.Context, threadID, person, amount, description string) (service.SpendingLogged, error)
	Settle(ctx context.Context, threadID string) (service.Settled, error)
	Roster() domain.Roster
}

// Responder delivers the reply of a deferred command through the
// interaction's webhook.
type Responder interface {
	EditOriginalResponse(ctx context.Context, applicationID, token string, data discord.InteractionResponseData) error
	DeleteOriginalResponse(ctx context.Context, applicationID, token string) error
	CreateFollowup(ctx context.Context, applicationID, token string, data discord.InteractionResponseData) error
}

// Server holds the dependencies of every handler.
type Server struct {
	trips     TripServicer
	responder Responder
	detached  service.Detacher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewServer constructs the Server. Slow commands are acknowledged at once
// and finished on detached, replying through responder; with either of them
// nil every command is answered synchronously. logger defaults to
// slog.Default() and m may be nil.
func NewServer(trips TripServicer, responder Responder, detached service.Detacher, logger *slog.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{trips: trips, responder: responder, detached: detached, logger: logger, metrics: m}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(nil, nil, nil, nil, nil)
}

// errorBody is the JSON body of a rejected HTTP request. Command failures are
// not HTTP errors; they are answered with an ephemeral interaction response.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
