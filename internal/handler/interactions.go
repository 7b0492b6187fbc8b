package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkordes/tripbot/internal/discord"
	"github.com/pkordes/tripbot/internal/domain"
)

// Slash command names as registered with Discord.
const (
	CommandCreateTrip  = "create-trip-thread"
	CommandUpdateInfo  = "update-trip-info"
	CommandLogSpending = "log-spending"
	CommandSettle      = "settle-thread"
)

// Option names of the slash commands.
const (
	optionThreadName  = "thread-name"
	optionField       = "field"
	optionValue       = "value"
	optionPerson      = "person"
	optionAmount      = "amount"
	optionDescription = "description"
)

// settableFields are the choices of the update-trip-info "field" option.
var settableFields = []domain.Field{
	domain.FieldLodgingAddress,
	domain.FieldStartDate,
	domain.FieldEndDate,
	domain.FieldNotes,
}

// commandFunc runs one slash command and returns the reply on success.
type commandFunc func(s *Server, ctx context.Context, in discord.Interaction) (discord.InteractionResponse, error)

var commands = map[string]commandFunc{
	CommandCreateTrip:  (*Server).createTrip,
	CommandUpdateInfo:  (*Server).updateTripInfo,
	CommandLogSpending: (*Server).logSpending,
	CommandSettle:      (*Server).settleThread,
}

// deferredCommands make several sequential platform calls and can outlast
// Discord's three second limit on the initial response.
var deferredCommands = map[string]bool{
	CommandCreateTrip: true,
	CommandSettle:     true,
}

// deferredTask is the detached task name of a deferred command.
const deferredTask = "deferred-reply"

// HandleInteraction handles POST /interactions.
// PINGs are answered with a PONG; application commands are dispatched by
// name. Command failures are answered with an ephemeral reply and HTTP 200;
// only payloads the bot cannot interpret at all get a 400.
func (s *Server) HandleInteraction(w http.ResponseWriter, r *http.Request) {
	var in discord.Interaction
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed interaction payload"})
		return
	}

	switch in.Type {
	case discord.InteractionPing:
		writeJSON(w, http.StatusOK, discord.Pong())
		return
	case discord.InteractionApplicationCommand:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unsupported interaction type %d", in.Type)})
		return
	}

	if in.Data == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "command interaction without data"})
		return
	}
	run, ok := commands[in.Data.Name]
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unknown command %q", in.Data.Name)})
		return
	}

	if deferredCommands[in.Data.Name] && s.responder != nil && s.detached != nil {
		writeJSON(w, http.StatusOK, discord.Deferred())
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		s.detached.Go(deferredTask, func(ctx context.Context) error {
			return s.finishDeferred(ctx, in, run)
		})
		return
	}

	writeJSON(w, http.StatusOK, s.runCommand(r.Context(), in, run))
}

// runCommand runs one command and returns the reply to send, counting and
// logging the outcome.
func (s *Server) runCommand(ctx context.Context, in discord.Interaction, run commandFunc) discord.InteractionResponse {
	resp, err := run(s, ctx, in)
	outcome := outcomeOK
	if err != nil {
		resp, outcome = s.errorReply(ctx, in.Data.Name, err)
	}
	if s.metrics != nil {
		s.metrics.Commands.WithLabelValues(in.Data.Name, outcome).Inc()
	}
	s.logger.DebugContext(ctx, "command handled",
		"command", in.Data.Name, "user_id", in.UserID(), "channel_id", in.ChannelID, "outcome", outcome)
	return resp
}

// finishDeferred runs a command acknowledged with discord.Deferred and
// replaces the "thinking" message with its reply. An acknowledged response
// cannot become ephemeral, so an ephemeral reply is sent as a follow-up and
// the original response is deleted.
func (s *Server) finishDeferred(ctx context.Context, in discord.Interaction, run commandFunc) error {
	resp := s.runCommand(ctx, in, run)
	if resp.Data.Flags&discord.FlagEphemeral == 0 {
		return s.responder.EditOriginalResponse(ctx, in.ApplicationID, in.Token, *resp.Data)
	}
	if err := s.responder.CreateFollowup(ctx, in.ApplicationID, in.Token, *resp.Data); err != nil {
		return err
	}
	return s.responder.DeleteOriginalResponse(ctx, in.ApplicationID, in.Token)
}

func (s *Server) createTrip(ctx context.Context, in discord.Interaction) (discord.InteractionResponse, error) {
	name, err := requireOption(in, optionThreadName)
	if err != nil {
		return discord.InteractionResponse{}, err
	}
	thread, err := s.trips.CreateTrip(ctx, in.GuildID, name)
	if err != nil {
		return discord.InteractionResponse{}, err
	}
	return discord.Reply(fmt.Sprintf("Created trip thread <#%s>. Trip info is pinned there.", thread.ID)), nil
}

func (s *Server) updateTripInfo(ctx context.Context, in discord.Interaction) (discord.InteractionResponse, error) {
	field, err := requireOption(in, optionField)
	if err != nil {
		return discord.InteractionResponse{}, err
	}
	value, err := requireOption(in, optionValue)
	if err != nil {
		return discord.InteractionResponse{}, err
	}

	f := domain.Field(field)
	if _, err := s.trips.SetField(ctx, in.ChannelID, f, value); err != nil {
		return discord.InteractionResponse{}, err
	}
	if f == domain.FieldNotes {
		return discord.Reply("Added to notes: " + value), nil
	}
	return discord.Reply(fmt.Sprintf("%s set to: %s", f.Label(), value)), nil
}

func (s *Server) logSpending(ctx context.Context, in discord.Interaction) (discord.InteractionResponse, error) {
	person, err := requireOption(in, optionPerson)
	if err != nil {
		return discord.InteractionResponse{}, err
	}
	amount, err := requireOption(in, optionAmount)
	if err != nil {
		return discord.InteractionResponse{}, err
	}
	description, _ := in.Data.Option(optionDescription)

	logged, err := s.trips.LogSpending(ctx, in.ChannelID, person, amount, description)
	if err != nil {
		return discord.InteractionResponse{}, err
	}

	name := s.trips.Roster().Name(logged.Participant)
	msg := fmt.Sprintf("Logged %s for %s", logged.Delta, name)
	if logged.Description != "" {
		msg += fmt.Sprintf(" (%s)", logged.Description)
	}
	msg += fmt.Sprintf(". %s's total: %s.", name, logged.Record.Spending[logged.Participant])
	return discord.Reply(msg), nil
}

func (s *Server) settleThread(ctx context.Context, in discord.Interaction) (discord.InteractionResponse, error) {
	settled, err := s.trips.Settle(ctx, in.ChannelID)
	if err != nil {
		return discord.InteractionResponse{}, err
	}
	outcome := "everyone is even"
	if !settled.Settlement.Even {
		outcome = settled.Settlement.Outcome(s.trips.Roster())
	}
	if settled.ParentID == "" {
		return discord.Reply(fmt.Sprintf("Trip settled: %s. This thread will be archived.", outcome)), nil
	}
	return discord.Reply(fmt.Sprintf("Trip settled: %s. A summary was posted to the parent channel and this thread will be archived.", outcome)), nil
}

func requireOption(in discord.Interaction, name string) (string, error) {
	v, ok := in.Data.Option(name)
	if !ok {
		return "", fmt.Errorf("%w: missing option %q", domain.ErrValidation, name)
	}
	return v, nil
}
