package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/pkordes/tripbot/internal/discord"
	"github.com/pkordes/tripbot/internal/domain"
)

// Command outcomes, used as the "outcome" metric label.
const (
	outcomeOK       = "ok"
	outcomeNotATrip = "not_a_trip"
	outcomeInvalid  = "invalid"
	outcomePlatform = "platform_error"
	outcomeInternal = "error"
)

const (
	notATripMessage      = "This is not a trip thread. Run /create-trip-thread to start one."
	anchorDeletedMessage = "The pinned trip info message of this thread was deleted, so the trip can no longer be updated."
	internalErrorText    = "Something went wrong. Please try again."
)

// errorReply maps a service error to the ephemeral reply shown to the user
// and the outcome it is counted under. Unclassified errors are logged.
func (s *Server) errorReply(ctx context.Context, command string, err error) (discord.InteractionResponse, string) {
	switch {
	case errors.Is(err, domain.ErrNotATripThread):
		return discord.EphemeralReply(notATripMessage), outcomeNotATrip
	case errors.Is(err, domain.ErrUnknownField):
		return discord.EphemeralReply("Unknown field " + unwrapMessage(err, domain.ErrUnknownField) +
			". Use one of: " + fieldList() + "."), outcomeInvalid
	case errors.Is(err, domain.ErrValidation):
		return discord.EphemeralReply(unwrapMessage(err, domain.ErrValidation)), outcomeInvalid
	case errors.Is(err, domain.ErrPlatform) && discord.HasCode(err, discord.CodeUnknownMessage):
		s.logger.WarnContext(ctx, "trip anchor message is gone", "command", command, "error", err)
		return discord.EphemeralReply(anchorDeletedMessage), outcomePlatform
	case errors.Is(err, domain.ErrPlatform):
		s.logger.WarnContext(ctx, "command failed on a platform call", "command", command, "error", err)
		return discord.EphemeralReply("Discord rejected the request: " + platformMessage(err)), outcomePlatform
	}
	s.logger.ErrorContext(ctx, "command failed", "command", command, "error", err)
	return discord.EphemeralReply(internalErrorText), outcomeInternal
}

// unwrapMessage extracts the human-readable part that follows a wrapped
// sentinel error.
// e.g. "service.TripService.LogSpending: validation error: amount cannot be zero" → "amount cannot be zero"
func unwrapMessage(err, sentinel error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	marker := sentinel.Error()
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return msg
	}
	rest := strings.TrimLeft(msg[i+len(marker):], ": \n")
	if rest == "" {
		return msg
	}
	return rest
}

// platformMessage returns the raw message Discord answered with, or the
// underlying error text when the call never got an answer.
func platformMessage(err error) string {
	var apiErr *discord.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return unwrapMessage(err, domain.ErrPlatform)
}

func fieldList() string {
	names := make([]string, len(settableFields))
	for i, f := range settableFields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
