// Package service contains the trip mutation handlers.
// Services validate inputs, apply changes to the trip cache and push the
// resulting record back to the pinned anchor message. They depend on
// consumer-side interfaces, not on the Discord client or the cache directly.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/pkordes/tripbot/internal/cache"
	"github.com/pkordes/tripbot/internal/codec"
	"github.com/pkordes/tripbot/internal/discord"
	"github.com/pkordes/tripbot/internal/domain"
	"github.com/pkordes/tripbot/internal/metrics"
)

// MaxThreadNameLength is Discord's limit on channel and thread names.
const MaxThreadNameLength = 100

// nonceLength is Discord's limit on message nonces.
const nonceLength = 25

// Store is the trip cache as seen by the mutation handlers.
type Store interface {
	Create(threadID, anchorMessageID string, record domain.Record) error
	Get(threadID string) (cache.Entry, error)
	Mutate(threadID string, fn func(domain.Record) domain.Record) (cache.Entry, error)
	Remove(threadID string) (cache.Entry, error)
}

// Platform is the slice of the Discord client the mutation handlers call.
type Platform interface {
	GuildChannels(ctx context.Context, guildID string) ([]discord.Channel, error)
	Channel(ctx context.Context, channelID string) (discord.Channel, error)
	StartThread(ctx context.Context, channelID string, params discord.StartThreadParams) (discord.Channel, error)
	CreateMessage(ctx context.Context, channelID string, params discord.MessageParams) (discord.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) (discord.Message, error)
	PinMessage(ctx context.Context, channelID, messageID string) error
	ArchiveThread(ctx context.Context, threadID string, lock bool) error
}

// Options configures a TripService.
type Options struct {
	// PlansChannel is the name of the text channel trip threads are started in.
	PlansChannel string
	// AutoArchiveMinutes is passed to Discord when starting a thread.
	AutoArchiveMinutes int
	// ArchiveDelay postpones archiving a settled thread so the reply to the
	// settle command lands before the thread closes.
	ArchiveDelay time.Duration
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// TripService implements the trip thread commands.
type TripService struct {
	store    Store
	platform Platform
	codec    *codec.Codec
	detached Detacher
	opts     Options
}

// NewTripService constructs a TripService.
func NewTripService(store Store, platform Platform, c *codec.Codec, detached Detacher, opts Options) *TripService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &TripService{store: store, platform: platform, codec: c, detached: detached, opts: opts}
}

// Roster returns the participants trips are tracked for.
func (s *TripService) Roster() domain.Roster {
	return s.codec.Roster()
}

// CreateTrip starts a thread named name in the plans channel of guildID,
// posts and pins an empty trip message in it, and binds the thread in the
// cache. It returns the new thread.
// Returns domain.ErrValidation outside a guild, for a bad name, or when the
// plans channel does not exist. Platform failures are joined with
// domain.ErrPlatform; no cache entry survives a failed create.
func (s *TripService) CreateTrip(ctx context.Context, guildID, name string) (discord.Channel, error) {
	if guildID == "" {
		return discord.Channel{}, fmt.Errorf("service.TripService.CreateTrip: %w: trips can only be created in a server", domain.ErrValidation)
	}
	name = cleanText(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > MaxThreadNameLength {
		return discord.Channel{}, fmt.Errorf("service.TripService.CreateTrip: %w: thread name must be 1 to %d characters", domain.ErrValidation, MaxThreadNameLength)
	}

	channels, err := s.platform.GuildChannels(ctx, guildID)
	if err != nil {
		return discord.Channel{}, platformError("service.TripService.CreateTrip", err)
	}
	plans, ok := findTextChannel(channels, s.opts.PlansChannel)
	if !ok {
		return discord.Channel{}, fmt.Errorf("service.TripService.CreateTrip: %w: no #%s channel in this server", domain.ErrValidation, s.opts.PlansChannel)
	}

	thread, err := s.platform.StartThread(ctx, plans.ID, discord.StartThreadParams{
		Name:                name,
		Type:                discord.ChannelTypePublicThread,
		AutoArchiveDuration: s.opts.AutoArchiveMinutes,
	})
	if err != nil {
		return discord.Channel{}, platformError("service.TripService.CreateTrip", err)
	}

	record := domain.NewRecord()
	anchor, err := s.platform.CreateMessage(ctx, thread.ID, discord.MessageParams{
		Content:         s.codec.Encode(record),
		Nonce:           newNonce(),
		EnforceNonce:    true,
		AllowedMentions: discord.NoMentions,
	})
	if err != nil {
		return discord.Channel{}, platformError("service.TripService.CreateTrip", err)
	}

	if err := s.store.Create(thread.ID, anchor.ID, record); err != nil {
		return discord.Channel{}, fmt.Errorf("service.TripService.CreateTrip: %w", err)
	}
	if err := s.platform.PinMessage(ctx, thread.ID, anchor.ID); err != nil {
		if _, rmErr := s.store.Remove(thread.ID); rmErr != nil {
			s.opts.Logger.WarnContext(ctx, "could not unbind thread after failed pin", "thread_id", thread.ID, "error", rmErr)
		}
		return discord.Channel{}, platformError("service.TripService.CreateTrip", err)
	}

	s.opts.Logger.InfoContext(ctx, "trip created", "guild_id", guildID, "thread_id", thread.ID, "message_id", anchor.ID)
	return thread, nil
}

// SetField overwrites one scalar field of the trip in threadID, or appends a
// line to its notes, and rewrites the anchor message. It returns the updated
// record.
// Returns domain.ErrNotATripThread, domain.ErrUnknownField or
// domain.ErrValidation without changing anything. A failed rewrite restores
// the previous record and is joined with domain.ErrPlatform.
func (s *TripService) SetField(ctx context.Context, threadID string, field domain.Field, value string) (domain.Record, error) {
	value = cleanText(value)
	entry, prev, err := s.apply(threadID, func(r domain.Record) (domain.Record, error) {
		next, err := r.WithField(field, value)
		if err != nil {
			return r, err
		}
		if value == "" {
			return r, fmt.Errorf("%w: value cannot be empty", domain.ErrValidation)
		}
		return next, nil
	})
	if err != nil {
		return domain.Record{}, fmt.Errorf("service.TripService.SetField: %w", err)
	}
	if err := s.resync(ctx, threadID, entry, prev); err != nil {
		return domain.Record{}, fmt.Errorf("service.TripService.SetField: %w", err)
	}
	return entry.Record, nil
}

// SpendingLogged describes a successful LogSpending call.
type SpendingLogged struct {
	Participant domain.Participant
	Delta       domain.Amount
	Description string
	Record      domain.Record
}

// LogSpending adds amount to person's running total in the trip of
// threadID and rewrites the anchor message. Negative amounts are
// corrections.
// Returns domain.ErrNotATripThread, or domain.ErrValidation for an unknown
// person or a non-numeric or zero amount, without changing anything. A
// failed rewrite restores the previous record and is joined with
// domain.ErrPlatform.
func (s *TripService) LogSpending(ctx context.Context, threadID, person, amount, description string) (SpendingLogged, error) {
	if _, err := s.store.Get(threadID); err != nil {
		return SpendingLogged{}, fmt.Errorf("service.TripService.LogSpending: %w", err)
	}

	p, ok := s.Roster().Lookup(person)
	if !ok {
		return SpendingLogged{}, fmt.Errorf("service.TripService.LogSpending: %w: unknown person %q", domain.ErrValidation, person)
	}
	delta, err := domain.ParseAmount(amount)
	if err != nil {
		return SpendingLogged{}, fmt.Errorf("service.TripService.LogSpending: %w", err)
	}
	if delta == 0 {
		return SpendingLogged{}, fmt.Errorf("service.TripService.LogSpending: %w: amount cannot be zero", domain.ErrValidation)
	}

	entry, prev, err := s.apply(threadID, func(r domain.Record) (domain.Record, error) {
		return r.WithSpending(p, delta), nil
	})
	if err != nil {
		return SpendingLogged{}, fmt.Errorf("service.TripService.LogSpending: %w", err)
	}
	if err := s.resync(ctx, threadID, entry, prev); err != nil {
		return SpendingLogged{}, fmt.Errorf("service.TripService.LogSpending: %w", err)
	}
	return SpendingLogged{
		Participant: p,
		Delta:       delta,
		Description: cleanText(description),
		Record:      entry.Record,
	}, nil
}

// Settled describes a settled trip.
type Settled struct {
	ThreadName string
	ParentID   string
	Settlement domain.Settlement
	Summary    string
}

// Settle closes the trip in threadID: the thread is unbound, the settlement
// is computed from the record it held at that moment, and the summary post
// and the thread archive run detached.
// Returns domain.ErrNotATripThread, or a domain.ErrPlatform error when the
// thread itself cannot be fetched; in both cases the trip stays open.
func (s *TripService) Settle(ctx context.Context, threadID string) (Settled, error) {
	if _, err := s.store.Get(threadID); err != nil {
		return Settled{}, fmt.Errorf("service.TripService.Settle: %w", err)
	}
	thread, err := s.platform.Channel(ctx, threadID)
	if err != nil {
		return Settled{}, platformError("service.TripService.Settle", err)
	}

	// Spending logged while the thread was fetched must count.
	entry, err := s.store.Remove(threadID)
	if err != nil {
		return Settled{}, fmt.Errorf("service.TripService.Settle: %w", err)
	}
	settlement := domain.Settle(entry.Record.Spending)

	out := Settled{
		ThreadName: thread.Name,
		ParentID:   thread.ParentID,
		Settlement: settlement,
		Summary:    settlement.Summary(s.Roster(), thread.Name),
	}
	if out.ParentID == "" {
		s.opts.Logger.WarnContext(ctx, "settled thread has no parent channel, summary not posted", "thread_id", threadID)
	} else {
		s.detached.Go("post-summary", func(ctx context.Context) error {
			_, err := s.platform.CreateMessage(ctx, out.ParentID, discord.MessageParams{
				Content:         out.Summary,
				AllowedMentions: discord.NoMentions,
			})
			return err
		})
	}
	s.detached.Go("archive-thread", func(ctx context.Context) error {
		if err := sleep(ctx, s.opts.ArchiveDelay); err != nil {
			return err
		}
		err := s.platform.ArchiveThread(ctx, threadID, true)
		if discord.HasCode(err, discord.CodeUnknownChannel) {
			s.opts.Logger.DebugContext(ctx, "settled thread was deleted before it could be archived", "thread_id", threadID)
			return nil
		}
		return err
	})

	s.opts.Logger.InfoContext(ctx, "trip settled", "thread_id", threadID, "outcome", settlement.Outcome(s.Roster()))
	return out, nil
}

// apply runs change against the cached record of threadID. The new record
// must pass codec validation; if change or validation fails the cache is
// left untouched. It returns the updated entry and the record it replaced.
func (s *TripService) apply(threadID string, change func(domain.Record) (domain.Record, error)) (cache.Entry, domain.Record, error) {
	var prev domain.Record
	var changeErr error
	entry, err := s.store.Mutate(threadID, func(r domain.Record) domain.Record {
		next, err := change(r)
		if err == nil {
			err = s.codec.Check(next)
		}
		if err != nil {
			changeErr = err
			return r
		}
		prev = r
		return next
	})
	if err != nil {
		return cache.Entry{}, domain.Record{}, err
	}
	if changeErr != nil {
		return cache.Entry{}, domain.Record{}, changeErr
	}
	return entry, prev, nil
}

// resync rewrites the anchor message with entry's record. On failure the
// cached record goes back to prev, unless another write has replaced it in
// the meantime.
func (s *TripService) resync(ctx context.Context, threadID string, entry cache.Entry, prev domain.Record) error {
	_, err := s.platform.EditMessage(ctx, threadID, entry.AnchorMessageID, s.codec.Encode(entry.Record))
	if err == nil {
		return nil
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.SyncFailures.Inc()
	}
	_, rbErr := s.store.Mutate(threadID, func(cur domain.Record) domain.Record {
		if cur == entry.Record {
			return prev
		}
		return cur
	})
	s.opts.Logger.WarnContext(ctx, "anchor message sync failed",
		"thread_id", threadID, "message_id", entry.AnchorMessageID, "error", err, "rollback_error", rbErr)
	return errors.Join(domain.ErrPlatform, err)
}

func platformError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrPlatform, err))
}

// cleanText trims user input and normalises it to NFC, so text typed on
// different keyboards compares and encodes the same.
func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func findTextChannel(channels []discord.Channel, name string) (discord.Channel, bool) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "#")
	for _, ch := range channels {
		if ch.Type == discord.ChannelTypeGuildText && strings.EqualFold(ch.Name, name) {
			return ch, true
		}
	}
	return discord.Channel{}, false
}

func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:nonceLength]
}
