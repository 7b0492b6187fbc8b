// Package recovery rebuilds the trip cache from the chat platform at startup.
//
// The process keeps no state of its own between restarts, so the crawl walks
// every guild the bot belongs to, every active thread in those guilds, and
// every thread's pinned messages, and decodes the first pinned trip message it
// finds back into a cache entry.
//
// The crawl is best-effort. Each guild and each thread is processed on its own
// and records its own failure; nothing a single guild or thread does can stop
// the others, and nothing the crawl does can stop the bot from starting.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pkordes/tripbot/internal/cache"
	"github.com/pkordes/tripbot/internal/codec"
	"github.com/pkordes/tripbot/internal/discord"
	"github.com/pkordes/tripbot/internal/domain"
	"github.com/pkordes/tripbot/internal/metrics"
)

// Platform is the read-only slice of the Discord client the crawl needs.
type Platform interface {
	CurrentUserGuilds(ctx context.Context) ([]discord.Guild, error)
	ActiveThreads(ctx context.Context, guildID string) ([]discord.Channel, error)
	PinnedMessages(ctx context.Context, channelID string) ([]discord.Message, error)
}

// TripStore is the trip cache as seen by the crawl.
type TripStore interface {
	Create(threadID, anchorMessageID string, record domain.Record) error
	Get(threadID string) (cache.Entry, error)
	Mutate(threadID string, fn func(domain.Record) domain.Record) (cache.Entry, error)
	Remove(threadID string) (cache.Entry, error)
}

// Config tunes a Crawler. Zero values are valid.
type Config struct {
	// Concurrency bounds the number of in-flight platform calls. Defaults to 4.
	Concurrency int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Crawler rebuilds a TripStore from pinned messages.
type Crawler struct {
	platform    Platform
	store       TripStore
	codec       *codec.Codec
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// New constructs a Crawler.
func New(platform Platform, store TripStore, c *codec.Codec, cfg Config) *Crawler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Crawler{
		platform:    platform,
		store:       store,
		codec:       c,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// Failure records one guild or thread the crawl had to skip.
type Failure struct {
	Stage    string // one of the metrics.Stage* constants
	GuildID  string
	ThreadID string
	Err      error
}

// Report summarises a crawl. It is informational only.
type Report struct {
	GuildsScanned  int
	ThreadsScanned int
	TripsLoaded    int
	Failures       []Failure
}

func (r *Report) merge(other Report) {
	r.GuildsScanned += other.GuildsScanned
	r.ThreadsScanned += other.ThreadsScanned
	r.TripsLoaded += other.TripsLoaded
	r.Failures = append(r.Failures, other.Failures...)
}

// guildThread is one unit of work in the thread stage.
type guildThread struct {
	guildID string
	thread  discord.Channel
}

// Run performs one crawl. It never returns an error: failures are logged,
// counted and listed in the Report, and a crawl that cannot even list its
// guilds leaves the cache empty.
func (c *Crawler) Run(ctx context.Context) (report Report) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.ErrorContext(ctx, "recovery crawl aborted", "panic", fmt.Sprint(p))
		}
		c.observe(report)
		c.logger.InfoContext(ctx, "recovery crawl finished",
			"guilds_scanned", report.GuildsScanned,
			"threads_scanned", report.ThreadsScanned,
			"trips_loaded", report.TripsLoaded,
			"failures", len(report.Failures),
		)
	}()

	guilds, err := c.platform.CurrentUserGuilds(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "recovery crawl could not list guilds; starting with an empty cache", "error", err)
		report.Failures = append(report.Failures, Failure{Stage: metrics.StageGuilds, Err: err})
		return report
	}
	if len(guilds) == 0 {
		c.logger.InfoContext(ctx, "bot is not a member of any guild; nothing to recover")
		return report
	}

	threads, guildReport := c.listThreads(ctx, guilds)
	report.merge(guildReport)

	report.merge(c.loadThreads(ctx, threads))
	return report
}

// listThreads lists the active threads of every guild. A guild whose
// threads cannot be listed is logged and skipped.
func (c *Crawler) listThreads(ctx context.Context, guilds []discord.Guild) ([]guildThread, Report) {
	lists := make([][]discord.Channel, len(guilds))
	partial := make([]Report, len(guilds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, guild := range guilds {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					c.logger.ErrorContext(gctx, "skipping guild: crawl task panicked",
						"guild_id", guild.ID, "panic", fmt.Sprint(p))
					lists[i] = nil
					partial[i].Failures = []Failure{{
						Stage: metrics.StageThreads, GuildID: guild.ID,
						Err: fmt.Errorf("panic: %v", p),
					}}
				}
			}()
			partial[i].GuildsScanned = 1
			threads, err := c.platform.ActiveThreads(gctx, guild.ID)
			if err != nil {
				c.logger.WarnContext(gctx, "skipping guild: cannot list active threads",
					"guild_id", guild.ID, "error", err)
				partial[i].Failures = []Failure{{Stage: metrics.StageThreads, GuildID: guild.ID, Err: err}}
				return nil
			}
			lists[i] = threads
			return nil
		})
	}
	_ = g.Wait()

	var report Report
	for _, p := range partial {
		report.merge(p)
	}

	seen := make(map[string]bool)
	var out []guildThread
	for i, threads := range lists {
		for _, thread := range threads {
			if seen[thread.ID] {
				continue
			}
			seen[thread.ID] = true
			out = append(out, guildThread{guildID: guilds[i].ID, thread: thread})
		}
	}
	return out, report
}

// loadThreads inspects the pins of every thread and installs the trips it
// finds. Thread IDs are unique, so no two tasks touch the same cache key.
func (c *Crawler) loadThreads(ctx context.Context, threads []guildThread) Report {
	partial := make([]Report, len(threads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, gt := range threads {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					c.logger.ErrorContext(gctx, "skipping thread: crawl task panicked",
						"thread_id", gt.thread.ID, "panic", fmt.Sprint(p))
					partial[i] = Report{ThreadsScanned: 1, Failures: []Failure{{
						Stage: metrics.StagePins, GuildID: gt.guildID, ThreadID: gt.thread.ID,
						Err: fmt.Errorf("panic: %v", p),
					}}}
				}
			}()
			partial[i] = c.loadThread(gctx, gt)
			return nil
		})
	}
	_ = g.Wait()

	var report Report
	for _, p := range partial {
		report.merge(p)
	}
	return report
}

func (c *Crawler) loadThread(ctx context.Context, gt guildThread) Report {
	report := Report{ThreadsScanned: 1}
	log := c.logger.With("guild_id", gt.guildID, "thread_id", gt.thread.ID)

	pins, err := c.platform.PinnedMessages(ctx, gt.thread.ID)
	if err != nil {
		if discord.IsForbidden(err) {
			log.DebugContext(ctx, "skipping thread: no access to pins", "error", err)
		} else {
			log.WarnContext(ctx, "skipping thread: cannot fetch pins", "error", err)
		}
		report.Failures = []Failure{{Stage: metrics.StagePins, GuildID: gt.guildID, ThreadID: gt.thread.ID, Err: err}}
		return report
	}

	anchor, ok := firstTripMessage(pins)
	if !ok {
		return report
	}

	decoded, ok := c.codec.Decode(anchor.Content)
	if !ok {
		log.WarnContext(ctx, "skipping thread: pinned trip message is not decodable", "message_id", anchor.ID)
		report.Failures = []Failure{{
			Stage: metrics.StageDecode, GuildID: gt.guildID, ThreadID: gt.thread.ID,
			Err: fmt.Errorf("message %s: not a trip message", anchor.ID),
		}}
		return report
	}
	if len(decoded.Defaulted) > 0 {
		log.WarnContext(ctx, "trip message has unreadable fields; using defaults",
			"message_id", anchor.ID, "fields", decoded.Defaulted)
	}

	if err := c.install(gt.thread.ID, anchor.ID, decoded.Record); err != nil {
		log.WarnContext(ctx, "skipping thread: cannot install trip", "error", err)
		report.Failures = []Failure{{Stage: metrics.StageDecode, GuildID: gt.guildID, ThreadID: gt.thread.ID, Err: err}}
		return report
	}
	log.DebugContext(ctx, "recovered trip", "message_id", anchor.ID)
	report.TripsLoaded = 1
	return report
}

// install binds the thread to the recovered record. The pinned message is the
// source of truth, so an existing entry is overwritten rather than kept;
// running the crawl twice against the same pins yields the same cache.
func (c *Crawler) install(threadID, anchorID string, record domain.Record) error {
	err := c.store.Create(threadID, anchorID, record)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return err
	}

	existing, err := c.store.Get(threadID)
	if err != nil {
		return err
	}
	if existing.AnchorMessageID == anchorID {
		_, err := c.store.Mutate(threadID, func(domain.Record) domain.Record { return record })
		return err
	}
	if _, err := c.store.Remove(threadID); err != nil {
		return err
	}
	return c.store.Create(threadID, anchorID, record)
}

// firstTripMessage returns the first pinned message whose content begins
// with the trip header.
func firstTripMessage(pins []discord.Message) (discord.Message, bool) {
	for _, m := range pins {
		if codec.IsTripMessage(m.Content) {
			return m, true
		}
	}
	return discord.Message{}, false
}

func (c *Crawler) observe(report Report) {
	if c.metrics == nil {
		return
	}
	c.metrics.CrawlGuildsScanned.Add(float64(report.GuildsScanned))
	c.metrics.CrawlThreadsScanned.Add(float64(report.ThreadsScanned))
	c.metrics.CrawlTripsLoaded.Add(float64(report.TripsLoaded))
	for _, f := range report.Failures {
		c.metrics.CrawlFailures.WithLabelValues(f.Stage).Inc()
	}
}
