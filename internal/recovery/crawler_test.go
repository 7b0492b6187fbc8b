package recovery_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripbot/internal/cache"
	"github.com/pkordes/tripbot/internal/codec"
	"github.com/pkordes/tripbot/internal/discord"
	"github.com/pkordes/tripbot/internal/domain"
	"github.com/pkordes/tripbot/internal/metrics"
	"github.com/pkordes/tripbot/internal/recovery"
)

// fakePlatform serves a fixed snapshot of guilds, threads and pins.
// Maps are only read once the crawl starts, so concurrent access is safe.
type fakePlatform struct {
	guilds    []discord.Guild
	guildsErr error
	threads   map[string][]discord.Channel
	threadErr map[string]error
	pins      map[string][]discord.Message
	pinErr    map[string]error
}

func (f *fakePlatform) CurrentUserGuilds(context.Context) ([]discord.Guild, error) {
	return f.guilds, f.guildsErr
}
func (f *fakePlatform) ActiveThreads(_ context.Context, guildID string) ([]discord.Channel, error) {
	if err := f.threadErr[guildID]; err != nil {
		return nil, err
	}
	return f.threads[guildID], nil
}
func (f *fakePlatform) PinnedMessages(_ context.Context, channelID string) ([]discord.Message, error) {
	if err := f.pinErr[channelID]; err != nil {
		return nil, err
	}
	return f.pins[channelID], nil
}

// compile-time checks.
var (
	_ recovery.Platform  = (*fakePlatform)(nil)
	_ recovery.Platform  = (*discord.Client)(nil)
	_ recovery.TripStore = (*cache.TripCache)(nil)
)

// ---- helpers ---------------------------------------------------------------

func newCodec() *codec.Codec {
	return codec.New(domain.NewRoster("Alfredo", "Rachel"))
}

func newCrawler(p recovery.Platform, store recovery.TripStore, m *metrics.Metrics) *recovery.Crawler {
	return recovery.New(p, store, newCodec(), recovery.Config{
		Concurrency: 2,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:     m,
	})
}

func tripMessage(id string, r domain.Record) discord.Message {
	return discord.Message{ID: id, Content: newCodec().Encode(r), Pinned: true}
}

func thread(id string) discord.Channel {
	return discord.Channel{ID: id, Type: discord.ChannelTypePublicThread}
}

var errForbidden = &discord.APIError{Method: http.MethodGet, Path: "/pins", StatusCode: http.StatusForbidden, Code: discord.CodeMissingAccess, Message: "Missing Access"}

// ---- Run tests -------------------------------------------------------------

func TestCrawler_Run_LoadsTripsFromPins(t *testing.T) {
	lisbon := domain.Record{LodgingAddress: "Rua Augusta 24", Spending: domain.Spending{2050, -1000}}
	porto := domain.Record{Notes: "train at 9"}
	p := &fakePlatform{
		guilds: []discord.Guild{{ID: "g1"}, {ID: "g2"}},
		threads: map[string][]discord.Channel{
			"g1": {thread("t1"), thread("t2")},
			"g2": {thread("t3")},
		},
		pins: map[string][]discord.Message{
			"t1": {tripMessage("m1", lisbon)},
			"t2": {{ID: "x", Content: "just a pinned meme"}},
			"t3": {tripMessage("m3", porto)},
		},
	}
	store := cache.New()
	m := metrics.New()

	report := newCrawler(p, store, m).Run(context.Background())

	assert.Equal(t, 2, report.GuildsScanned)
	assert.Equal(t, 3, report.ThreadsScanned)
	assert.Equal(t, 2, report.TripsLoaded)
	assert.Empty(t, report.Failures)

	got, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.AnchorMessageID)
	assert.Equal(t, lisbon, got.Record)

	got, err = store.Get("t3")
	require.NoError(t, err)
	assert.Equal(t, porto, got.Record)

	_, err = store.Get("t2")
	assert.ErrorIs(t, err, domain.ErrNotATripThread)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CrawlTripsLoaded))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CrawlThreadsScanned))
}

func TestCrawler_Run_NoGuilds(t *testing.T) {
	store := cache.New()

	report := newCrawler(&fakePlatform{}, store, nil).Run(context.Background())

	assert.Equal(t, recovery.Report{}, report)
}

func TestCrawler_Run_GuildListingFails(t *testing.T) {
	p := &fakePlatform{guildsErr: errors.New("gateway down")}
	m := metrics.New()

	report := newCrawler(p, cache.New(), m).Run(context.Background())

	require.Len(t, report.Failures, 1)
	assert.Equal(t, metrics.StageGuilds, report.Failures[0].Stage)
	assert.Zero(t, report.TripsLoaded)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CrawlFailures.WithLabelValues(metrics.StageGuilds)))
}

func TestCrawler_Run_FailingGuildDoesNotStopOthers(t *testing.T) {
	p := &fakePlatform{
		guilds:    []discord.Guild{{ID: "broken"}, {ID: "ok"}},
		threadErr: map[string]error{"broken": errForbidden},
		threads:   map[string][]discord.Channel{"ok": {thread("t1")}},
		pins:      map[string][]discord.Message{"t1": {tripMessage("m1", domain.NewRecord())}},
	}
	store := cache.New()

	report := newCrawler(p, store, nil).Run(context.Background())

	assert.Equal(t, 2, report.GuildsScanned)
	assert.Equal(t, 1, report.TripsLoaded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, metrics.StageThreads, report.Failures[0].Stage)
	assert.Equal(t, "broken", report.Failures[0].GuildID)

	_, err := store.Get("t1")
	assert.NoError(t, err)
}

func TestCrawler_Run_ForbiddenPinsSkipThread(t *testing.T) {
	p := &fakePlatform{
		guilds:  []discord.Guild{{ID: "g1"}},
		threads: map[string][]discord.Channel{"g1": {thread("private"), thread("t1")}},
		pinErr:  map[string]error{"private": errForbidden},
		pins:    map[string][]discord.Message{"t1": {tripMessage("m1", domain.NewRecord())}},
	}
	store := cache.New()

	report := newCrawler(p, store, nil).Run(context.Background())

	assert.Equal(t, 1, report.TripsLoaded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, metrics.StagePins, report.Failures[0].Stage)
	assert.Equal(t, "private", report.Failures[0].ThreadID)

	_, err := store.Get("private")
	assert.ErrorIs(t, err, domain.ErrNotATripThread)
}

func TestCrawler_Run_FirstPinnedTripMessageWins(t *testing.T) {
	first := domain.Record{Notes: "first"}
	second := domain.Record{Notes: "second"}
	p := &fakePlatform{
		guilds:  []discord.Guild{{ID: "g1"}},
		threads: map[string][]discord.Channel{"g1": {thread("t1")}},
		pins: map[string][]discord.Message{"t1": {
			{ID: "other", Content: "pinned rules"},
			tripMessage("m1", first),
			tripMessage("m2", second),
		}},
	}
	store := cache.New()

	newCrawler(p, store, nil).Run(context.Background())

	got, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.AnchorMessageID)
	assert.Equal(t, "first", got.Record.Notes)
}

func TestCrawler_Run_CorruptedFieldsFallBackToDefaults(t *testing.T) {
	content := codec.Header + "\n" +
		"**Lodging:** Hotel Sol\n" +
		"**Spending:**\n" +
		"- Alfredo: lots\n" +
		"- Rachel: 12.50\n"
	p := &fakePlatform{
		guilds:  []discord.Guild{{ID: "g1"}},
		threads: map[string][]discord.Channel{"g1": {thread("t1")}},
		pins:    map[string][]discord.Message{"t1": {{ID: "m1", Content: content}}},
	}
	store := cache.New()

	report := newCrawler(p, store, nil).Run(context.Background())

	assert.Equal(t, 1, report.TripsLoaded)
	got, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "Hotel Sol", got.Record.LodgingAddress)
	assert.Equal(t, domain.Spending{0, 1250}, got.Record.Spending)
	assert.Empty(t, got.Record.Notes)
}

func TestCrawler_Run_TwiceIsIdempotent(t *testing.T) {
	record := domain.Record{StartDate: "June 3", Spending: domain.Spending{500, 0}}
	p := &fakePlatform{
		guilds:  []discord.Guild{{ID: "g1"}},
		threads: map[string][]discord.Channel{"g1": {thread("t1")}},
		pins:    map[string][]discord.Message{"t1": {tripMessage("m1", record)}},
	}
	store := cache.New()
	crawler := newCrawler(p, store, nil)

	crawler.Run(context.Background())
	second := crawler.Run(context.Background())

	assert.Equal(t, 1, second.TripsLoaded)
	assert.Empty(t, second.Failures)
	got, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, cache.Entry{AnchorMessageID: "m1", Record: record}, got)
}

func TestCrawler_Run_PinnedMessageOverridesStaleEntry(t *testing.T) {
	pinned := domain.Record{Notes: "from pins"}
	p := &fakePlatform{
		guilds:  []discord.Guild{{ID: "g1"}},
		threads: map[string][]discord.Channel{"g1": {thread("t1")}},
		pins:    map[string][]discord.Message{"t1": {tripMessage("m2", pinned)}},
	}
	store := cache.New()
	require.NoError(t, store.Create("t1", "m1", domain.Record{Notes: "stale"}))

	report := newCrawler(p, store, nil).Run(context.Background())

	assert.Equal(t, 1, report.TripsLoaded)
	got, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, cache.Entry{AnchorMessageID: "m2", Record: pinned}, got)
}

func TestCrawler_Run_DuplicateThreadAcrossGuildsLoadedOnce(t *testing.T) {
	p := &fakePlatform{
		guilds: []discord.Guild{{ID: "g1"}, {ID: "g2"}},
		threads: map[string][]discord.Channel{
			"g1": {thread("t1")},
			"g2": {thread("t1")},
		},
		pins: map[string][]discord.Message{"t1": {tripMessage("m1", domain.NewRecord())}},
	}

	report := newCrawler(p, cache.New(), nil).Run(context.Background())

	assert.Equal(t, 1, report.ThreadsScanned)
	assert.Equal(t, 1, report.TripsLoaded)
}

func TestCrawler_Run_EveryThreadFailsLeavesCacheEmpty(t *testing.T) {
	p := &fakePlatform{
		guilds:  []discord.Guild{{ID: "g1"}},
		threads: map[string][]discord.Channel{"g1": {thread("t1"), thread("t2")}},
		pinErr: map[string]error{
			"t1": errors.New("connection reset"),
			"t2": errForbidden,
		},
	}
	store := cache.New()
	m := metrics.New()

	report := newCrawler(p, store, m).Run(context.Background())

	assert.Zero(t, report.TripsLoaded)
	assert.Len(t, report.Failures, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CrawlFailures.WithLabelValues(metrics.StagePins)))
	for _, id := range []string{"t1", "t2"} {
		_, err := store.Get(id)
		assert.ErrorIs(t, err, domain.ErrNotATripThread)
	}
}

// panicPlatform blows up while listing guilds.
type panicPlatform struct{ fakePlatform }

func (panicPlatform) CurrentUserGuilds(context.Context) ([]discord.Guild, error) {
	panic("unexpected nil response")
}

func TestCrawler_Run_PanicIsContained(t *testing.T) {
	store := cache.New()

	assert.NotPanics(t, func() {
		newCrawler(&panicPlatform{}, store, nil).Run(context.Background())
	})
}

// threadPanicPlatform blows up while listing the threads of one guild.
type threadPanicPlatform struct {
	*fakePlatform
	badGuild string
}

func (p threadPanicPlatform) ActiveThreads(ctx context.Context, guildID string) ([]discord.Channel, error) {
	if guildID == p.badGuild {
		panic("unexpected nil response")
	}
	return p.fakePlatform.ActiveThreads(ctx, guildID)
}

func TestCrawler_Run_GuildPanicSkipsOnlyThatGuild(t *testing.T) {
	record := domain.Record{StartDate: "June 3"}
	p := threadPanicPlatform{
		fakePlatform: &fakePlatform{
			guilds:  []discord.Guild{{ID: "g-bad"}, {ID: "g1"}},
			threads: map[string][]discord.Channel{"g1": {thread("t1")}},
			pins:    map[string][]discord.Message{"t1": {tripMessage("m1", record)}},
		},
		badGuild: "g-bad",
	}
	store := cache.New()

	var report recovery.Report
	require.NotPanics(t, func() {
		report = newCrawler(p, store, nil).Run(context.Background())
	})

	assert.Equal(t, 2, report.GuildsScanned)
	assert.Equal(t, 1, report.TripsLoaded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, metrics.StageThreads, report.Failures[0].Stage)
	assert.Equal(t, "g-bad", report.Failures[0].GuildID)

	got, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, record, got.Record)
}
