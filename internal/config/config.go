// Package config loads and validates application configuration from environment variables.
package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pkordes/tripbot/internal/discord"
)

// Config holds all configuration values for the bot.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// LogFormat is "json" (default) or "text" for a coloured console.
	LogFormat string

	// DiscordToken is the bot token. Required.
	DiscordToken string

	// PublicKey verifies inbound interaction signatures. Required, set as
	// hex in DISCORD_PUBLIC_KEY.
	PublicKey ed25519.PublicKey

	// DiscordAPIURL is the REST API base URL. Defaults to discord.DefaultBaseURL.
	DiscordAPIURL string

	// PlansChannel is the text channel trip threads are started in.
	// Defaults to "plans".
	PlansChannel string

	// PartyAName and PartyBName are the display names of the two people
	// sharing trip costs. Default to "Alfredo" and "Rachel".
	PartyAName string
	PartyBName string

	// AutoArchiveMinutes is the auto-archive duration of new trip threads.
	// Must be one of discord.ValidAutoArchiveDurations. Defaults to 10080.
	AutoArchiveMinutes int

	// CrawlConcurrency bounds parallel platform calls during the startup
	// crawl. Defaults to 4.
	CrawlConcurrency int

	// CrawlTimeout bounds the whole startup crawl. Defaults to 2m.
	CrawlTimeout time.Duration

	// ArchiveDelay is how long a settled thread stays open. Defaults to 3s.
	ArchiveDelay time.Duration
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, joined
// with any values that fail to parse.
func Load() (Config, error) {
	return load(true)
}

// LoadForRegistration is Load for the register-commands command, which
// never verifies an interaction and so does not need DISCORD_PUBLIC_KEY.
func LoadForRegistration() (Config, error) {
	return load(false)
}

func load(requirePublicKey bool) (Config, error) {
	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		DiscordToken:  os.Getenv("DISCORD_TOKEN"),
		DiscordAPIURL: getEnv("DISCORD_API_URL", discord.DefaultBaseURL),
		PlansChannel:  getEnv("PLANS_CHANNEL", "plans"),
		PartyAName:    getEnv("PARTY_A_NAME", "Alfredo"),
		PartyBName:    getEnv("PARTY_B_NAME", "Rachel"),
	}

	var missing []string
	if cfg.DiscordToken == "" {
		missing = append(missing, "DISCORD_TOKEN")
	}
	publicKey := os.Getenv("DISCORD_PUBLIC_KEY")
	if publicKey == "" && requirePublicKey {
		missing = append(missing, "DISCORD_PUBLIC_KEY")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", ")))
	}

	if publicKey != "" {
		key, err := parsePublicKey(publicKey)
		if err != nil {
			errs = append(errs, err)
		}
		cfg.PublicKey = key
	}

	var err error
	if cfg.AutoArchiveMinutes, err = getInt("THREAD_AUTO_ARCHIVE_MINUTES", 10080); err != nil {
		errs = append(errs, err)
	} else if !slices.Contains(discord.ValidAutoArchiveDurations, cfg.AutoArchiveMinutes) {
		errs = append(errs, fmt.Errorf("THREAD_AUTO_ARCHIVE_MINUTES must be one of %v, got %d", discord.ValidAutoArchiveDurations, cfg.AutoArchiveMinutes))
	}
	if cfg.CrawlConcurrency, err = getInt("CRAWL_CONCURRENCY", 4); err != nil {
		errs = append(errs, err)
	} else if cfg.CrawlConcurrency < 1 {
		errs = append(errs, fmt.Errorf("CRAWL_CONCURRENCY must be at least 1, got %d", cfg.CrawlConcurrency))
	}
	if cfg.CrawlTimeout, err = getDuration("CRAWL_TIMEOUT", 2*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.ArchiveDelay, err = getDuration("ARCHIVE_DELAY", 3*time.Second); err != nil {
		errs = append(errs, err)
	}
	if strings.EqualFold(cfg.PartyAName, cfg.PartyBName) {
		errs = append(errs, fmt.Errorf("PARTY_A_NAME and PARTY_B_NAME must differ, both are %q", cfg.PartyAName))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: %q is not a valid duration", key, v)
	}
	return d, nil
}

func parsePublicKey(s string) (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("DISCORD_PUBLIC_KEY must be %d hex-encoded bytes", ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(b), nil
}
