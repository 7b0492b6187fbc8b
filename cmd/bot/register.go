package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pkordes/tripbot/internal/commands"
	"github.com/pkordes/tripbot/internal/config"
	"github.com/pkordes/tripbot/internal/discord"
	"github.com/pkordes/tripbot/internal/domain"
	"github.com/pkordes/tripbot/internal/logging"
)

// registerOptions holds the register-commands flags.
type registerOptions struct {
	GuildID string
	DryRun  bool
}

func newRegisterCommand() *cobra.Command {
	opts := &registerOptions{}

	cmd := &cobra.Command{
		Use:   "register-commands",
		Short: "Register the slash commands with Discord",
		Long: `Replace the bot's slash commands with the ones this build handles.

Commands are registered globally unless --guild is set; guild commands
update immediately, which is handy while testing. Only DISCORD_TOKEN is
required.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRegister(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.GuildID, "guild", "", "register in this guild only")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the commands as JSON instead of registering them")

	return cmd
}

func runRegister(cmd *cobra.Command, opts *registerOptions) error {
	cfg, err := config.LoadForRegistration()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	defs, err := commands.Definitions(domain.NewRoster(cfg.PartyAName, cfg.PartyBName))
	if err != nil {
		return err
	}

	if opts.DryRun {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(defs)
	}

	// Logs go to stderr so stdout stays free for command output.
	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	client, err := discord.NewClient(discord.ClientConfig{
		Token:   cfg.DiscordToken,
		BaseURL: cfg.DiscordAPIURL,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create discord client: %w", err)
	}

	app, err := client.CurrentApplication(cmd.Context())
	if err != nil {
		return fmt.Errorf("looking up application: %w", err)
	}
	registered, err := client.OverwriteCommands(cmd.Context(), app.ID, opts.GuildID, defs)
	if err != nil {
		return fmt.Errorf("registering commands: %w", err)
	}

	scope := "global"
	if opts.GuildID != "" {
		scope = "guild " + opts.GuildID
	}
	for _, c := range registered {
		logger.Debug("command registered", "name", c.Name, "id", c.ID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %d commands for %s (%s).\n", len(registered), app.Name, scope)
	return nil
}
