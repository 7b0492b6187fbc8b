package discord

import (
	"context"
	"net/url"
)

// ApplicationCommandType is the kind of application command.
type ApplicationCommandType int

// CommandTypeChatInput is a slash command.
const CommandTypeChatInput ApplicationCommandType = 1

// OptionType is the value type of a command option.
type OptionType int

// OptionTypeString is the only option type the bot registers; every option
// value arrives as text.
const OptionTypeString OptionType = 3

// ApplicationCommand is a slash command definition. The yaml tags let the
// bot keep its definitions in a data file.
type ApplicationCommand struct {
	ID               string                     `json:"id,omitempty" yaml:"-"`
	Name             string                     `json:"name" yaml:"name"`
	Type             ApplicationCommandType     `json:"type" yaml:"type"`
	Description      string                     `json:"description" yaml:"description"`
	Options          []ApplicationCommandOption `json:"options,omitempty" yaml:"options"`
	IntegrationTypes []int                      `json:"integration_types,omitempty" yaml:"integration_types"`
	Contexts         []int                      `json:"contexts,omitempty" yaml:"contexts"`
}

// ApplicationCommandOption is one parameter of a slash command.
type ApplicationCommandOption struct {
	Type        OptionType      `json:"type" yaml:"type"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Required    bool            `json:"required,omitempty" yaml:"required"`
	MaxLength   int             `json:"max_length,omitempty" yaml:"max_length"`
	Choices     []CommandChoice `json:"choices,omitempty" yaml:"choices"`
}

// CommandChoice is one fixed value an option may take.
type CommandChoice struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Application is the subset of the bot's application object the bot reads.
type Application struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CurrentApplication fetches the application the bot token belongs to.
func (c *Client) CurrentApplication(ctx context.Context) (Application, error) {
	var app Application
	if err := c.Get(ctx, "/applications/@me", &app); err != nil {
		return Application{}, err
	}
	return app, nil
}

// OverwriteCommands replaces every command of the application with cmds.
// With an empty guildID the commands are global; otherwise they are
// registered in that guild only, where changes apply immediately.
func (c *Client) OverwriteCommands(ctx context.Context, applicationID, guildID string, cmds []ApplicationCommand) ([]ApplicationCommand, error) {
	path := "/applications/" + url.PathEscape(applicationID)
	if guildID != "" {
		path += "/guilds/" + url.PathEscape(guildID)
	}
	path += "/commands"

	if cmds == nil {
		cmds = []ApplicationCommand{}
	}
	var registered []ApplicationCommand
	if err := c.Put(ctx, path, cmds, &registered); err != nil {
		return nil, err
	}
	return registered, nil
}
