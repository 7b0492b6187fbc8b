package discord

import (
	"encoding/json"
	"strings"
)

// InteractionType is the kind of inbound interaction.
type InteractionType int

const (
	InteractionPing               InteractionType = 1
	InteractionApplicationCommand InteractionType = 2
	InteractionMessageComponent   InteractionType = 3
)

// Interaction is the payload Discord POSTs to the interactions endpoint.
type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          InteractionType `json:"type"`
	Data          *CommandData    `json:"data,omitempty"`
	GuildID       string          `json:"guild_id,omitempty"`
	ChannelID     string          `json:"channel_id,omitempty"`
	Channel       *Channel        `json:"channel,omitempty"`
	Member        *Member         `json:"member,omitempty"`
	User          *User           `json:"user,omitempty"`
	Token         string          `json:"token"`
}

// Member is a guild member; it wraps the user for interactions sent from a guild.
type Member struct {
	User *User `json:"user,omitempty"`
}

// UserID returns the invoking user's ID. Interactions from a guild carry
// the user inside member; interactions from DMs carry it at the top level.
func (i Interaction) UserID() string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// CommandData is the data of an application command interaction.
type CommandData struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Options []CommandOption `json:"options,omitempty"`
}

// CommandOption is one option value supplied with a command.
type CommandOption struct {
	Name  string          `json:"name"`
	Type  int             `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Text returns the option value as text. String options are unquoted; any
// other JSON value is returned verbatim.
func (o CommandOption) Text() string {
	var s string
	if err := json.Unmarshal(o.Value, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(o.Value))
}

// Option returns the text value of the named option, if it was supplied.
func (d *CommandData) Option(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, o := range d.Options {
		if o.Name == name {
			return o.Text(), true
		}
	}
	return "", false
}

// InteractionResponseType is the kind of response to an interaction.
type InteractionResponseType int

const (
	ResponsePong                   InteractionResponseType = 1
	ResponseChannelMessage         InteractionResponseType = 4
	ResponseDeferredChannelMessage InteractionResponseType = 5
)

// MessageFlags are bit flags on a message.
type MessageFlags int

// FlagEphemeral makes a response visible only to the invoking user.
const FlagEphemeral MessageFlags = 1 << 6

// InteractionResponse is the body returned from the interactions endpoint.
type InteractionResponse struct {
	Type InteractionResponseType  `json:"type"`
	Data *InteractionResponseData `json:"data,omitempty"`
}

// InteractionResponseData is the message attached to an interaction response.
type InteractionResponseData struct {
	Content         string           `json:"content"`
	Flags           MessageFlags     `json:"flags,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
}

// Pong is the response to a PING interaction.
func Pong() InteractionResponse {
	return InteractionResponse{Type: ResponsePong}
}

// Reply is a channel message response visible to everyone in the channel.
func Reply(content string) InteractionResponse {
	return InteractionResponse{
		Type: ResponseChannelMessage,
		Data: &InteractionResponseData{Content: content, AllowedMentions: NoMentions},
	}
}

// EphemeralReply is a channel message response only the invoking user sees.
func EphemeralReply(content string) InteractionResponse {
	return InteractionResponse{
		Type: ResponseChannelMessage,
		Data: &InteractionResponseData{Content: content, Flags: FlagEphemeral, AllowedMentions: NoMentions},
	}
}

// Deferred acknowledges a command whose reply follows later through
// EditOriginalResponse. Discord shows "thinking" until then.
func Deferred() InteractionResponse {
	return InteractionResponse{Type: ResponseDeferredChannelMessage}
}
