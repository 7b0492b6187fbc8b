package discord

// Guild is the subset of a Discord guild (server) object the bot reads.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChannelType enumerates the Discord channel types the bot distinguishes.
type ChannelType int

const (
	ChannelTypeGuildText     ChannelType = 0
	ChannelTypePublicThread  ChannelType = 11
	ChannelTypePrivateThread ChannelType = 12
)

// Channel is a guild channel or thread. Threads carry their parent text
// channel in ParentID.
type Channel struct {
	ID       string      `json:"id"`
	Type     ChannelType `json:"type"`
	GuildID  string      `json:"guild_id,omitempty"`
	ParentID string      `json:"parent_id,omitempty"`
	Name     string      `json:"name"`
}

// User is a Discord user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// Message is a channel message. The bot only ever reads and writes the plain
// Content field; embeds and components are ignored.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Pinned    bool   `json:"pinned"`
	Author    *User  `json:"author,omitempty"`
}

// AllowedMentions controls which mentions in a message notify anyone.
type AllowedMentions struct {
	Parse []string `json:"parse"`
}

// NoMentions suppresses every ping a message could trigger.
var NoMentions = &AllowedMentions{Parse: []string{}}

// MessageParams is the body of a create-message request.
type MessageParams struct {
	Content         string           `json:"content"`
	Nonce           string           `json:"nonce,omitempty"`
	EnforceNonce    bool             `json:"enforce_nonce,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
}

// StartThreadParams is the body of a start-thread-without-message request.
type StartThreadParams struct {
	Name                string      `json:"name"`
	Type                ChannelType `json:"type"`
	AutoArchiveDuration int         `json:"auto_archive_duration,omitempty"`
}

// ValidAutoArchiveDurations are the thread auto-archive durations Discord
// accepts, in minutes.
var ValidAutoArchiveDurations = []int{60, 1440, 4320, 10080}
