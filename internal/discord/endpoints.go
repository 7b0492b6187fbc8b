package discord

import (
	"context"
	"fmt"
	"net/url"
)

// guildPageSize is the maximum page size of GET /users/@me/guilds.
const guildPageSize = 200

// CurrentUserGuilds lists every guild the bot is a member of, following
// pagination until the last page.
func (c *Client) CurrentUserGuilds(ctx context.Context) ([]Guild, error) {
	var all []Guild
	after := ""
	for {
		query := url.Values{"limit": {fmt.Sprint(guildPageSize)}}
		if after != "" {
			query.Set("after", after)
		}

		var page []Guild
		if err := c.Get(ctx, "/users/@me/guilds?"+query.Encode(), &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < guildPageSize {
			return all, nil
		}
		after = page[len(page)-1].ID
	}
}

// GuildChannels lists the channels of a guild. Threads are not included.
func (c *Client) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var channels []Channel
	if err := c.Get(ctx, "/guilds/"+url.PathEscape(guildID)+"/channels", &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// ActiveThreads lists every active (non-archived) thread in a guild that
// the bot can see.
func (c *Client) ActiveThreads(ctx context.Context, guildID string) ([]Channel, error) {
	var response struct {
		Threads []Channel `json:"threads"`
	}
	if err := c.Get(ctx, "/guilds/"+url.PathEscape(guildID)+"/threads/active", &response); err != nil {
		return nil, err
	}
	return response.Threads, nil
}

// Channel fetches a single channel or thread.
func (c *Client) Channel(ctx context.Context, channelID string) (Channel, error) {
	var channel Channel
	if err := c.Get(ctx, "/channels/"+url.PathEscape(channelID), &channel); err != nil {
		return Channel{}, err
	}
	return channel, nil
}

// PinnedMessages lists the pinned messages of a channel, newest pin first.
func (c *Client) PinnedMessages(ctx context.Context, channelID string) ([]Message, error) {
	var messages []Message
	if err := c.Get(ctx, "/channels/"+url.PathEscape(channelID)+"/pins", &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// StartThread creates a thread in a text channel that is not attached to
// an existing message.
func (c *Client) StartThread(ctx context.Context, channelID string, params StartThreadParams) (Channel, error) {
	var thread Channel
	if err := c.Post(ctx, "/channels/"+url.PathEscape(channelID)+"/threads", params, &thread); err != nil {
		return Channel{}, err
	}
	return thread, nil
}

// CreateMessage posts a message to a channel or thread.
func (c *Client) CreateMessage(ctx context.Context, channelID string, params MessageParams) (Message, error) {
	var message Message
	if err := c.Post(ctx, "/channels/"+url.PathEscape(channelID)+"/messages", params, &message); err != nil {
		return Message{}, err
	}
	return message, nil
}

// EditMessage replaces the content of a message the bot authored.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) (Message, error) {
	body := struct {
		Content         string           `json:"content"`
		AllowedMentions *AllowedMentions `json:"allowed_mentions"`
	}{Content: content, AllowedMentions: NoMentions}

	var message Message
	path := "/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID)
	if err := c.Patch(ctx, path, body, &message); err != nil {
		return Message{}, err
	}
	return message, nil
}

// PinMessage pins a message in its channel.
func (c *Client) PinMessage(ctx context.Context, channelID, messageID string) error {
	path := "/channels/" + url.PathEscape(channelID) + "/pins/" + url.PathEscape(messageID)
	return c.Put(ctx, path, nil, nil)
}

// ArchiveThread archives a thread and, when lock is set, prevents
// non-moderators from unarchiving it.
func (c *Client) ArchiveThread(ctx context.Context, threadID string, lock bool) error {
	body := struct {
		Archived bool `json:"archived"`
		Locked   bool `json:"locked"`
	}{Archived: true, Locked: lock}
	return c.Patch(ctx, "/channels/"+url.PathEscape(threadID), body, nil)
}
