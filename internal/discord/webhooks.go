package discord

import (
	"context"
	"net/url"
)

// Interaction tokens are valid for 15 minutes after the interaction was
// received; every call below fails once the token has expired.

func webhookPath(applicationID, token string) string {
	return "/webhooks/" + url.PathEscape(applicationID) + "/" + url.PathEscape(token)
}

// EditOriginalResponse replaces the content of the response to an
// interaction, typically one answered with Deferred.
func (c *Client) EditOriginalResponse(ctx context.Context, applicationID, token string, data InteractionResponseData) error {
	return c.Patch(ctx, webhookPath(applicationID, token)+"/messages/@original", data, nil)
}

// DeleteOriginalResponse deletes the response to an interaction.
func (c *Client) DeleteOriginalResponse(ctx context.Context, applicationID, token string) error {
	return c.Delete(ctx, webhookPath(applicationID, token)+"/messages/@original")
}

// CreateFollowup posts an additional message for an interaction. Unlike
// the original response, a follow-up may be ephemeral after a deferral.
func (c *Client) CreateFollowup(ctx context.Context, applicationID, token string, data InteractionResponseData) error {
	return c.Post(ctx, webhookPath(applicationID, token), data, nil)
}
