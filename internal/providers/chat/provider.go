// Package chat abstracts the chat-platform collaborator. The storefront
// only needs channel, role, message and DM primitives; everything else the
// platform offers is out of scope.
package chat

import "context"

type OverwriteType string

const (
	OverwriteMember OverwriteType = "member"
	OverwriteRole   OverwriteType = "role"
)

// PermissionOverwrite scopes channel access to a single member or role.
type PermissionOverwrite struct {
	TargetID string
	Type     OverwriteType
	Allow    []string
	Deny     []string
}

type CreateChannelRequest struct {
	GuildID    string
	Name       string
	Topic      string
	Overwrites []PermissionOverwrite
}

type Provider interface {
	// CreateChannel allocates a private channel and returns its ID.
	CreateChannel(ctx context.Context, req CreateChannelRequest) (string, error)
	// ChannelExists reports whether a previously created channel is still
	// present on the platform. Records referencing deleted channels are
	// marked stale by the caller.
	ChannelExists(ctx context.Context, guildID, channelID string) (bool, error)
	ArchiveChannel(ctx context.Context, guildID, channelID string) error

	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	RevokeRole(ctx context.Context, guildID, userID, roleID string) error

	// PostMessage posts to a channel and returns the message ID so callers
	// can later edit derived views in place.
	PostMessage(ctx context.Context, channelID, content string) (string, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	SendDM(ctx context.Context, userID, content string) error
}

// NoOpProvider satisfies Provider without touching any platform. Used in
// tests and when the bot credentials are absent.
type NoOpProvider struct{}

func (NoOpProvider) CreateChannel(ctx context.Context, req CreateChannelRequest) (string, error) {
	return "", nil
}

func (NoOpProvider) ChannelExists(ctx context.Context, guildID, channelID string) (bool, error) {
	return true, nil
}

func (NoOpProvider) ArchiveChannel(ctx context.Context, guildID, channelID string) error {
	return nil
}

func (NoOpProvider) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	return nil
}

func (NoOpProvider) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	return nil
}

func (NoOpProvider) PostMessage(ctx context.Context, channelID, content string) (string, error) {
	return "", nil
}

func (NoOpProvider) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	return nil
}

func (NoOpProvider) SendDM(ctx context.Context, userID, content string) error {
	return nil
}
