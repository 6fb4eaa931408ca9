package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrNotConfigured = errors.New("chat_not_configured")
	ErrRequestFailed = errors.New("chat_request_failed")
)

// RESTProvider talks to the chat platform's HTTP API with a bot token.
type RESTProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewRESTProvider(baseURL, token string) *RESTProvider {
	return &RESTProvider{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type channelPayload struct {
	ID string `json:"id"`
}

type messagePayload struct {
	ID string `json:"id"`
}

func (p *RESTProvider) CreateChannel(ctx context.Context, req CreateChannelRequest) (string, error) {
	overwrites := make([]map[string]any, 0, len(req.Overwrites))
	for _, ow := range req.Overwrites {
		overwrites = append(overwrites, map[string]any{
			"id":    ow.TargetID,
			"type":  string(ow.Type),
			"allow": ow.Allow,
			"deny":  ow.Deny,
		})
	}

	var out channelPayload
	err := p.doJSON(ctx, http.MethodPost, "/guilds/"+req.GuildID+"/channels", map[string]any{
		"name":                  req.Name,
		"topic":                 req.Topic,
		"permission_overwrites": overwrites,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", ErrRequestFailed
	}
	return out.ID, nil
}

func (p *RESTProvider) ChannelExists(ctx context.Context, guildID, channelID string) (bool, error) {
	status, err := p.do(ctx, http.MethodGet, "/channels/"+channelID, nil, nil)
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if status >= http.StatusBadRequest {
		return false, ErrRequestFailed
	}
	return true, nil
}

func (p *RESTProvider) ArchiveChannel(ctx context.Context, guildID, channelID string) error {
	status, err := p.do(ctx, http.MethodDelete, "/channels/"+channelID, nil, nil)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest && status != http.StatusNotFound {
		return ErrRequestFailed
	}
	return nil
}

func (p *RESTProvider) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	return p.roleRequest(ctx, http.MethodPut, guildID, userID, roleID)
}

func (p *RESTProvider) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	return p.roleRequest(ctx, http.MethodDelete, guildID, userID, roleID)
}

func (p *RESTProvider) roleRequest(ctx context.Context, method, guildID, userID, roleID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, userID, roleID)
	status, err := p.do(ctx, method, path, nil, nil)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return ErrRequestFailed
	}
	return nil
}

func (p *RESTProvider) PostMessage(ctx context.Context, channelID, content string) (string, error) {
	var out messagePayload
	err := p.doJSON(ctx, http.MethodPost, "/channels/"+channelID+"/messages", map[string]any{
		"content": content,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (p *RESTProvider) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	return p.doJSON(ctx, http.MethodPatch, "/channels/"+channelID+"/messages/"+messageID, map[string]any{
		"content": content,
	}, &messagePayload{})
}

func (p *RESTProvider) SendDM(ctx context.Context, userID, content string) error {
	var channel channelPayload
	if err := p.doJSON(ctx, http.MethodPost, "/users/@me/channels", map[string]any{
		"recipient_id": userID,
	}, &channel); err != nil {
		return err
	}
	if channel.ID == "" {
		return ErrRequestFailed
	}
	_, err := p.PostMessage(ctx, channel.ID, content)
	return err
}

func (p *RESTProvider) doJSON(ctx context.Context, method, path string, body map[string]any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	status, err := p.do(ctx, method, path, encoded, out)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return ErrRequestFailed
	}
	return nil
}

func (p *RESTProvider) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	if p.baseURL == "" || p.token == "" {
		return 0, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bot "+p.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
