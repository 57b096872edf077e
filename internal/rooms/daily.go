package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRoomTTL = time.Hour

// Room is a provisioned Daily room.
type Room struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Client provisions Daily rooms and meeting tokens.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateRoom provisions a private audio room that expires after an
// hour.
func (c *Client) CreateRoom(ctx context.Context) (Room, error) {
	body := map[string]any{
		"privacy": "private",
		"properties": map[string]any{
			"exp":                time.Now().Add(defaultRoomTTL).Unix(),
			"enable_chat":        false,
			"enable_screenshare": false,
			"start_video_off":    true,
		},
	}
	var room Room
	if err := c.post(ctx, "/rooms", body, &room); err != nil {
		return Room{}, err
	}
	return room, nil
}

// CreateToken mints a meeting token for one room participant.
func (c *Client) CreateToken(ctx context.Context, roomName string, isOwner bool) (string, error) {
	body := map[string]any{
		"properties": map[string]any{
			"room_name": roomName,
			"is_owner":  isOwner,
			"exp":       time.Now().Add(defaultRoomTTL).Unix(),
		},
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/meeting-tokens", body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// DeleteRoom tears a room down.
func (c *Client) DeleteRoom(ctx context.Context, roomName string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/rooms/"+url.PathEscape(roomName), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daily request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode daily response: %w", err)
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("daily status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
}
