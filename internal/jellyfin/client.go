package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const authHeader = `MediaBrowser Client="mediasorter", Device="Server", DeviceId="mediasorter", Version="1.0.0"`

type Client struct {
	BaseURL string
	APIKey  string
	client  *resty.Client
}

func NewClient(url, apiKey string) *Client {
	baseURL := strings.TrimRight(url, "/")
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("X-Emby-Authorization", authHeader).
			SetHeader("X-Emby-Token", apiKey),
	}
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	resp, err := c.client.R().SetContext(ctx).Execute(method, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() >= 400 {
		return resp.Body(), fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}

type PublicSystemInfo struct {
	LocalAddress string `json:"LocalAddress"`
	ServerName   string `json:"ServerName"`
	Version      string `json:"Version"`
	Id           string `json:"Id"`
}

func (c *Client) GetPublicInfo(ctx context.Context) (*PublicSystemInfo, error) {
	data, err := c.do(ctx, "GET", "/System/Info/Public")
	if err != nil {
		return nil, err
	}
	var info PublicSystemInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// RefreshLibrary asks the server to rescan every library.
func (c *Client) RefreshLibrary(ctx context.Context) error {
	_, err := c.do(ctx, "POST", "/Library/Refresh")
	return err
}
