package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

var errForbidden = errors.New("qbittorrent: forbidden")

type QBittorrentClient struct {
	client   *resty.Client
	baseURL  string
	username string
	password string
	logger   zerolog.Logger

	mu      sync.Mutex
	cookies []*http.Cookie // Manually store cookies
}

func NewQBittorrentClient(baseURL, username, password string, logger zerolog.Logger) *QBittorrentClient {
	// 确保 baseURL 不以 / 结尾
	baseURL = strings.TrimSuffix(baseURL, "/")

	client := resty.New().
		SetTimeout(5*time.Second).
		SetBaseURL(baseURL).
		SetHeader("Referer", baseURL).
		SetHeader("Origin", baseURL)

	client.SetRetryCount(2).SetRetryWaitTime(time.Second)

	return &QBittorrentClient{
		client:   client,
		baseURL:  baseURL,
		username: username,
		password: password,
		logger:   logger.With().Str("component", "qbittorrent").Logger(),
	}
}

func (q *QBittorrentClient) Login(ctx context.Context) error {
	resp, err := q.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": q.username,
			"password": q.password,
		}).
		Post("/api/v2/auth/login")
	if err != nil {
		return err
	}

	// qBit 登录失败在 body 返回 "Fails."
	if resp.String() == "Fails." || resp.StatusCode() == http.StatusForbidden {
		return errors.New("login failed: invalid credentials")
	}

	q.mu.Lock()
	q.cookies = resp.Cookies()
	q.mu.Unlock()
	return nil
}

func (q *QBittorrentClient) request(ctx context.Context) *resty.Request {
	req := q.client.R().SetContext(ctx)
	q.mu.Lock()
	if len(q.cookies) > 0 {
		req.SetCookies(q.cookies)
	}
	q.mu.Unlock()
	return req
}

// Torrents lists every task, logging in again once when the session expired.
func (q *QBittorrentClient) Torrents(ctx context.Context) ([]Torrent, error) {
	list, err := q.torrents(ctx)
	if errors.Is(err, errForbidden) && q.username != "" {
		if err := q.Login(ctx); err != nil {
			return nil, err
		}
		list, err = q.torrents(ctx)
	}
	return list, err
}

func (q *QBittorrentClient) torrents(ctx context.Context) ([]Torrent, error) {
	resp, err := q.request(ctx).Get("/api/v2/torrents/info")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusForbidden {
		return nil, errForbidden
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list torrents failed, status: %s", resp.Status())
	}
	var list []Torrent
	if err := json.Unmarshal(resp.Body(), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// TaskLabels implements LabelSource. Any error is logged and treated as "no hint".
func (q *QBittorrentClient) TaskLabels(ctx context.Context, name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	list, err := q.Torrents(ctx)
	if err != nil {
		q.logger.Debug().Err(err).Str("name", name).Msg("task label query failed")
		return nil
	}
	for _, t := range list {
		if t.Name != name && filepath.Base(t.ContentPath) != name {
			continue
		}
		var out []string
		for _, tag := range strings.Split(t.Tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				out = append(out, tag)
			}
		}
		if t.Category != "" {
			out = append(out, t.Category)
		}
		return append(out, t.Name)
	}
	return nil
}

func (q *QBittorrentClient) GetVersion(ctx context.Context) (string, error) {
	resp, err := q.request(ctx).Get("/api/v2/app/version")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("qbittorrent version: %s, body: %s", resp.Status(), resp.String())
	}
	return resp.String(), nil
}
