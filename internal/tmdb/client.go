package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	BaseURL = "https://api.themoviedb.org/3"

	MediaMovie = "movie"
	MediaTV    = "tv"
)

// ErrNotFound is returned when TMDB answers 404 for an id.
var ErrNotFound = errors.New("tmdb: not found")

type Client struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

// NewClient creates a TMDB client. A v4 read access token (JWT) is sent as a
// Bearer header, a v3 key as the api_key query parameter.
func NewClient(apiKey, baseURL, proxyURL string) *Client {
	c := resty.New()
	c.SetTimeout(10 * time.Second)
	if proxyURL != "" {
		c.SetProxy(proxyURL)
	}
	c.SetHeader("Accept", "application/json")

	apiKey = strings.TrimSpace(apiKey)
	if isBearerToken(apiKey) {
		c.SetHeader("Authorization", "Bearer "+apiKey)
	} else if apiKey != "" {
		c.SetQueryParam("api_key", apiKey)
	}

	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{
		client:  c,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func isBearerToken(key string) bool {
	return strings.HasPrefix(key, "eyJ") && strings.Count(key, ".") == 2
}

type SearchResponse struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
}

// Result is one row of /search/movie or /search/tv.
type Result struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
	Name          string `json:"name"`
	OriginalName  string `json:"original_name"`
	FirstAirDate  string `json:"first_air_date"`
	GenreIDs      []int  `json:"genre_ids"`
}

// DisplayTitle returns the localized title (movie) or name (tv).
func (r Result) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// Original returns original_title / original_name.
func (r Result) Original() string {
	if r.OriginalTitle != "" {
		return r.OriginalTitle
	}
	return r.OriginalName
}

// Year returns the year of release_date / first_air_date, 0 when missing.
func (r Result) Year() int {
	d := r.ReleaseDate
	if d == "" {
		d = r.FirstAirDate
	}
	return yearOf(d)
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Details struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	Name          string  `json:"name"`
	OriginalTitle string  `json:"original_title"`
	OriginalName  string  `json:"original_name"`
	ReleaseDate   string  `json:"release_date"`
	FirstAirDate  string  `json:"first_air_date"`
	Genres        []Genre `json:"genres"`
}

type Episode struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	AirDate       string `json:"air_date"`
}

// Search queries /search/{movie|tv}.
func (c *Client) Search(ctx context.Context, kind, query, language string) ([]Result, error) {
	var result SearchResponse
	params := map[string]string{
		"query":         query,
		"include_adult": "false",
	}
	if language != "" {
		params["language"] = language
	}
	if err := c.get(ctx, "/search/"+mediaPath(kind), params, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// Details fetches /{movie|tv}/{id}, used for genre classification.
func (c *Client) Details(ctx context.Context, kind string, id int, language string) (*Details, error) {
	var d Details
	if err := c.get(ctx, fmt.Sprintf("/%s/%d", mediaPath(kind), id), langParam(language), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// EpisodeDetails fetches /tv/{id}/season/{s}/episode/{e}.
func (c *Client) EpisodeDetails(ctx context.Context, showID, season, episode int, language string) (*Episode, error) {
	var ep Episode
	path := fmt.Sprintf("/tv/%d/season/%d/episode/%d", showID, season, episode)
	if err := c.get(ctx, path, langParam(language), &ep); err != nil {
		return nil, err
	}
	return &ep, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(c.baseURL + path)
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("TMDB Error: %s", resp.Status())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}

func mediaPath(kind string) string {
	if kind == MediaMovie {
		return MediaMovie
	}
	return MediaTV
}

func langParam(language string) map[string]string {
	if language == "" {
		return nil
	}
	return map[string]string{"language": language}
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}
