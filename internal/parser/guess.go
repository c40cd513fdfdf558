package parser

import (
	"fmt"
	"strings"
)

// MediaKind 媒体类型 (电影 / 剧集)
type MediaKind string

const (
	KindUnknown MediaKind = ""
	KindMovie   MediaKind = "movie"
	KindTV      MediaKind = "tv"
)

// MediaGuess is the best-effort identity extracted from a filename and its folder.
// Zero values mean "unknown": Year==0, Season==0, Episode==0.
type MediaGuess struct {
	RawName    string    `json:"raw_name"`
	FolderName string    `json:"folder_name"`
	Title      string    `json:"title"`
	Year       int       `json:"year,omitempty"`
	Kind       MediaKind `json:"media_kind"`
	Season     int       `json:"season,omitempty"`
	Episode    int       `json:"episode,omitempty"`
	Quality    string    `json:"quality,omitempty"`
	Resolution string    `json:"resolution,omitempty"`
	VideoCodec string    `json:"video_codec,omitempty"`
	AudioCodec string    `json:"audio_codec,omitempty"`
	BitDepth   string    `json:"bit_depth,omitempty"`
	Source     string    `json:"source,omitempty"`
	Group      string    `json:"group,omitempty"`
	Extension  string    `json:"extension"`
	FromLabel  bool      `json:"from_label,omitempty"`
}

// Usable reports whether the guess carries enough identity to be resolved.
func (g MediaGuess) Usable() bool {
	if strings.TrimSpace(g.Title) == "" {
		return false
	}
	if g.Kind == KindTV && g.Episode <= 0 {
		return false
	}
	return true
}

// EffectiveSeason returns the season number, defaulting tv content to season 1.
func (g MediaGuess) EffectiveSeason() int {
	if g.Season > 0 {
		return g.Season
	}
	if g.Kind == KindTV {
		return 1
	}
	return 0
}

// EpisodeString returns the episode zero-padded to width 2, or "" when unknown.
func (g MediaGuess) EpisodeString() string {
	if g.Episode <= 0 {
		return ""
	}
	return fmt.Sprintf("%02d", g.Episode)
}

// isYearLike 季度号看起来像年份时视为无效
func isYearLike(n int) bool {
	return n >= 1900
}
