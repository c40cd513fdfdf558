package catalog

import (
	"strings"

	"github.com/pokerjest/mediasorter/internal/tmdb"
)

// Classification 决定目录与命名模板
type Classification string

const (
	ClassMovie   Classification = "movie"
	ClassTV      Classification = "tv"
	ClassAnime   Classification = "anime"
	ClassVariety Classification = "variety"
)

// TMDB genre ids
const (
	genreAnimation   = 16
	genreDocumentary = 99
	genreNews        = 10763
	genreReality     = 10764
	genreTalk        = 10767
)

var (
	animeGenreNames   = []string{"animation", "动画", "動畫"}
	varietyGenreNames = []string{"reality", "documentary", "news", "talk", "真人秀", "纪录", "紀錄", "新闻", "新聞", "脱口秀", "綜藝", "综艺"}
)

// ClassifyGenres maps a tv show's genre tags to anime / variety / tv.
// Animation wins over everything else.
func ClassifyGenres(genres []tmdb.Genre) Classification {
	variety := false
	for _, g := range genres {
		name := strings.ToLower(g.Name)
		switch {
		case g.ID == genreAnimation || containsAny(name, animeGenreNames):
			return ClassAnime
		case g.ID == genreReality, g.ID == genreDocumentary, g.ID == genreNews, g.ID == genreTalk,
			containsAny(name, varietyGenreNames):
			variety = true
		}
	}
	if variety {
		return ClassVariety
	}
	return ClassTV
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
