package renamer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMaxNameLength 单个文件/文件夹名的最大长度 (rune)
const DefaultMaxNameLength = 200

// MediaInfo is the record a naming template is rendered against.
type MediaInfo struct {
	Title        string
	Year         int
	Season       int
	Episode      int
	EpisodeTitle string
	Resolution   string
	Quality      string
	Extension    string
	CatalogID    int
	VideoCodec   string
	AudioCodec   string
	BitDepth     string
	Source       string
	Group        string
}

func (m MediaInfo) lookup(field string) (string, int, bool) {
	switch strings.ToLower(field) {
	case "title", "name":
		return m.Title, 0, false
	case "year":
		return "", m.Year, true
	case "season":
		return "", m.Season, true
	case "episode":
		return "", m.Episode, true
	case "episode_title", "episode_name":
		return m.EpisodeTitle, 0, false
	case "resolution":
		return m.Resolution, 0, false
	case "quality":
		return m.Quality, 0, false
	case "extension", "ext":
		return m.Extension, 0, false
	case "catalog_id", "tmdb_id", "tmdbid":
		return "", m.CatalogID, true
	case "video_codec", "codec":
		return m.VideoCodec, 0, false
	case "audio_codec", "audio":
		return m.AudioCodec, 0, false
	case "bit_depth", "bitdepth":
		return m.BitDepth, 0, false
	case "source":
		return m.Source, 0, false
	case "group", "release_group":
		return m.Group, 0, false
	}
	return "", 0, false
}

// value returns the formatted field; spec is an optional zero-padding format like "00".
func (m MediaInfo) value(field, spec string) string {
	s, n, numeric := m.lookup(field)
	if !numeric {
		return strings.TrimSpace(s)
	}
	if n <= 0 {
		return ""
	}
	if spec != "" {
		return fmt.Sprintf("%0*d", len(spec), n)
	}
	return strconv.Itoa(n)
}

var (
	// {field?(literal)}, literal 到第一个 ")}" 为止, 可以包含 {field}
	optionalRe    = regexp.MustCompile(`\{(\w+)\?\((.*?)\)\}`)
	placeholderRe = regexp.MustCompile(`([ \t]*)\{(\w+)(?::([^}]+))?\}([ \t]*)`)
	illegalRe     = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	emptyPairRe   = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	multiSpaceRe  = regexp.MustCompile(`\s+`)
	sepRunRe      = regexp.MustCompile(`([-._])(?:\s*[-._])+`)
	danglingRe    = regexp.MustCompile(`^[\s\-_.]+|[\s\-_.]+$`)
)

// Render renders tpl against info with the default maximum length.
func Render(tpl string, info MediaInfo) string {
	return RenderMax(tpl, info, DefaultMaxNameLength)
}

// RenderMax substitutes placeholders, sanitizes the result and truncates it to
// maxLen runes. When the rendered name ends with info.Extension the extension is
// preserved through truncation.
func RenderMax(tpl string, info MediaInfo, maxLen int) string {
	s := optionalRe.ReplaceAllStringFunc(tpl, func(m string) string {
		sub := optionalRe.FindStringSubmatch(m)
		if info.value(sub[1], "") == "" {
			return ""
		}
		return sub[2]
	})

	s = placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		v := info.value(sub[2], sub[3])
		if v == "" {
			// 空字段连同两侧空白折叠成一个空格, 两侧没有空白时直接删掉
			if sub[1] == "" && sub[4] == "" {
				return ""
			}
			return " "
		}
		return sub[1] + v + sub[4]
	})

	stem, ext := s, ""
	if e := info.Extension; e != "" && strings.HasSuffix(strings.ToLower(s), strings.ToLower(e)) {
		stem, ext = s[:len(s)-len(e)], s[len(s)-len(e):]
	}

	stem = sanitize(stem)
	limit := maxLen - utf8.RuneCountInString(ext)
	if maxLen > 0 && limit > 0 && utf8.RuneCountInString(stem) > limit {
		stem = sanitize(string([]rune(stem)[:limit]))
	}
	return stem + illegalRe.ReplaceAllString(ext, "")
}

func sanitize(s string) string {
	s = illegalRe.ReplaceAllString(s, "")
	// 嵌套的空括号需要多轮
	for {
		next := emptyPairRe.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = sepRunRe.ReplaceAllString(s, "$1")
	return danglingRe.ReplaceAllString(s, "")
}

// Built-in templates, used whenever a configured template is empty.
const (
	DefaultMovieFolder  = "{title}{year?( ({year}))}"
	DefaultMovieFile    = "{title}{year?( ({year}))}{resolution?( - {resolution})}{extension}"
	DefaultSeriesFolder = "{title}{year?( ({year}))}"
	DefaultSeasonFolder = "Season {season}"
	DefaultSeriesFile   = "{title} - S{season:00}E{episode:00} - {episode_title}{extension}"
)

// Templates holds folder/file templates per classification.
type Templates struct {
	Folder       map[string]string
	File         map[string]string
	SeasonFolder string
	MaxLength    int
}

// DefaultTemplates returns the built-in set for movie / tv / anime / variety.
func DefaultTemplates() Templates {
	t := Templates{
		Folder:       map[string]string{"movie": DefaultMovieFolder},
		File:         map[string]string{"movie": DefaultMovieFile},
		SeasonFolder: DefaultSeasonFolder,
		MaxLength:    DefaultMaxNameLength,
	}
	for _, c := range []string{"tv", "anime", "variety"} {
		t.Folder[c] = DefaultSeriesFolder
		t.File[c] = DefaultSeriesFile
	}
	return t
}

// Select picks the folder and file template for a classification, falling back
// to the media kind's template and then to the built-ins.
func (t Templates) Select(class, kind string) (folder, file string) {
	folder = firstTemplate(t.Folder[class], t.Folder[kind])
	file = firstTemplate(t.File[class], t.File[kind])
	if folder == "" {
		folder = DefaultSeriesFolder
		if kind == "movie" {
			folder = DefaultMovieFolder
		}
	}
	if file == "" {
		file = DefaultSeriesFile
		if kind == "movie" {
			file = DefaultMovieFile
		}
	}
	return folder, file
}

// Names renders the folder, season folder ("" for movies) and file name for info.
func (t Templates) Names(class, kind string, info MediaInfo) (folder, season, file string) {
	folderTpl, fileTpl := t.Select(class, kind)
	max := t.MaxLength
	if max <= 0 {
		max = DefaultMaxNameLength
	}

	folder = RenderMax(folderTpl, info, max)
	if kind != "movie" {
		tpl := t.SeasonFolder
		if strings.TrimSpace(tpl) == "" {
			tpl = DefaultSeasonFolder
		}
		season = RenderMax(tpl, info, max)
	}
	file = RenderMax(fileTpl, info, max)
	if info.Extension != "" && !strings.HasSuffix(strings.ToLower(file), strings.ToLower(info.Extension)) {
		file = RenderMax(fileTpl+"{extension}", info, max)
	}
	return folder, season, file
}

func firstTemplate(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
