package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	numericNameRe = regexp.MustCompile(`^(\d{1,4})\.\w+$`)
	sxeRe         = regexp.MustCompile(`(?i)\bS(\d{1,4})\s*[._\-]?\s*EP?(\d{1,4})\b`)
	nxnRe         = regexp.MustCompile(`\b(\d{1,2})x(\d{2,3})\b`)
	epRe          = regexp.MustCompile(`(?i)\bEP?\s?(\d{1,4})\b`)
	cnEpRe        = regexp.MustCompile(`第\s*([0-9一二两三四五六七八九十百]+)\s*[集话話]`)
	dashEpRe      = regexp.MustCompile(`\s-\s(\d{1,4})(?:v\d)?(?:\s|$|\[|\(|\.)`)
	bracketEpRe   = regexp.MustCompile(`[\[【](\d{1,3})(?:v\d)?[\]】]`)
	looseNumRe    = regexp.MustCompile(`\b(\d{1,3})(?:v\d)?\b`)
)

// Parser turns messy release names into a MediaGuess.
type Parser struct {
	guesser Guesser
	cleaner *Cleaner
}

// New creates a parser. A nil guesser disables the heuristic stage; a nil cleaner
// uses the default denylist.
func New(guesser Guesser, cleaner *Cleaner) *Parser {
	if guesser == nil {
		guesser = NopGuesser{}
	}
	if cleaner == nil {
		cleaner = NewCleaner(nil)
	}
	return &Parser{guesser: guesser, cleaner: cleaner}
}

// Parse extracts a best-effort identity from filename, its folder name and an
// optional downloader label. Every stage only fills fields that are still empty.
// It never fails: a guess without a title is a valid result.
func (p *Parser) Parse(filename, folder string, hint *LabelHint) MediaGuess {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	g := MediaGuess{
		RawName:    base,
		FolderName: folder,
		Extension:  strings.ToLower(ext),
	}

	stem := p.cleaner.Clean(strings.TrimSuffix(base, ext))
	folderName := p.cleaner.Clean(folder)
	if m := groupRe.FindStringSubmatch(stem); len(m) > 1 {
		g.Group = strings.TrimSpace(m[1])
	}

	// 1. 下载器标签优先
	if hint != nil {
		g.applyHint(hint)
	}

	// 纯数字文件名 (05.mp4) 永远是剧集
	numeric := false
	if m := numericNameRe.FindStringSubmatch(base); m != nil {
		numeric = true
		g.Kind = KindTV
		g.Episode = atoi(m[1])
	}

	// 2. general-purpose guesser
	if !numeric {
		p.applyGuesser(&g, stem)
	}

	// 3. regex fallbacks
	if g.Title == "" || (g.Kind != KindMovie && g.Episode == 0) {
		applyFallbacks(&g, stem, numeric)
	}
	technical(&g, stem)

	// 4. 文件夹名兜底
	if folderName != "" {
		applyFolder(&g, folderName)
	}

	// 5. defaults
	if g.Quality == "" {
		g.Quality = DefaultQuality
	}
	if g.Resolution == "" {
		g.Resolution = g.Quality
	}
	if g.Kind == KindUnknown {
		if g.Episode > 0 {
			g.Kind = KindTV
		} else {
			g.Kind = KindMovie
		}
	}
	if isYearLike(g.Season) {
		g.Season = 0
	}
	return g
}

func (g *MediaGuess) applyHint(h *LabelHint) {
	g.Title = h.Title
	g.Year = h.Year
	g.Season = h.Season
	g.Quality = h.Quality
	// 标签没有季/集时不锁定类型, 文件名里的集数标记仍可判定为剧集
	if h.isSeries() {
		g.Kind = KindTV
	}
	g.FromLabel = true
}

func (p *Parser) applyGuesser(g *MediaGuess, stem string) {
	if stem == "" {
		return
	}
	gp := p.guesser.Guess(stem)
	if isYearLike(gp.Season) {
		gp.Season = 0
	}
	// scene parsers mangle CJK titles; those come from the regex stage instead
	if g.Title == "" && !hasHan(stem) {
		if t := englishTitle(gp.Title); t != "" {
			g.Title = t
		}
	}
	if g.Year == 0 && gp.Year > 1900 && gp.Year < 2100 {
		g.Year = gp.Year
	}
	if g.Season == 0 {
		g.Season = gp.Season
	}
	if g.Episode == 0 {
		g.Episode = gp.Episode
	}
	if g.Kind == KindUnknown && (gp.Season > 0 || gp.Episode > 0) {
		g.Kind = KindTV
	}
	if g.Quality == "" {
		g.Quality = NormalizeQuality(gp.Resolution)
	}
	if g.Source == "" {
		g.Source = gp.Source
	}
	if g.VideoCodec == "" {
		g.VideoCodec = strings.ToUpper(gp.VideoCodec)
	}
	if g.AudioCodec == "" {
		g.AudioCodec = strings.ToUpper(gp.AudioCodec)
	}
	if g.Group == "" {
		g.Group = gp.Group
	}
}

func applyFallbacks(g *MediaGuess, stem string, numeric bool) {
	if hasTVMarkers(stem) && g.Kind == KindUnknown {
		g.Kind = KindTV
	}
	if g.Kind == KindTV {
		if g.Season == 0 {
			g.Season = seasonFromName(stem)
		}
		if g.Episode == 0 {
			g.Episode = episodeFromName(stem)
		}
	}
	if g.Title == "" && !numeric {
		g.Title = extractTitle(stem)
	}
	if g.Year == 0 && !numeric {
		g.Year = extractYear(stem)
	}
	if g.Quality == "" {
		g.Quality = NormalizeQuality(stem)
	}
}

func applyFolder(g *MediaGuess, folder string) {
	if g.Title == "" {
		g.Title = extractTitle(folder)
	}
	if g.Year == 0 {
		g.Year = extractYear(folder)
	}
	if g.Kind == KindTV && g.Season == 0 {
		g.Season = ParseSeason(folder)
	}
	if g.Quality == "" {
		g.Quality = NormalizeQuality(folder)
	}
}

func hasTVMarkers(s string) bool {
	return sxeRe.MatchString(s) ||
		nxnRe.MatchString(s) ||
		epRe.MatchString(s) ||
		cnEpRe.MatchString(s) ||
		dashEpRe.MatchString(s) ||
		bracketEpRe.MatchString(s) ||
		explicitSeason(s) > 0
}

func seasonFromName(s string) int {
	if m := sxeRe.FindStringSubmatch(s); len(m) > 2 {
		if n := atoi(m[1]); !isYearLike(n) {
			return n
		}
		return 0
	}
	if m := nxnRe.FindStringSubmatch(s); len(m) > 2 {
		return atoi(m[1])
	}
	return explicitSeason(s)
}

func episodeFromName(s string) int {
	if m := sxeRe.FindStringSubmatch(s); len(m) > 2 {
		return atoi(m[2])
	}
	if m := nxnRe.FindStringSubmatch(s); len(m) > 2 {
		return atoi(m[2])
	}
	if m := epRe.FindStringSubmatch(s); len(m) > 1 {
		return atoi(m[1])
	}
	if m := cnEpRe.FindStringSubmatch(s); len(m) > 1 {
		return chineseNumber(m[1])
	}
	if m := dashEpRe.FindStringSubmatch(s); len(m) > 1 {
		return atoi(m[1])
	}
	for _, m := range bracketEpRe.FindAllStringSubmatch(s, -1) {
		if n := atoi(m[1]); isLikelyEpisodeNumber(n) {
			return n
		}
	}

	// Heuristic: "Title 01" - the last standalone number that is not a year/resolution
	all := looseNumRe.FindAllStringSubmatch(s, -1)
	for i := len(all) - 1; i >= 0; i-- {
		if n := atoi(all[i][1]); isLikelyEpisodeNumber(n) {
			return n
		}
	}
	return 0
}

func isLikelyEpisodeNumber(num int) bool {
	if num == 0 {
		return false
	}
	// Filter out common resolutions if they appear as standalone numbers (rare but possible)
	if num == 480 || num == 720 || num == 1080 || num == 2160 {
		return false
	}
	// Filter out years
	if num > 1900 && num < 2100 {
		return false
	}
	// Filter out video codecs
	if num == 264 || num == 265 {
		return false
	}
	return true
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
