package parser

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/width"
)

// DefaultDenylist 常见的广告语 / 站点名 / 发布组标记, 在任何解析之前从文件名和文件夹名中移除
var DefaultDenylist = []string{
	"高清影视之家发布",
	"高清影视之家",
	"更多蓝光电影访问",
	"BD影视分享",
	"高清剧集网",
	"电影天堂",
	"阳光电影",
	"人人影视",
	"电影港",
	"最新电影",
	"国语中字",
	"中英双字",
	"hdbthd.com",
	"bd2020.co",
	"bd2020",
	"dygang",
	"dy2018",
	"ygdy8",
	"btbtdy",
	"gaoqing.fm",
	"rarbg",
	"yts.mx",
	"yify",
	"eztv",
	"ettv",
}

var (
	adBlockRe   = regexp.MustCompile(`【[^】]*(?:www\.|\.com|\.net|\.cc|\.co|发布|下载|访问)[^】]*】`)
	urlRe       = regexp.MustCompile(`(?i)(?:https?://)?www\.[a-z0-9\-]+(?:\.[a-z0-9\-]+)*\.[a-z]{2,}`)
	leadTagRe   = regexp.MustCompile(`^\s*(?:\[[^\]]*\]|【[^】]*】)\s*`)
	groupRe     = regexp.MustCompile(`^\s*[\[【]([^\]】]+)[\]】]`)
	spaceRe     = regexp.MustCompile(`\s+`)
	emptyPairRe = regexp.MustCompile(`\(\s*\)|\[\s*\]|【\s*】`)
	hanRunRe    = regexp.MustCompile(`\p{Han}[\p{Han}0-9·：:！!？?，,]*`)
	hanRe       = regexp.MustCompile(`\p{Han}`)
	yearRe      = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)\d{2})(?:[^0-9]|$)`)

	// titleStopRe marks where the title part of a release name ends.
	titleStopRe = regexp.MustCompile(`(?i)(\(|\[|【|\bS\d{1,2}\s*E\d+|\bS\d{1,2}\b|\bE[P]?\d{1,4}\b|第\s*[0-9一二两三四五六七八九十百]+\s*[集话話季期部]|\b\d{3,4}[pi]\b|\b(?:4k|uhd|ultrahd|fullhd|fhd|hd|web-?dl|web-?rip|blu-?ray|brrip|bdrip|hdtv|x26[45]|h\.?26[45]|hevc)\b|\s-\s\d{1,4}\b)`)
)

// Cleaner strips denylisted substrings before any heuristic runs.
type Cleaner struct {
	re *regexp.Regexp
}

// NewCleaner builds a case-insensitive cleaner from the default list plus extra keywords.
func NewCleaner(extra []string) *Cleaner {
	words := make([]string, 0, len(DefaultDenylist)+len(extra))
	seen := make(map[string]bool)
	for _, w := range append(append([]string{}, DefaultDenylist...), extra...) {
		w = strings.TrimSpace(w)
		key := strings.ToLower(w)
		if w == "" || seen[key] {
			continue
		}
		seen[key] = true
		words = append(words, w)
	}
	// 长的优先匹配, 避免 "bd2020" 先于 "bd2020.co" 被替换
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	c := &Cleaner{}
	if len(quoted) > 0 {
		c.re = regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
	}
	return c
}

// Clean folds full-width characters, drops ad blocks and URLs, then removes denylisted words.
func (c *Cleaner) Clean(s string) string {
	if s == "" {
		return s
	}
	s = width.Fold.String(s)
	s = adBlockRe.ReplaceAllString(s, " ")
	s = urlRe.ReplaceAllString(s, " ")
	if c != nil && c.re != nil {
		s = c.re.ReplaceAllString(s, " ")
	}
	s = emptyPairRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// IsVideoFile checks if the file is a video based on extension
func IsVideoFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mkv", ".avi", ".mov", ".flv", ".wmv", ".ts", ".rmvb", ".webm", ".m2ts", ".m4v", ".mpg", ".mpeg", ".iso":
		return true
	}
	return false
}

// hasHan 是否包含中文字符
func hasHan(s string) bool {
	return hanRe.MatchString(s)
}

// extractTitle pulls a Chinese or English title out of a cleaned release name.
func extractTitle(s string) string {
	s = leadTagRe.ReplaceAllString(s, "")
	head := s[:titleStop(s)]
	if han := hanRunRe.FindString(head); han != "" {
		return trimTitle(han)
	}
	if t := englishTitle(head); t != "" {
		return t
	}
	// 标题在标记之后的情况, 例如 "[01] 黄雀"
	if han := hanRunRe.FindString(s); han != "" {
		return trimTitle(han)
	}
	return ""
}

// titleStop returns the byte offset where the title part of s ends.
func titleStop(s string) int {
	stop := len(s)
	if loc := titleStopRe.FindStringIndex(s); loc != nil {
		stop = loc[0]
	}
	if loc := yearRe.FindStringSubmatchIndex(s); loc != nil && loc[2] < stop {
		stop = loc[2]
	}
	return stop
}

func englishTitle(s string) string {
	s = strings.NewReplacer(".", " ", "_", " ").Replace(s)
	s = emptyPairRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	s = trimTitle(s)
	// 纯数字不是标题
	if strings.Trim(s, "0123456789 ") == "" {
		return ""
	}
	return s
}

func trimTitle(s string) string {
	return strings.Trim(strings.TrimSpace(s), " -_.·:：,，")
}

// extractYear returns the first plausible release year (19xx/20xx) or 0.
func extractYear(s string) int {
	m := yearRe.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	return atoi(m[1])
}
