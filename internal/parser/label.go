package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// LabelHint is parsed from a downloader task label such as
// "黄雀 (2024)-S01-[01-10]-1080p". Episodes is kept verbatim; the episode of a
// file always comes from its filename.
type LabelHint struct {
	Title    string `json:"title"`
	Year     int    `json:"year"`
	Season   int    `json:"season,omitempty"`
	Episodes string `json:"episodes,omitempty"`
	Quality  string `json:"quality"`
}

// Title (Year)[-S<season>][-[<episodes>]]-<quality>
var labelRe = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)(?:-S(\d{1,4}))?(?:-\[([^\]]*)\])?-([^\s\-\[\]]+)$`)

// ParseLabel parses a downloader label; ok is false when the label does not follow the grammar.
func ParseLabel(label string) (*LabelHint, bool) {
	label = strings.TrimSpace(width.Fold.String(label))
	m := labelRe.FindStringSubmatch(label)
	if m == nil {
		return nil, false
	}
	hint := &LabelHint{
		Title:    strings.TrimSpace(m[1]),
		Year:     atoi(m[2]),
		Episodes: m[4],
		Quality:  NormalizeQuality(m[5]),
	}
	if hint.Quality == "" {
		hint.Quality = strings.ToLower(m[5])
	}
	if s := atoi(m[3]); s > 0 && !isYearLike(s) {
		hint.Season = s
	}
	if hint.Title == "" {
		return nil, false
	}
	return hint, true
}

// FirstLabel returns the first candidate that parses as a label hint.
func FirstLabel(candidates []string) *LabelHint {
	for _, c := range candidates {
		if hint, ok := ParseLabel(c); ok {
			return hint
		}
	}
	return nil
}

func (h *LabelHint) isSeries() bool {
	return h.Season > 0 || h.Episodes != ""
}
