package parser

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

var (
	seasonWordRe   = regexp.MustCompile(`\b(?:season|s)\s?(\d{1,3})\b`)
	seasonOrdRe    = regexp.MustCompile(`\b(\d{1,2})(?:nd|rd|th|st)\s?season\b`)
	seasonPartRe   = regexp.MustCompile(`\bpart\s?(\d{1,2})\b`)
	seasonCNRe     = regexp.MustCompile(`第\s*([0-9一二两三四五六七八九十]+)\s*[季期部]`)
	seasonTailRe   = regexp.MustCompile(`\s(\d{1,2})$`)
	seasonRomanMap = []struct {
		suffix string
		val    int
	}{
		{" iii", 3},
		{" ii", 2},
		{" iv", 4},
		{" vi", 6},
		{" v", 5},
	}
)

// ParseSeason 尝试从番剧标题或文件夹名中解析季度号, 无法识别时返回 0
func ParseSeason(title string) int {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return 0
	}

	// 1. "Season 2", "S2", "S02"
	if n := explicitSeason(title); n > 0 {
		return n
	}

	// 2. "2nd season", "part 2"
	if match := seasonOrdRe.FindStringSubmatch(title); len(match) > 1 {
		if val, err := strconv.Atoi(match[1]); err == nil && val > 0 {
			return val
		}
	}
	if match := seasonPartRe.FindStringSubmatch(title); len(match) > 1 {
		if val, err := strconv.Atoi(match[1]); err == nil && val > 0 {
			return val
		}
	}

	// 3. 简单的 "标题 2"
	if match := seasonTailRe.FindStringSubmatch(title); len(match) > 1 {
		if val, err := strconv.Atoi(match[1]); err == nil && val > 0 {
			return val
		}
	}

	// 4. 罗马数字 (II, III, IV, V)
	for _, r := range seasonRomanMap {
		if strings.HasSuffix(title, r.suffix) {
			return r.val
		}
	}
	return 0
}

// explicitSeason only accepts unambiguous season markers (S02, Season 2, 第二季).
func explicitSeason(s string) int {
	s = strings.ToLower(s)
	if match := seasonWordRe.FindStringSubmatch(s); len(match) > 1 {
		if val, err := strconv.Atoi(match[1]); err == nil && val > 0 && !isYearLike(val) {
			return val
		}
	}
	if match := seasonCNRe.FindStringSubmatch(s); len(match) > 1 {
		if val := chineseNumber(match[1]); val > 0 && !isYearLike(val) {
			return val
		}
	}
	return 0
}

// chineseNumber converts "12", "十二", "二十三", "两" to an int; 0 when unparseable.
func chineseNumber(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	digits := map[rune]int{'一': 1, '二': 2, '两': 2, '三': 3, '四': 4, '五': 5, '六': 6, '七': 7, '八': 8, '九': 9}
	total, current := 0, 0
	for _, r := range s {
		switch {
		case r == '十':
			if current == 0 {
				current = 1
			}
			total += current * 10
			current = 0
		case digits[r] > 0:
			current = digits[r]
		default:
			return 0
		}
	}
	return total + current
}

var seasonFolderRe = regexp.MustCompile(`(?i)^(?:season\s*\d{1,3}|s\d{1,3}|第\s*[0-9一二两三四五六七八九十]+\s*季)$`)

// SeasonFolder reports whether name is a bare season directory ("Season 2", "S02",
// "第二季") and returns its number.
func SeasonFolder(name string) (int, bool) {
	name = strings.TrimSpace(width.Fold.String(name))
	if !seasonFolderRe.MatchString(name) {
		return 0, false
	}
	n := explicitSeason(name)
	return n, n > 0
}
