package service

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// similarShare 目录内至少这么多文件基名相似才视为同一批
const similarShare = 0.7

// Group is the set of files of one directory within a flushed batch.
// Similar marks a directory whose files look like episodes of one release.
type Group struct {
	Dir     string
	Files   []string
	Similar bool
}

var (
	baseSxeRe    = regexp.MustCompile(`(?i)\bs\d{1,4}\s*[._\-]?\s*e\d{1,4}\b|\bs\d{1,3}\b|\bep?\d{1,4}\b|\b\d{1,2}x\d{2,3}\b`)
	baseCnRe     = regexp.MustCompile(`第\s*[0-9一二两三四五六七八九十百]+\s*[集话話季期]`)
	baseResRe    = regexp.MustCompile(`(?i)\b(?:\d{3,4}[pi]|[248]k|uhd)\b`)
	baseDateRe   = regexp.MustCompile(`\b(?:19|20)\d{2}[-._]?\d{2}[-._]?\d{2}\b`)
	baseNumberRe = regexp.MustCompile(`\b\d+(?:v\d)?\b`)
	baseSepRe    = regexp.MustCompile(`[\s\[\]()【】._\-]+`)
)

// GroupFiles groups paths by parent directory, in directory order.
func GroupFiles(paths []string) []Group {
	byDir := make(map[string][]string)
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		p = filepath.Clean(p)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		dir := filepath.Dir(p)
		byDir[dir] = append(byDir[dir], p)
	}

	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	groups := make([]Group, 0, len(dirs))
	for _, d := range dirs {
		files := byDir[d]
		sort.Strings(files)
		groups = append(groups, Group{Dir: d, Files: files, Similar: similarFiles(files)})
	}
	return groups
}

func similarFiles(files []string) bool {
	if len(files) < 2 {
		return false
	}
	bases := make([]string, len(files))
	for i, f := range files {
		bases[i] = BaseName(f)
	}

	best := 0
	for _, candidate := range bases {
		if candidate == "" {
			continue
		}
		n := 0
		for _, b := range bases {
			if similarBase(candidate, b) {
				n++
			}
		}
		if n > best {
			best = n
		}
	}
	return float64(best) >= similarShare*float64(len(files))
}

// BaseName strips episode, season, resolution and date tokens from a file name,
// leaving what the episodes of one show have in common.
func BaseName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ToLower(width.Fold.String(name))
	for _, re := range []*regexp.Regexp{baseSxeRe, baseCnRe, baseResRe, baseDateRe, baseNumberRe} {
		name = re.ReplaceAllString(name, " ")
	}
	name = baseSepRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(strings.Join(strings.Fields(name), " "))
}

func similarBase(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return jaccard(tokens(a), tokens(b)) >= similarShare
}

// tokens splits on non letters/digits; every Han character is its own token.
func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	var word []rune
	flush := func() {
		if len(word) > 0 {
			out[string(word)] = struct{}{}
			word = word[:0]
		}
	}
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			out[string(r)] = struct{}{}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, r)
		default:
			flush()
		}
	}
	flush()
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
