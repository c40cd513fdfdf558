package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultQuality is used when no stage could determine a quality.
const DefaultQuality = "1080p"

var (
	resNumRe   = regexp.MustCompile(`(?i)\b(\d{3,4})[pi]\b`)
	resDimRe   = regexp.MustCompile(`(?i)\b(?:3840|1920|1280|720)x(\d{3,4})\b`)
	res4kRe    = regexp.MustCompile(`(?i)\b(?:4k|uhd|ultra-?hd|2160)\b`)
	resFullRe  = regexp.MustCompile(`(?i)\b(?:full-?hd|fhd)\b`)
	resHDRe    = regexp.MustCompile(`(?i)\bhd\b`)
	resSrcRe   = regexp.MustCompile(`(?i)\b(?:web-?dl|blu-?ray|br-?rip|bd-?rip)\b`)
	codecRe    = regexp.MustCompile(`(?i)\b(h\.?264|h\.?265|x264|x265|av1|hevc|avc|vp9)\b`)
	audioRe    = regexp.MustCompile(`(?i)\b(flac|aac(?:x[234])?|e?ac3|ddp?(?:5\.1)?|dts(?:-hd)?(?:\s?ma)?|truehd|atmos|opus|mp3)\b`)
	bitRe      = regexp.MustCompile(`(?i)\b(10bit|10-bit|8bit|hi10p|ma10p)\b`)
	sourceRe   = regexp.MustCompile(`(?i)\b(web-?rip|bd-?rip|web-?dl|blu-?ray|dvd-?rip|hdtv|remux|br-?rip)\b`)
	hdTVTokens = regexp.MustCompile(`(?i)\bhd(?:tv|rip|cam|ts)\b`)
)

// NormalizeQuality maps quality tokens found in s to a canonical "<n>p" value.
// Explicit numbers win; synonyms apply only when no number is present.
func NormalizeQuality(s string) string {
	if m := resNumRe.FindStringSubmatch(s); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil && isResolution(n) {
			return strconv.Itoa(n) + "p"
		}
	}
	if m := resDimRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1] + "p"
	}
	switch {
	case res4kRe.MatchString(s):
		return "2160p"
	case resFullRe.MatchString(s):
		return "1080p"
	case resSrcRe.MatchString(s):
		return "1080p"
	case resHDRe.MatchString(hdTVTokens.ReplaceAllString(s, " ")):
		return "720p"
	}
	return ""
}

func isResolution(n int) bool {
	switch n {
	case 360, 480, 540, 576, 720, 1080, 1440, 2160, 4320:
		return true
	}
	return false
}

// technical fills codec / audio / bit depth / source fields still empty on g.
func technical(g *MediaGuess, s string) {
	if g.VideoCodec == "" {
		if m := codecRe.FindStringSubmatch(s); len(m) > 1 {
			g.VideoCodec = strings.ToUpper(strings.ReplaceAll(m[1], ".", ""))
		}
	}
	if g.AudioCodec == "" {
		if m := audioRe.FindStringSubmatch(s); len(m) > 1 {
			g.AudioCodec = strings.ToUpper(m[1])
		}
	}
	if g.BitDepth == "" {
		if m := bitRe.FindStringSubmatch(s); len(m) > 1 {
			if strings.Contains(strings.ToLower(m[1]), "10") {
				g.BitDepth = "10bit"
			} else {
				g.BitDepth = "8bit"
			}
		}
	}
	if g.Source == "" {
		if m := sourceRe.FindStringSubmatch(s); len(m) > 1 {
			g.Source = m[1]
		}
	}
}
