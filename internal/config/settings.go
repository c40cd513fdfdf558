package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pokerjest/mediasorter/internal/model"
	"github.com/pokerjest/mediasorter/internal/renamer"
	"github.com/pokerjest/mediasorter/internal/tmdb"
)

// ErrMissingSetting is returned by Validate when a required setting is empty.
var ErrMissingSetting = errors.New("missing setting")

type TMDBSettings struct {
	APIKey    string
	BaseURL   string
	Proxy     string
	Primary   string
	Secondary string
	Fallback  string
}

type QBSettings struct {
	URL      string
	Username string
	Password string
}

type JellyfinSettings struct {
	URL    string
	APIKey string
}

// Settings is the typed engine configuration, built once at startup.
type Settings struct {
	SourceDirs      []string
	DestDir         string
	UnidentifiedDir string

	Action    renamer.Action
	Overwrite renamer.OverwritePolicy
	Templates renamer.Templates
	// classification -> directory under DestDir ("" = directly under DestDir)
	CategoryDirs map[string]string

	ExcludeKeywords []string
	RetryKeywords   []string
	Denylist        []string
	SidecarExts     []string
	Guesser         string

	TMDB TMDBSettings

	MultithreadEnabled bool
	Workers            int
	Debounce           time.Duration
	MinFileSize        int64
	MaxNameLength      int

	QB          QBSettings
	Jellyfin    JellyfinSettings
	HookCommand string
	RescanCron  string
}

// Defaults returns the built-in value of every engine key.
func Defaults() map[string]string {
	return map[string]string{
		model.ConfigKeyTransferAction:  string(renamer.ActionMove),
		model.ConfigKeyOverwritePolicy: string(renamer.OverwriteSkip),

		model.ConfigKeyTemplateMovieFolder:   renamer.DefaultMovieFolder,
		model.ConfigKeyTemplateMovieFile:     renamer.DefaultMovieFile,
		model.ConfigKeyTemplateTVFolder:      renamer.DefaultSeriesFolder,
		model.ConfigKeyTemplateTVFile:        renamer.DefaultSeriesFile,
		model.ConfigKeyTemplateSeasonFolder:  renamer.DefaultSeasonFolder,
		model.ConfigKeyCategoryDirMovie:      "Movies",
		model.ConfigKeyCategoryDirTV:         "TV Shows",
		model.ConfigKeyCategoryDirAnime:      "Anime",
		model.ConfigKeyCategoryDirVariety:    "Variety",
		model.ConfigKeyExcludeKeywords:       "sample,trailer,预告",
		model.ConfigKeySidecarExts:           strings.Join(renamer.DefaultSidecarExts, ","),
		model.ConfigKeyGuesser:               "rls",
		model.ConfigKeyTMDBBaseURL:           tmdb.BaseURL,
		model.ConfigKeyTMDBLanguagePrimary:   "zh-CN",
		model.ConfigKeyTMDBLanguageSecondary: "zh-TW",
		model.ConfigKeyTMDBLanguageFallback:  "en-US",
		model.ConfigKeyMultithreadEnabled:    "false",
		model.ConfigKeyMultithreadWorkers:    "4",
		model.ConfigKeyDebounceSeconds:       "10",
		model.ConfigKeyMinFileSizeMB:         "10",
		model.ConfigKeyMaxNameLength:         strconv.Itoa(renamer.DefaultMaxNameLength),
		model.ConfigKeyRescanCron:            "@every 30m",
	}
}

// 这些键允许显式设为空
var emptyAllowed = map[string]bool{
	model.ConfigKeyCategoryDirMovie:   true,
	model.ConfigKeyCategoryDirTV:      true,
	model.ConfigKeyCategoryDirAnime:   true,
	model.ConfigKeyCategoryDirVariety: true,
}

// BuildSettings merges the layers (later wins) on top of Defaults. Empty values
// are ignored except for category dirs, where "" means directly under DestDir.
// Invalid values fall back to defaults and are reported as warnings.
func BuildSettings(layers ...map[string]string) (*Settings, []string) {
	kv := Defaults()
	for _, layer := range layers {
		for k, v := range layer {
			k, v = strings.ToLower(strings.TrimSpace(k)), strings.TrimSpace(v)
			if v != "" || emptyAllowed[k] {
				kv[k] = v
			}
		}
	}

	var warnings []string
	warnf := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	s := &Settings{
		SourceDirs:      splitList(kv[model.ConfigKeySourceDirs]),
		DestDir:         kv[model.ConfigKeyDestDir],
		UnidentifiedDir: kv[model.ConfigKeyUnidentifiedDir],
		ExcludeKeywords: splitList(kv[model.ConfigKeyExcludeKeywords]),
		RetryKeywords:   splitList(kv[model.ConfigKeyRetryKeywords]),
		Denylist:        splitList(kv[model.ConfigKeyDenylist]),
		SidecarExts:     splitList(kv[model.ConfigKeySidecarExts]),
		Guesser:         kv[model.ConfigKeyGuesser],
		TMDB: TMDBSettings{
			APIKey:    kv[model.ConfigKeyTMDBApiKey],
			BaseURL:   kv[model.ConfigKeyTMDBBaseURL],
			Proxy:     kv[model.ConfigKeyTMDBProxy],
			Primary:   kv[model.ConfigKeyTMDBLanguagePrimary],
			Secondary: kv[model.ConfigKeyTMDBLanguageSecondary],
			Fallback:  kv[model.ConfigKeyTMDBLanguageFallback],
		},
		QB: QBSettings{
			URL:      kv[model.ConfigKeyQBUrl],
			Username: kv[model.ConfigKeyQBUsername],
			Password: kv[model.ConfigKeyQBPassword],
		},
		Jellyfin: JellyfinSettings{
			URL:    kv[model.ConfigKeyJellyfinUrl],
			APIKey: kv[model.ConfigKeyJellyfinApiKey],
		},
		HookCommand: kv[model.ConfigKeyHookCommand],
		RescanCron:  kv[model.ConfigKeyRescanCron],
		CategoryDirs: map[string]string{
			"movie":   kv[model.ConfigKeyCategoryDirMovie],
			"tv":      kv[model.ConfigKeyCategoryDirTV],
			"anime":   kv[model.ConfigKeyCategoryDirAnime],
			"variety": kv[model.ConfigKeyCategoryDirVariety],
		},
	}
	if s.UnidentifiedDir == "" && s.DestDir != "" {
		s.UnidentifiedDir = filepath.Join(s.DestDir, "Unidentified")
	}

	if a, ok := renamer.ParseAction(kv[model.ConfigKeyTransferAction]); ok {
		s.Action = a
	} else {
		warnf("unknown transfer_action %q, using move", kv[model.ConfigKeyTransferAction])
		s.Action = renamer.ActionMove
	}
	if p, ok := renamer.ParseOverwritePolicy(kv[model.ConfigKeyOverwritePolicy]); ok {
		s.Overwrite = p
	} else {
		warnf("unknown overwrite_policy %q, using skip", kv[model.ConfigKeyOverwritePolicy])
		s.Overwrite = renamer.OverwriteSkip
	}

	s.MultithreadEnabled = parseBool(kv[model.ConfigKeyMultithreadEnabled])
	s.Workers = intOr(kv, model.ConfigKeyMultithreadWorkers, 4, warnf)
	if s.Workers < 1 {
		s.Workers = 1
	}
	s.Debounce = time.Duration(intOr(kv, model.ConfigKeyDebounceSeconds, 10, warnf)) * time.Second
	s.MinFileSize = int64(intOr(kv, model.ConfigKeyMinFileSizeMB, 10, warnf)) << 20
	s.MaxNameLength = intOr(kv, model.ConfigKeyMaxNameLength, renamer.DefaultMaxNameLength, warnf)

	s.Templates = renamer.Templates{
		Folder: map[string]string{
			"movie":   kv[model.ConfigKeyTemplateMovieFolder],
			"tv":      kv[model.ConfigKeyTemplateTVFolder],
			"anime":   kv[model.ConfigKeyTemplateAnimeFolder],
			"variety": kv[model.ConfigKeyTemplateVarietyFolder],
		},
		File: map[string]string{
			"movie":   kv[model.ConfigKeyTemplateMovieFile],
			"tv":      kv[model.ConfigKeyTemplateTVFile],
			"anime":   kv[model.ConfigKeyTemplateAnimeFile],
			"variety": kv[model.ConfigKeyTemplateVarietyFile],
		},
		SeasonFolder: kv[model.ConfigKeyTemplateSeasonFolder],
		MaxLength:    s.MaxNameLength,
	}
	return s, warnings
}

// Validate checks what the watcher needs: absolute source and destination dirs.
func (s *Settings) Validate() error {
	if len(s.SourceDirs) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingSetting, model.ConfigKeySourceDirs)
	}
	if s.DestDir == "" {
		return fmt.Errorf("%w: %s", ErrMissingSetting, model.ConfigKeyDestDir)
	}
	for _, d := range append(append([]string{}, s.SourceDirs...), s.DestDir, s.UnidentifiedDir) {
		if !filepath.IsAbs(d) {
			return fmt.Errorf("directory must be absolute: %q", d)
		}
	}
	return nil
}

// CategoryDir returns the category directory for a classification.
func (s *Settings) CategoryDir(class string) string {
	return s.CategoryDirs[class]
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func intOr(kv map[string]string, key string, def int, warnf func(string, ...any)) int {
	n, err := strconv.Atoi(kv[key])
	if err != nil || n < 0 {
		warnf("invalid %s %q, using %d", key, kv[key], def)
		return def
	}
	return n
}
