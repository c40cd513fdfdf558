package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pokerjest/mediasorter/internal/catalog"
	"github.com/pokerjest/mediasorter/internal/config"
	"github.com/pokerjest/mediasorter/internal/downloader"
	"github.com/pokerjest/mediasorter/internal/event"
	"github.com/pokerjest/mediasorter/internal/metrics"
	"github.com/pokerjest/mediasorter/internal/parser"
	"github.com/pokerjest/mediasorter/internal/renamer"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Outcome of handling one file.
type Outcome string

const (
	OutcomeOrganized   Outcome = "organized"
	OutcomeQuarantined Outcome = "quarantined"
	OutcomeSkipped     Outcome = "skipped"  // already processed, excluded, or already in the library
	OutcomeDeferred    Outcome = "deferred" // unrecognised, left in place for the next cycle
	OutcomeFailed      Outcome = "failed"   // transfer error, left in place
	OutcomeBusy        Outcome = "busy"     // another worker holds the path
)

type Result struct {
	Source      string             `json:"source"`
	Destination string             `json:"destination,omitempty"`
	Outcome     Outcome            `json:"outcome"`
	Match       *catalog.Match     `json:"match,omitempty"`
	Guess       *parser.MediaGuess `json:"guess,omitempty"`
	Err         error              `json:"-"`
}

// Resolver is the part of *catalog.Resolver the organizer uses.
type Resolver interface {
	Resolve(ctx context.Context, q catalog.Query) (*catalog.Match, error)
	RecoverYear(ctx context.Context, title string, kind parser.MediaKind) int
	EpisodeTitle(ctx context.Context, showID, season, episode int) string
}

// AliasStore is implemented by *db.Store.
type AliasStore interface {
	LookupAlias(title string) (target string, season int, ok bool)
}

// Deps are the collaborators of an Organizer. Resolver and Ledger are required.
type Deps struct {
	Parser     *parser.Parser
	Resolver   Resolver
	Transferer *renamer.Transferer
	Ledger     *Ledger
	Aliases    AliasStore
	Labels     downloader.LabelSource
	Bus        event.Bus
	InFlight   *InFlight
	Quarantine *QuarantinePolicy
}

// Organizer runs parse → resolve → quarantine check → render → transfer for
// batches of files. It owns all mutable processing state.
type Organizer struct {
	settings *config.Settings
	deps     Deps
	logger   zerolog.Logger
}

func NewOrganizer(settings *config.Settings, deps Deps, logger zerolog.Logger) (*Organizer, error) {
	if deps.Resolver == nil || deps.Ledger == nil {
		return nil, errors.New("organizer: resolver and ledger are required")
	}
	if deps.Parser == nil {
		deps.Parser = parser.New(parser.NewGuesser(settings.Guesser), parser.NewCleaner(settings.Denylist))
	}
	if deps.Transferer == nil {
		deps.Transferer = renamer.NewTransferer(settings.SidecarExts, logger)
	}
	if deps.InFlight == nil {
		deps.InFlight = NewInFlight()
	}
	if deps.Quarantine == nil {
		deps.Quarantine = NewQuarantinePolicy(DefaultQuarantineThreshold)
	}
	return &Organizer{
		settings: settings,
		deps:     deps,
		logger:   logger.With().Str("component", "organizer").Logger(),
	}, nil
}

func (o *Organizer) InFlight() *InFlight           { return o.deps.InFlight }
func (o *Organizer) Quarantine() *QuarantinePolicy { return o.deps.Quarantine }
func (o *Organizer) Ledger() *Ledger               { return o.deps.Ledger }

// HandleFile processes a single file as a batch of one.
func (o *Organizer) HandleFile(ctx context.Context, path string) Result {
	return o.ProcessBatch(ctx, []string{path})[0]
}

// Preview identifies path and renders its destination without touching the
// filesystem or any processing state.
func (o *Organizer) Preview(ctx context.Context, path string) (*parser.MediaGuess, *catalog.Match, string, error) {
	guess, match, err := o.identify(ctx, path)
	if err != nil {
		return guess, match, "", err
	}
	return guess, match, o.destination(ctx, *guess, match), nil
}

// ProcessBatch groups paths by directory and handles every file. Results are
// ordered by directory then file name. A failing file never aborts its siblings.
func (o *Organizer) ProcessBatch(ctx context.Context, paths []string) []Result {
	batchID := uuid.NewString()[:8]
	log := o.logger.With().Str("batch", batchID).Logger()

	groups := GroupFiles(paths)
	var results []Result
	for _, g := range groups {
		results = append(results, o.processGroup(ctx, g, log)...)
	}
	metrics.BatchesFlushed.Inc()

	summary := event.BatchPayload{ID: batchID, Files: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeOrganized:
			summary.Organized++
		case OutcomeQuarantined:
			summary.Quarantined++
		}
	}
	log.Info().Int("files", summary.Files).Int("organized", summary.Organized).
		Int("quarantined", summary.Quarantined).Msg("batch done")
	o.publish(event.EventBatchDone, summary)
	return results
}

func (o *Organizer) processGroup(ctx context.Context, g Group, log zerolog.Logger) []Result {
	results := make([]Result, len(g.Files))

	if g.Similar && o.settings.MultithreadEnabled && o.settings.Workers > 1 {
		var eg errgroup.Group
		eg.SetLimit(o.settings.Workers)
		for i, path := range g.Files {
			i, path := i, path
			eg.Go(func() error {
				results[i] = o.handle(ctx, path, log)
				return nil
			})
		}
		_ = eg.Wait()
	} else {
		for i, path := range g.Files {
			results[i] = o.handle(ctx, path, log)
		}
	}

	if o.isSourceRoot(g.Dir) {
		// 源目录根下的散文件各自计数, 互不影响
		for i := range results {
			o.settleFolder(ctx, results[i].Source, results[i:i+1], true, log)
		}
		return results
	}
	o.settleFolder(ctx, g.Dir, results, false, log)
	return results
}

// settleFolder applies whole-folder failure accounting: one success resets the
// folder, a batch with only failures counts once. key is the folder, or the file
// itself for loose files in a source root.
func (o *Organizer) settleFolder(ctx context.Context, key string, results []Result, loose bool, log zerolog.Logger) {
	var failed []int
	success := false
	for i, r := range results {
		switch {
		case r.Outcome == OutcomeOrganized:
			success = true
		case r.Outcome == OutcomeDeferred && errors.Is(r.Err, errUnrecognized):
			failed = append(failed, i)
		}
	}
	if success {
		o.deps.Quarantine.Reset(key)
		return
	}
	if len(failed) == 0 {
		return
	}

	standalone := loose || (len(failed) == 1 && !o.hasOtherPending(key, results[failed[0]].Source))
	if !o.deps.Quarantine.ShouldQuarantine(key, standalone) {
		log.Info().Str("folder", key).Int("count", o.deps.Quarantine.Count(key)).Msg("unrecognised, waiting for next cycle")
		return
	}
	for _, i := range failed {
		results[i] = o.quarantine(ctx, results[i], log)
	}
	o.deps.Quarantine.Reset(key)
}

var errUnrecognized = errors.New("unrecognised")

func (o *Organizer) handle(ctx context.Context, path string, log zerolog.Logger) Result {
	res := Result{Source: path}
	if !o.deps.InFlight.TryAcquire(path) {
		res.Outcome = OutcomeBusy
		return res
	}
	defer o.deps.InFlight.Release(path)

	if o.deps.Ledger.Contains(path) {
		res.Outcome = OutcomeSkipped
		return res
	}
	if _, err := os.Stat(path); err != nil {
		res.Outcome, res.Err = OutcomeSkipped, err
		return res
	}
	if containsKeyword(path, o.settings.ExcludeKeywords) {
		log.Debug().Str("file", path).Msg("excluded by keyword")
		res.Outcome = OutcomeSkipped
		return res
	}

	guess, match, err := o.identify(ctx, path)
	res.Guess, res.Match = guess, match
	if err != nil {
		log.Info().Err(err).Str("file", path).Msg("not recognised")
		res.Outcome, res.Err = OutcomeDeferred, err
		if !containsKeyword(path, o.settings.RetryKeywords) {
			res.Err = fmt.Errorf("%w: %v", errUnrecognized, err)
		}
		return res
	}

	dst := o.destination(ctx, *guess, match)
	res.Destination = dst
	final, err := o.deps.Transferer.Transfer(path, dst, o.settings.Action, o.settings.Overwrite)
	switch {
	case errors.Is(err, renamer.ErrSkipped):
		log.Info().Str("file", path).Str("dest", dst).Msg("destination exists, skipped")
		res.Outcome = OutcomeSkipped
		o.markProcessed(path, log)
		return res
	case err != nil:
		log.Error().Err(err).Str("file", path).Str("dest", dst).Msg("transfer failed")
		metrics.TransferFailures.Inc()
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}

	res.Destination, res.Outcome = final, OutcomeOrganized
	o.markProcessed(path, log)
	metrics.FilesOrganized.WithLabelValues(string(match.Classification)).Inc()
	log.Info().Str("file", filepath.Base(path)).Str("dest", final).Str("class", string(match.Classification)).Msg("organized")
	o.publish(event.EventFileOrganized, event.FilePayload{
		Source:         path,
		Destination:    final,
		Title:          match.Title,
		Year:           match.Year,
		Season:         guess.EffectiveSeason(),
		Episode:        guess.Episode,
		CatalogID:      match.CatalogID,
		Classification: string(match.Classification),
	})
	return res
}

// identify parses path and resolves it against the catalog.
func (o *Organizer) identify(ctx context.Context, path string) (*parser.MediaGuess, *catalog.Match, error) {
	folder, folderSeason := o.showFolder(path)

	var hint *parser.LabelHint
	if o.deps.Labels != nil {
		if folder != "" {
			hint = parser.FirstLabel(o.deps.Labels.TaskLabels(ctx, folder))
		}
		if hint == nil {
			hint = parser.FirstLabel(o.deps.Labels.TaskLabels(ctx, filepath.Base(path)))
		}
	}

	guess := o.deps.Parser.Parse(filepath.Base(path), folder, hint)
	if guess.Season == 0 && folderSeason > 0 {
		guess.Season = folderSeason
		if guess.Kind == parser.KindMovie && guess.Episode > 0 {
			guess.Kind = parser.KindTV
		}
	}

	if o.deps.Aliases != nil {
		if target, season, ok := o.deps.Aliases.LookupAlias(guess.Title); ok {
			guess.Title = target
			if season > 0 {
				guess.Season = season
			}
		}
	}
	if !guess.Usable() {
		return &guess, nil, errors.New("no usable title")
	}

	match, err := o.deps.Resolver.Resolve(ctx, catalog.Query{
		Title:  guess.Title,
		Year:   guess.Year,
		Kind:   guess.Kind,
		Season: guess.EffectiveSeason(),
	})
	if err != nil {
		return &guess, nil, err
	}
	if match.Year == 0 {
		match.Year = guess.Year
	}
	if match.Year == 0 {
		match.Year = o.deps.Resolver.RecoverYear(ctx, match.Title, guess.Kind)
	}
	if match.Year == 0 {
		return &guess, match, errors.New("year unknown")
	}
	return &guess, match, nil
}

func (o *Organizer) destination(ctx context.Context, g parser.MediaGuess, m *catalog.Match) string {
	kind := string(g.Kind)
	if m.MediaType == "movie" {
		kind = "movie"
	}
	info := renamer.MediaInfo{
		Title:      m.Title,
		Year:       m.Year,
		Resolution: g.Resolution,
		Quality:    g.Quality,
		Extension:  g.Extension,
		CatalogID:  m.CatalogID,
		VideoCodec: g.VideoCodec,
		AudioCodec: g.AudioCodec,
		BitDepth:   g.BitDepth,
		Source:     g.Source,
		Group:      g.Group,
	}
	if kind != "movie" {
		info.Season = g.EffectiveSeason()
		info.Episode = g.Episode
		info.EpisodeTitle = o.deps.Resolver.EpisodeTitle(ctx, m.CatalogID, info.Season, info.Episode)
	}

	folder, season, file := o.settings.Templates.Names(string(m.Classification), kind, info)
	parts := []string{o.settings.DestDir}
	if dir := o.settings.CategoryDir(string(m.Classification)); dir != "" {
		parts = append(parts, dir)
	}
	parts = append(parts, folder)
	if season != "" {
		parts = append(parts, season)
	}
	return filepath.Join(append(parts, file)...)
}

func (o *Organizer) quarantine(ctx context.Context, res Result, log zerolog.Logger) Result {
	path := res.Source
	if !o.deps.InFlight.TryAcquire(path) {
		res.Outcome = OutcomeBusy
		return res
	}
	defer o.deps.InFlight.Release(path)

	dst := filepath.Join(o.settings.UnidentifiedDir, filepath.Base(filepath.Dir(path)), filepath.Base(path))
	if o.isSourceRoot(filepath.Dir(path)) {
		dst = filepath.Join(o.settings.UnidentifiedDir, filepath.Base(path))
	}
	final, err := o.deps.Transferer.Transfer(path, dst, o.settings.Action, o.settings.Overwrite)
	if err != nil && !errors.Is(err, renamer.ErrSkipped) {
		log.Error().Err(err).Str("file", path).Msg("quarantine transfer failed")
		metrics.TransferFailures.Inc()
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	if final == "" {
		final = dst
	}

	res.Destination, res.Outcome = final, OutcomeQuarantined
	o.markProcessed(path, log)
	metrics.FilesQuarantined.Inc()
	log.Warn().Str("file", path).Str("dest", final).Msg("quarantined")
	o.publish(event.EventFileQuarantined, event.FilePayload{Source: path, Destination: final})
	return res
}

// hasOtherPending reports whether dir holds another video file not yet processed.
func (o *Organizer) hasOtherPending(dir, self string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == filepath.Base(self) || !parser.IsVideoFile(e.Name()) {
			continue
		}
		if !o.deps.Ledger.Contains(e.Name()) {
			return true
		}
	}
	return false
}

func (o *Organizer) markProcessed(path string, log zerolog.Logger) {
	if err := o.deps.Ledger.Add(path); err != nil {
		log.Error().Err(err).Str("file", path).Msg("ledger append failed")
	}
}

func (o *Organizer) publish(t event.EventType, payload any) {
	if o.deps.Bus != nil {
		o.deps.Bus.Publish(t, payload)
	}
}

// showFolder returns the folder naming the show. Files inside a bare season
// directory ("Season 1") use the grandparent and take the season from the parent.
// A source root never names a show.
func (o *Organizer) showFolder(path string) (string, int) {
	parent := filepath.Dir(path)
	if o.isSourceRoot(parent) {
		return "", 0
	}
	name := filepath.Base(parent)
	if n, ok := parser.SeasonFolder(name); ok {
		grand := filepath.Dir(parent)
		if o.isSourceRoot(grand) {
			return "", n
		}
		return filepath.Base(grand), n
	}
	return name, 0
}

func (o *Organizer) isSourceRoot(dir string) bool {
	dir = filepath.Clean(dir)
	for _, root := range o.settings.SourceDirs {
		if filepath.Clean(root) == dir {
			return true
		}
	}
	return false
}

func containsKeyword(path string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	s := strings.ToLower(filepath.Base(filepath.Dir(path)) + "/" + filepath.Base(path))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}
