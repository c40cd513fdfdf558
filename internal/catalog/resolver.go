package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pokerjest/mediasorter/internal/metrics"
	"github.com/pokerjest/mediasorter/internal/parser"
	"github.com/pokerjest/mediasorter/internal/tmdb"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// ErrNotFound means every language variant was tried and nothing matched.
var ErrNotFound = errors.New("catalog: no match")

// Catalog is the metadata HTTP API the resolver talks to; *tmdb.Client implements it.
type Catalog interface {
	Search(ctx context.Context, kind, query, language string) ([]tmdb.Result, error)
	Details(ctx context.Context, kind string, id int, language string) (*tmdb.Details, error)
	EpisodeDetails(ctx context.Context, showID, season, episode int, language string) (*tmdb.Episode, error)
}

// Query is what the resolver needs from a parsed guess.
type Query struct {
	Title  string
	Year   int
	Kind   parser.MediaKind
	Season int
}

// Match is a resolved catalog identity.
type Match struct {
	CatalogID      int            `json:"catalog_id"`
	Title          string         `json:"canonical_title"`
	Year           int            `json:"canonical_year,omitempty"`
	Classification Classification `json:"classification"`
	MediaType      string         `json:"media_type"`
}

type Options struct {
	PrimaryLanguage   string
	SecondaryLanguage string
	FallbackLanguage  string

	Attempts     int
	RetryMinWait time.Duration
	RetryMaxWait time.Duration
}

func (o *Options) setDefaults() {
	if o.PrimaryLanguage == "" {
		o.PrimaryLanguage = "zh-CN"
	}
	if o.Attempts <= 0 || o.Attempts > 3 {
		o.Attempts = 3
	}
	if o.RetryMinWait <= 0 {
		o.RetryMinWait = time.Second
	}
	if o.RetryMaxWait < o.RetryMinWait {
		o.RetryMaxWait = 4 * time.Second
	}
}

// Resolver maps (title, year, kind, season) to a catalog Match. Successful
// lookups are cached for the lifetime of the resolver; failures never are.
type Resolver struct {
	api    Catalog
	opts   Options
	logger zerolog.Logger

	cache    sync.Map // key -> *Match
	episodes sync.Map // "id|s|e" -> string
	group    singleflight.Group

	sleep func(ctx context.Context, d time.Duration) error
}

func NewResolver(api Catalog, opts Options, logger zerolog.Logger) *Resolver {
	opts.setDefaults()
	return &Resolver{
		api:    api,
		opts:   opts,
		logger: logger.With().Str("component", "catalog").Logger(),
		sleep:  sleepCtx,
	}
}

func cacheKey(q Query) string {
	return fmt.Sprintf("%s|%s|%d|%d", q.Kind, normalizeTitle(q.Title), q.Year, q.Season)
}

// Resolve returns the catalog match for q, or ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*Match, error) {
	if strings.TrimSpace(q.Title) == "" {
		return nil, ErrNotFound
	}
	key := cacheKey(q)
	if v, ok := r.cache.Load(key); ok {
		metrics.CatalogCacheHits.Inc()
		m := *v.(*Match)
		return &m, nil
	}

	// 同一个 key 的并发查询合并成一次
	v, err, _ := r.group.Do(key, func() (any, error) {
		if v, ok := r.cache.Load(key); ok {
			return v, nil
		}
		m, cacheable, err := r.lookup(ctx, q)
		if err != nil {
			return nil, err
		}
		if cacheable {
			r.cache.Store(key, m)
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	m := *v.(*Match)
	return &m, nil
}

func (r *Resolver) lookup(ctx context.Context, q Query) (*Match, bool, error) {
	kind := mediaType(q.Kind)

	// primary locale: primary + secondary regional variant
	langs := []string{r.opts.PrimaryLanguage}
	if r.opts.SecondaryLanguage != "" {
		langs = append(langs, r.opts.SecondaryLanguage)
	}
	res, searchErr := r.matchIn(ctx, kind, q, langs)
	if res == nil && r.opts.FallbackLanguage != "" && ctx.Err() == nil {
		r.logger.Debug().Str("title", q.Title).Str("language", r.opts.FallbackLanguage).Msg("primary locale found nothing, trying fallback language")
		var err error
		res, err = r.matchIn(ctx, kind, q, []string{r.opts.FallbackLanguage})
		if err != nil {
			searchErr = err
		}
	}
	if res == nil {
		if searchErr != nil {
			return nil, false, fmt.Errorf("resolve %q: %w", q.Title, errors.Join(ErrNotFound, searchErr))
		}
		return nil, false, ErrNotFound
	}

	m := &Match{
		CatalogID:      res.ID,
		Title:          res.DisplayTitle(),
		Year:           res.Year(),
		Classification: ClassMovie,
		MediaType:      kind,
	}
	cacheable := true

	details, err := retry(ctx, r, "details", func() (*tmdb.Details, error) {
		return r.api.Details(ctx, kind, res.ID, r.opts.PrimaryLanguage)
	})
	switch {
	case err != nil:
		// match is still usable, but an unclassified result must not stick in the cache
		r.logger.Warn().Err(err).Int("id", res.ID).Msg("catalog details lookup failed")
		cacheable = false
		if kind == tmdb.MediaTV {
			m.Classification = ClassTV
		}
	default:
		if t := firstNonEmpty(details.Title, details.Name); t != "" {
			m.Title = t
		}
		if m.Year == 0 {
			m.Year = tmdb.Result{ReleaseDate: details.ReleaseDate, FirstAirDate: details.FirstAirDate}.Year()
		}
		if kind == tmdb.MediaTV {
			m.Classification = ClassifyGenres(details.Genres)
		}
	}

	r.logger.Debug().
		Str("title", q.Title).
		Int("id", m.CatalogID).
		Str("canonical", m.Title).
		Int("year", m.Year).
		Str("classification", string(m.Classification)).
		Msg("catalog match")
	return m, cacheable, nil
}

// matchIn runs the per-locale lookup ladder over langs and returns the accepted result.
func (r *Resolver) matchIn(ctx context.Context, kind string, q Query, langs []string) (*tmdb.Result, error) {
	var all []tmdb.Result
	var lastErr error
	for i, lang := range langs {
		results, err := r.search(ctx, kind, q.Title, lang)
		if err != nil {
			lastErr = err
			continue
		}
		// 唯一结果直接采用
		if i == 0 && len(results) == 1 {
			return &results[0], nil
		}
		if m := exactMatch(results, q); m != nil {
			return m, nil
		}
		all = append(all, results...)
	}

	// 年份对不上: 同名且有年份的第一个结果 (跨年播出的剧集季度也走这里)
	if m := firstSameTitle(all, q.Title); m != nil {
		return m, nil
	}
	return nil, lastErr
}

func (r *Resolver) search(ctx context.Context, kind, title, lang string) ([]tmdb.Result, error) {
	return retry(ctx, r, "search", func() ([]tmdb.Result, error) {
		return r.api.Search(ctx, kind, title, lang)
	})
}

// RecoverYear searches the title alone in every configured language and returns
// the first same-title result's year, or 0.
func (r *Resolver) RecoverYear(ctx context.Context, title string, kind parser.MediaKind) int {
	key := "year|" + cacheKey(Query{Title: title, Kind: kind})
	if v, ok := r.cache.Load(key); ok {
		metrics.CatalogCacheHits.Inc()
		return v.(int)
	}
	for _, lang := range r.languages() {
		results, err := r.search(ctx, mediaType(kind), title, lang)
		if err != nil {
			continue
		}
		if m := firstSameTitle(results, title); m != nil {
			r.cache.Store(key, m.Year())
			return m.Year()
		}
	}
	return 0
}

// EpisodeTitle returns the localized episode name, falling back to the
// international language; "" when unknown.
func (r *Resolver) EpisodeTitle(ctx context.Context, showID, season, episode int) string {
	if showID <= 0 || episode <= 0 {
		return ""
	}
	key := fmt.Sprintf("%d|%d|%d", showID, season, episode)
	if v, ok := r.episodes.Load(key); ok {
		return v.(string)
	}
	langs := []string{r.opts.PrimaryLanguage}
	if r.opts.FallbackLanguage != "" {
		langs = append(langs, r.opts.FallbackLanguage)
	}
	for _, lang := range langs {
		ep, err := retry(ctx, r, "episode", func() (*tmdb.Episode, error) {
			return r.api.EpisodeDetails(ctx, showID, season, episode, lang)
		})
		if err != nil {
			if !errors.Is(err, tmdb.ErrNotFound) {
				r.logger.Warn().Err(err).Int("id", showID).Int("season", season).Int("episode", episode).Msg("episode title lookup failed")
			}
			continue
		}
		if name := strings.TrimSpace(ep.Name); name != "" && !isPlaceholderEpisodeName(name) {
			r.episodes.Store(key, name)
			return name
		}
	}
	return ""
}

func (r *Resolver) languages() []string {
	var out []string
	for _, l := range []string{r.opts.PrimaryLanguage, r.opts.SecondaryLanguage, r.opts.FallbackLanguage} {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// retry runs op up to Attempts times with a randomized backoff between attempts.
// A 404 is an answer, not a failure, and is returned immediately.
func retry[T any](ctx context.Context, r *Resolver, endpoint string, op func() (T, error)) (T, error) {
	var result T
	var err error
	for i := 0; i < r.opts.Attempts; i++ {
		if i > 0 {
			if serr := r.sleep(ctx, r.backoff()); serr != nil {
				return result, serr
			}
		}
		result, err = op()
		if err == nil {
			metrics.CatalogRequests.WithLabelValues(endpoint, "ok").Inc()
			return result, nil
		}
		metrics.CatalogRequests.WithLabelValues(endpoint, "error").Inc()
		if errors.Is(err, tmdb.ErrNotFound) || ctx.Err() != nil {
			return result, err
		}
		r.logger.Debug().Err(err).Int("attempt", i+1).Str("endpoint", endpoint).Msg("catalog request failed")
	}
	return result, err
}

func (r *Resolver) backoff() time.Duration {
	spread := r.opts.RetryMaxWait - r.opts.RetryMinWait
	if spread <= 0 {
		return r.opts.RetryMinWait
	}
	return r.opts.RetryMinWait + time.Duration(rand.Int63n(int64(spread)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func exactMatch(results []tmdb.Result, q Query) *tmdb.Result {
	for i := range results {
		if !sameTitle(results[i], q.Title) {
			continue
		}
		if q.Year == 0 || results[i].Year() == q.Year {
			return &results[i]
		}
	}
	return nil
}

func firstSameTitle(results []tmdb.Result, title string) *tmdb.Result {
	for i := range results {
		if sameTitle(results[i], title) && results[i].Year() > 0 {
			return &results[i]
		}
	}
	return nil
}

func sameTitle(r tmdb.Result, title string) bool {
	want := normalizeTitle(title)
	if want == "" {
		return false
	}
	return normalizeTitle(r.DisplayTitle()) == want || normalizeTitle(r.Original()) == want
}

// normalizeTitle folds width, applies NFKC, lower-cases and drops everything
// that is not a letter or digit.
func normalizeTitle(s string) string {
	s = norm.NFKC.String(width.Fold.String(s))
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func mediaType(kind parser.MediaKind) string {
	if kind == parser.KindTV {
		return tmdb.MediaTV
	}
	return tmdb.MediaMovie
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var placeholderEpisodeRe = regexp.MustCompile(`(?i)^(?:第\s*\d+\s*[集话話]|episode\s*\d+|ep\.?\s*\d+|\d+)$`)

// "第 5 集" / "Episode 5" carry no information
func isPlaceholderEpisodeName(name string) bool {
	return placeholderEpisodeRe.MatchString(strings.TrimSpace(name))
}
