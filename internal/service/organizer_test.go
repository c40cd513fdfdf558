package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pokerjest/mediasorter/internal/catalog"
	"github.com/pokerjest/mediasorter/internal/config"
	"github.com/pokerjest/mediasorter/internal/event"
	"github.com/pokerjest/mediasorter/internal/model"
	"github.com/pokerjest/mediasorter/internal/parser"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mu      sync.Mutex
	queries []catalog.Query
	resolve func(q catalog.Query) (*catalog.Match, error)
	year    int
	episode string
}

func (f *fakeResolver) Resolve(_ context.Context, q catalog.Query) (*catalog.Match, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return f.resolve(q)
}

func (f *fakeResolver) RecoverYear(context.Context, string, parser.MediaKind) int { return f.year }

func (f *fakeResolver) EpisodeTitle(context.Context, int, int, int) string { return f.episode }

func (f *fakeResolver) lastQuery() catalog.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func notFound(catalog.Query) (*catalog.Match, error) { return nil, catalog.ErrNotFound }

func huangQue(catalog.Query) (*catalog.Match, error) {
	return &catalog.Match{CatalogID: 233, Title: "黄雀", Year: 2024, Classification: catalog.ClassTV, MediaType: "tv"}, nil
}

type fakeAliases map[string]string

func (f fakeAliases) LookupAlias(title string) (string, int, bool) {
	t, ok := f[title]
	return t, 0, ok
}

type fakeLabels []string

func (f fakeLabels) TaskLabels(context.Context, string) []string { return f }

type sandbox struct {
	src, dest, unidentified string
	settings                *config.Settings
	ledger                  *Ledger
}

func newSandbox(t *testing.T, extra map[string]string) *sandbox {
	t.Helper()
	root := t.TempDir()
	sb := &sandbox{
		src:          filepath.Join(root, "downloads"),
		dest:         filepath.Join(root, "library"),
		unidentified: filepath.Join(root, "unidentified"),
	}
	kv := map[string]string{
		model.ConfigKeySourceDirs:      sb.src,
		model.ConfigKeyDestDir:         sb.dest,
		model.ConfigKeyUnidentifiedDir: sb.unidentified,
		model.ConfigKeyMinFileSizeMB:   "0",
	}
	for k, v := range extra {
		kv[k] = v
	}
	sb.settings, _ = config.BuildSettings(kv)

	var err error
	sb.ledger, err = OpenLedger(filepath.Join(root, "data", "processed.txt"))
	require.NoError(t, err)
	return sb
}

func (sb *sandbox) file(t *testing.T, rel string) string {
	t.Helper()
	p := filepath.Join(sb.src, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte("video:"+rel), 0644))
	return p
}

func (sb *sandbox) organizer(t *testing.T, deps Deps) *Organizer {
	t.Helper()
	deps.Ledger = sb.ledger
	if deps.Parser == nil {
		deps.Parser = parser.New(parser.NopGuesser{}, nil)
	}
	o, err := NewOrganizer(sb.settings, deps, zerolog.Nop())
	require.NoError(t, err)
	return o
}

func TestOrganizer_SeriesEndToEnd(t *testing.T) {
	sb := newSandbox(t, nil)
	src := sb.file(t, "黄雀 (2024)/黄雀 - S01E05 - 1080p.mkv")
	sidecar := sb.file(t, "黄雀 (2024)/黄雀 - S01E05 - 1080p.zh.ass")

	bus := event.NewInMemoryBus()
	var organized atomic.Value
	bus.Subscribe(event.EventFileOrganized, func(e event.Event) { organized.Store(e.Payload) })

	res := &fakeResolver{resolve: huangQue, episode: "暗流"}
	o := sb.organizer(t, Deps{Resolver: res, Bus: bus})

	r := o.HandleFile(context.Background(), src)
	require.Equal(t, OutcomeOrganized, r.Outcome, "%v", r.Err)

	want := filepath.Join(sb.dest, "TV Shows", "黄雀 (2024)", "Season 1", "黄雀 - S01E05 - 暗流.mkv")
	assert.Equal(t, want, r.Destination)
	assert.FileExists(t, want)
	assert.FileExists(t, filepath.Join(sb.dest, "TV Shows", "黄雀 (2024)", "Season 1", "黄雀 - S01E05 - 暗流.zh.ass"))
	assert.NoFileExists(t, src)
	assert.NoFileExists(t, sidecar)

	q := res.lastQuery()
	assert.Equal(t, catalog.Query{Title: "黄雀", Year: 2024, Kind: parser.KindTV, Season: 1}, q)
	assert.Equal(t, 5, r.Guess.Episode)
	assert.Equal(t, "1080p", r.Guess.Quality)
	assert.True(t, sb.ledger.Contains(src))

	assert.Eventually(t, func() bool {
		p, ok := organized.Load().(event.FilePayload)
		return ok && p.Destination == want && p.Classification == "tv"
	}, time.Second, 5*time.Millisecond)

	// processed files are skipped next time
	assert.Equal(t, OutcomeSkipped, o.HandleFile(context.Background(), src).Outcome)
}

func TestOrganizer_StandaloneUnresolvableIsQuarantined(t *testing.T) {
	sb := newSandbox(t, nil)
	src := sb.file(t, "some_random_release/05.mp4")

	res := &fakeResolver{resolve: notFound}
	o := sb.organizer(t, Deps{Resolver: res})

	r := o.HandleFile(context.Background(), src)
	require.Equal(t, OutcomeQuarantined, r.Outcome, "%v", r.Err)
	assert.Equal(t, filepath.Join(sb.unidentified, "some_random_release", "05.mp4"), r.Destination)
	assert.FileExists(t, r.Destination)
	assert.NoFileExists(t, src)
	assert.True(t, sb.ledger.Contains(src))
	assert.Equal(t, 0, o.Quarantine().Count(filepath.Dir(src)))
}

func TestOrganizer_MultiFileFolderNeedsThreeFailures(t *testing.T) {
	sb := newSandbox(t, nil)
	files := []string{
		sb.file(t, "Unknown Show/Unknown Show - 01.mkv"),
		sb.file(t, "Unknown Show/Unknown Show - 02.mkv"),
		sb.file(t, "Unknown Show/Unknown Show - 03.mkv"),
	}
	dir := filepath.Dir(files[0])

	o := sb.organizer(t, Deps{Resolver: &fakeResolver{resolve: notFound}})

	for round := 1; round <= 2; round++ {
		for _, r := range o.ProcessBatch(context.Background(), files) {
			assert.Equal(t, OutcomeDeferred, r.Outcome, "round %d", round)
		}
		assert.Equal(t, round, o.Quarantine().Count(dir))
		for _, f := range files {
			assert.FileExists(t, f)
		}
	}

	for _, r := range o.ProcessBatch(context.Background(), files) {
		assert.Equal(t, OutcomeQuarantined, r.Outcome)
		assert.FileExists(t, filepath.Join(sb.unidentified, "Unknown Show", filepath.Base(r.Source)))
	}
	assert.Equal(t, 0, o.Quarantine().Count(dir))
}

func TestOrganizer_SuccessResetsFolderCounter(t *testing.T) {
	sb := newSandbox(t, nil)
	files := []string{
		sb.file(t, "黄雀 (2024)/黄雀 - S01E01 - 1080p.mkv"),
		sb.file(t, "黄雀 (2024)/黄雀 - S01E02 - 1080p.mkv"),
	}
	dir := filepath.Dir(files[0])

	res := &fakeResolver{resolve: notFound, episode: "x"}
	o := sb.organizer(t, Deps{Resolver: res})

	o.ProcessBatch(context.Background(), files)
	assert.Equal(t, 1, o.Quarantine().Count(dir))

	res.resolve = huangQue
	r := o.HandleFile(context.Background(), files[0])
	assert.Equal(t, OutcomeOrganized, r.Outcome)
	assert.Equal(t, 0, o.Quarantine().Count(dir))
}

func TestOrganizer_RetryKeywordIsNeverQuarantined(t *testing.T) {
	sb := newSandbox(t, map[string]string{model.ConfigKeyRetryKeywords: "未完结"})
	src := sb.file(t, "某剧 未完结/某剧 - 01.mkv")

	o := sb.organizer(t, Deps{Resolver: &fakeResolver{resolve: notFound}})
	for i := 0; i < 4; i++ {
		assert.Equal(t, OutcomeDeferred, o.HandleFile(context.Background(), src).Outcome)
	}
	assert.FileExists(t, src)
	assert.Equal(t, 0, o.Quarantine().Count(filepath.Dir(src)))
}

func TestOrganizer_ConcurrentHandleIsSingleTransfer(t *testing.T) {
	sb := newSandbox(t, nil)
	src := sb.file(t, "黄雀 (2024)/黄雀 - S01E05 - 1080p.mkv")

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	res := &fakeResolver{resolve: func(q catalog.Query) (*catalog.Match, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
			<-release
		}
		return huangQue(q)
	}}
	o := sb.organizer(t, Deps{Resolver: res})

	first := make(chan Result)
	go func() { first <- o.HandleFile(context.Background(), src) }()

	<-entered
	second := o.HandleFile(context.Background(), src)
	assert.Equal(t, OutcomeBusy, second.Outcome)
	assert.Equal(t, []string{src}, o.InFlight().Snapshot())

	close(release)
	r := <-first
	assert.Equal(t, OutcomeOrganized, r.Outcome)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, o.InFlight().Snapshot())
}

func TestOrganizer_LabelHintAndAlias(t *testing.T) {
	sb := newSandbox(t, nil)
	src := sb.file(t, "Huang.Que.Pack/Some.Release.E07.mkv")

	res := &fakeResolver{resolve: huangQue}
	o := sb.organizer(t, Deps{
		Resolver: res,
		Labels:   fakeLabels{"not a label", "黄雀 (2024)-S02-[01-10]-2160p"},
		Aliases:  fakeAliases{"黄雀": "黄雀之谜"},
	})

	r := o.HandleFile(context.Background(), src)
	require.Equal(t, OutcomeOrganized, r.Outcome, "%v", r.Err)
	assert.Equal(t, catalog.Query{Title: "黄雀之谜", Year: 2024, Kind: parser.KindTV, Season: 2}, res.lastQuery())
	assert.Equal(t, "2160p", r.Guess.Quality)
	assert.Equal(t, 7, r.Guess.Episode)
	assert.Equal(t, filepath.Join(sb.dest, "TV Shows", "黄雀 (2024)", "Season 2"), filepath.Dir(r.Destination))
}

func TestOrganizer_SeasonFolderUsesShowFolder(t *testing.T) {
	sb := newSandbox(t, nil)
	src := sb.file(t, "Frieren (2023)/Season 2/Frieren - 03 [1080p].mkv")

	res := &fakeResolver{resolve: func(catalog.Query) (*catalog.Match, error) {
		return &catalog.Match{CatalogID: 209867, Title: "葬送的芙莉莲", Year: 2023, Classification: catalog.ClassAnime, MediaType: "tv"}, nil
	}}
	o := sb.organizer(t, Deps{Resolver: res})

	r := o.HandleFile(context.Background(), src)
	require.Equal(t, OutcomeOrganized, r.Outcome, "%v", r.Err)
	q := res.lastQuery()
	assert.Equal(t, 2, q.Season)
	assert.Equal(t, 2023, q.Year)
	assert.Equal(t, parser.KindTV, q.Kind)
	assert.Equal(t, filepath.Join(sb.dest, "Anime", "葬送的芙莉莲 (2023)", "Season 2"), filepath.Dir(r.Destination))
}

func TestOrganizer_YearRecovery(t *testing.T) {
	sb := newSandbox(t, nil)
	src := sb.file(t, "Inception/Inception.mkv")

	noYear := func(catalog.Query) (*catalog.Match, error) {
		return &catalog.Match{CatalogID: 27205, Title: "Inception", Classification: catalog.ClassMovie, MediaType: "movie"}, nil
	}
	o := sb.organizer(t, Deps{Resolver: &fakeResolver{resolve: noYear, year: 2010}})
	r := o.HandleFile(context.Background(), src)
	require.Equal(t, OutcomeOrganized, r.Outcome, "%v", r.Err)
	assert.Equal(t, filepath.Join(sb.dest, "Movies", "Inception (2010)", "Inception (2010) - 1080p.mkv"), r.Destination)

	// still no year: treated as unrecognised
	src = sb.file(t, "Other/Other.mkv")
	o = sb.organizer(t, Deps{Resolver: &fakeResolver{resolve: noYear}})
	assert.Equal(t, OutcomeQuarantined, o.HandleFile(context.Background(), src).Outcome)
}

func TestOrganizer_TransferFailureLeavesFile(t *testing.T) {
	sb := newSandbox(t, nil)
	src := sb.file(t, "黄雀 (2024)/黄雀 - S01E05 - 1080p.mkv")

	// a file where the category directory should be
	require.NoError(t, os.MkdirAll(sb.dest, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sb.dest, "TV Shows"), []byte("x"), 0644))

	o := sb.organizer(t, Deps{Resolver: &fakeResolver{resolve: huangQue}})
	r := o.HandleFile(context.Background(), src)
	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.Error(t, r.Err)
	assert.FileExists(t, src)
	assert.False(t, sb.ledger.Contains(src))
}

func TestOrganizer_ExistingDestinationIsSkipped(t *testing.T) {
	sb := newSandbox(t, nil)
	src := sb.file(t, "黄雀 (2024)/黄雀 - S01E05 - 1080p.mkv")
	existing := filepath.Join(sb.dest, "TV Shows", "黄雀 (2024)", "Season 1", "黄雀 - S01E05.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0755))
	require.NoError(t, os.WriteFile(existing, []byte("already here"), 0644))

	o := sb.organizer(t, Deps{Resolver: &fakeResolver{resolve: huangQue}})
	r := o.HandleFile(context.Background(), src)
	assert.Equal(t, OutcomeSkipped, r.Outcome)
	assert.FileExists(t, src)
	assert.True(t, sb.ledger.Contains(src))
}

func TestOrganizer_ParallelSimilarBatch(t *testing.T) {
	sb := newSandbox(t, map[string]string{
		model.ConfigKeyMultithreadEnabled: "true",
		model.ConfigKeyMultithreadWorkers: "3",
	})
	var files []string
	for _, n := range []string{"01", "02", "03", "04", "05", "06"} {
		files = append(files, sb.file(t, "黄雀 (2024)/黄雀 - S01E"+n+" - 1080p.mkv"))
	}

	o := sb.organizer(t, Deps{Resolver: &fakeResolver{resolve: huangQue, episode: "ep"}})
	results := o.ProcessBatch(context.Background(), files)
	require.Len(t, results, 6)
	for _, r := range results {
		assert.Equal(t, OutcomeOrganized, r.Outcome, "%s: %v", r.Source, r.Err)
	}
	assert.Equal(t, 6, sb.ledger.Len())
}

func TestOrganizer_PendingAndEligible(t *testing.T) {
	sb := newSandbox(t, map[string]string{model.ConfigKeyMinFileSizeMB: "0"})
	good := sb.file(t, "Show/Show - 01.mkv")
	sb.file(t, "Show/.hidden.mkv")
	sb.file(t, "Show/Show - 02.mkv.part")
	sb.file(t, "Show/notes.txt")
	sb.file(t, ".sync/Show - 03.mkv")
	done := sb.file(t, "Show/Show - 04.mkv")
	require.NoError(t, sb.ledger.Add(done))

	o := sb.organizer(t, Deps{Resolver: &fakeResolver{resolve: notFound}})
	assert.Equal(t, []string{good}, o.Pending())

	big := newSandbox(t, map[string]string{model.ConfigKeyMinFileSizeMB: "1"})
	small := big.file(t, "Show/Show - 01.mkv")
	ob := big.organizer(t, Deps{Resolver: &fakeResolver{resolve: notFound}})
	assert.False(t, ob.Eligible(small))
}

func TestOrganizer_PreviewDoesNotTransfer(t *testing.T) {
	sb := newSandbox(t, nil)
	src := filepath.Join(sb.src, "黄雀 (2024)", "黄雀 - S01E06.mkv") // never created

	o := sb.organizer(t, Deps{Resolver: &fakeResolver{resolve: huangQue}})
	guess, match, dst, err := o.Preview(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 6, guess.Episode)
	assert.Equal(t, 233, match.CatalogID)
	assert.Equal(t, filepath.Join(sb.dest, "TV Shows", "黄雀 (2024)", "Season 1", "黄雀 - S01E06.mkv"), dst)
	assert.NoDirExists(t, sb.dest)
	assert.Equal(t, 0, sb.ledger.Len())

	_, _, _, err = sb.organizer(t, Deps{Resolver: &fakeResolver{resolve: notFound}}).Preview(context.Background(), src)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestOrganizer_LibraryInsideSourceIsIgnored(t *testing.T) {
	sb := newSandbox(t, nil)
	sb.settings.DestDir = filepath.Join(sb.src, "library")
	organized := sb.file(t, "library/TV Shows/黄雀 (2024)/Season 1/黄雀 - S01E05.mkv")
	fresh := sb.file(t, "黄雀 (2024)/黄雀 - S01E06.mkv")

	o := sb.organizer(t, Deps{Resolver: &fakeResolver{resolve: huangQue}})
	assert.False(t, o.Eligible(organized))
	assert.True(t, o.Eligible(fresh))
	assert.Equal(t, []string{fresh}, o.Pending())
}

func TestOrganizer_SeasonlessLabelKeepsEpisodesApart(t *testing.T) {
	sb := newSandbox(t, nil)
	files := []string{
		sb.file(t, "黄雀/黄雀 第05集.mkv"),
		sb.file(t, "黄雀/黄雀 第06集.mkv"),
	}

	o := sb.organizer(t, Deps{
		Resolver: &fakeResolver{resolve: huangQue},
		Labels:   fakeLabels{"黄雀 (2024)-1080p"},
	})
	results := o.ProcessBatch(context.Background(), files)
	require.Len(t, results, 2)

	season := filepath.Join(sb.dest, "TV Shows", "黄雀 (2024)", "Season 1")
	for i, ep := range []string{"05", "06"} {
		r := results[i]
		require.Equal(t, OutcomeOrganized, r.Outcome, "%s: %v", r.Source, r.Err)
		assert.Equal(t, parser.KindTV, r.Guess.Kind)
		assert.Equal(t, filepath.Join(season, "黄雀 - S01E"+ep+".mkv"), r.Destination)
		assert.FileExists(t, r.Destination)
	}
}

func TestOrganizer_LooseFilesInSourceRoot(t *testing.T) {
	sb := newSandbox(t, nil)
	known := sb.file(t, "黄雀 - S01E05 - 1080p.mkv")
	unknown := sb.file(t, "zzqq.mkv")

	res := &fakeResolver{resolve: func(q catalog.Query) (*catalog.Match, error) {
		if q.Title == "黄雀" {
			return huangQue(q)
		}
		return nil, catalog.ErrNotFound
	}}
	o := sb.organizer(t, Deps{Resolver: res})

	guess, _, _, err := o.Preview(context.Background(), unknown)
	require.Error(t, err)
	assert.Empty(t, guess.FolderName)

	results := o.ProcessBatch(context.Background(), []string{known, unknown})
	require.Len(t, results, 2)
	byPath := map[string]Result{results[0].Source: results[0], results[1].Source: results[1]}

	assert.Equal(t, OutcomeOrganized, byPath[known].Outcome, "%v", byPath[known].Err)
	// the sibling's success must not keep the unknown file waiting
	assert.Equal(t, OutcomeQuarantined, byPath[unknown].Outcome)
	assert.Equal(t, filepath.Join(sb.unidentified, "zzqq.mkv"), byPath[unknown].Destination)
	assert.FileExists(t, byPath[unknown].Destination)
	assert.Empty(t, o.Quarantine().Snapshot())
}

func TestOrganizer_EmptyCategoryDir(t *testing.T) {
	sb := newSandbox(t, map[string]string{model.ConfigKeyCategoryDirTV: ""})
	src := sb.file(t, "黄雀 (2024)/黄雀 - S01E05 - 1080p.mkv")

	o := sb.organizer(t, Deps{Resolver: &fakeResolver{resolve: huangQue}})
	r := o.HandleFile(context.Background(), src)
	require.Equal(t, OutcomeOrganized, r.Outcome, "%v", r.Err)
	assert.Equal(t, filepath.Join(sb.dest, "黄雀 (2024)", "Season 1", "黄雀 - S01E05.mkv"), r.Destination)
}
