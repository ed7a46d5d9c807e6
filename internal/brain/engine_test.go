package brain

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/smartfix/internal/learning"
	"github.com/khanglvm/smartfix/internal/metrics"
	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/search"
	"github.com/khanglvm/smartfix/internal/storage"
)

type analyzerFunc func(ctx context.Context, text, deviceCategory string) (models.Analysis, error)

func (f analyzerFunc) GenerateAnalysis(ctx context.Context, text, deviceCategory string) (models.Analysis, error) {
	return f(ctx, text, deviceCategory)
}

type searcherFunc func(ctx context.Context, text string) ([]models.WebResult, error)

func (f searcherFunc) SearchWeb(ctx context.Context, text string) ([]models.WebResult, error) {
	return f(ctx, text)
}

type normalizerFunc func(ctx context.Context, in models.Input) (string, error)

func (f normalizerFunc) Normalize(ctx context.Context, in models.Input) (string, error) {
	return f(ctx, in)
}

type harness struct {
	engine   *Engine
	store    *storage.SQLiteStorage
	index    *search.Indexer
	metrics  *metrics.Metrics
	analyses atomic.Int32
	searches atomic.Int32
}

func newHarness(t *testing.T, analyzer analyzerFunc, searcher searcherFunc) *harness {
	t.Helper()

	store := storage.NewStorage(filepath.Join(t.TempDir(), "brain.db"), nil)
	require.NoError(t, store.Init())
	t.Cleanup(func() { store.Close() })

	index, err := search.NewIndexer(nil)
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	h := &harness{store: store, index: index, metrics: metrics.New()}

	deps := Deps{Store: store, Index: index, Metrics: h.metrics}
	if analyzer != nil {
		deps.Analyzer = analyzerFunc(func(ctx context.Context, text, category string) (models.Analysis, error) {
			h.analyses.Add(1)
			return analyzer(ctx, text, category)
		})
	}
	if searcher != nil {
		deps.WebSearcher = searcherFunc(func(ctx context.Context, text string) ([]models.WebResult, error) {
			h.searches.Add(1)
			return searcher(ctx, text)
		})
	}

	cfg := DefaultConfig()
	cfg.AnalysisTimeout = 2 * time.Second
	engine, err := NewEngine(cfg, deps)
	require.NoError(t, err)
	h.engine = engine
	return h
}

func (h *harness) add(t *testing.T, text string, confidence float64) int64 {
	t.Helper()
	id, err := h.engine.AddRecord(context.Background(), models.ProblemRecord{
		ProblemText:     text,
		Symptoms:        "black screen",
		ProblemType:     "display",
		DeviceCategory:  "television",
		ErrorCodes:      []string{"NO_SIGNAL"},
		SolutionSteps:   []string{"Check the power cable", "Select the correct input"},
		ConfidenceScore: confidence,
		SuccessRate:     0.8,
	})
	require.NoError(t, err)
	return id
}

func goodAnalysis(confidence float64) analyzerFunc {
	return func(context.Context, string, string) (models.Analysis, error) {
		return models.Analysis{
			Issue:            "Backlight failure",
			PossibleCauses:   []string{"Failed LED strip"},
			RecommendedSteps: []models.Step{{Description: "Shine a torch at the screen"}, {Description: "Replace the LED strip"}},
			ConfidenceScore:  confidence,
			AdditionalInfo:   "Common on older panels",
		}, nil
	}
}

func someResults(context.Context, string) ([]models.WebResult, error) {
	return []models.WebResult{{Title: "Fix a black TV", Snippet: "try this", URL: "https://example.com/tv"}}, nil
}

func textInput(text string) models.Input {
	return models.Input{Type: models.InputText, Text: text}
}

func TestProcess_ShortCircuit(t *testing.T) {
	h := newHarness(t, goodAnalysis(0.9), someResults)
	id := h.add(t, "TV screen is black", 0.9)

	resp := h.engine.Process(context.Background(), textInput("tv screen is black"))

	assert.Equal(t, learning.SourceMemory, resp.Source)
	assert.NotEmpty(t, resp.QueryID)
	assert.Equal(t, "TV screen is black", resp.Solution.Issue)
	assert.Equal(t, []string{"black screen"}, resp.Solution.PossibleCauses)
	assert.Equal(t, []models.Step{
		{StepNumber: 1, Description: "Check the power cable"},
		{StepNumber: 2, Description: "Select the correct input"},
	}, resp.Solution.RecommendedSteps)
	require.NotNil(t, resp.Solution.Memory)
	assert.Equal(t, id, resp.Solution.Memory.RecordID)
	assert.Equal(t, int64(1), resp.Solution.Memory.UsageCount)
	assert.Equal(t, []string{"NO_SIGNAL"}, resp.Solution.Memory.ErrorCodes)
	assert.Empty(t, resp.Solution.ExternalSources)

	assert.Zero(t, h.analyses.Load(), "short-circuit must not call the analyzer")
	assert.Zero(t, h.searches.Load(), "short-circuit must not call web search")

	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.UsageCount)
	assert.NotNil(t, rec.LastUsed)

	query, err := h.store.GetQuery(context.Background(), resp.QueryID)
	require.NoError(t, err)
	require.NotNil(t, query.MatchedRecordID)
	assert.Equal(t, id, *query.MatchedRecordID)

	events, err := h.store.LearningEvents(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.DecisionsTotal.WithLabelValues(learning.SourceMemory)))
}

func TestProcess_CombineKeepsStoredAnswer(t *testing.T) {
	h := newHarness(t, goodAnalysis(0.95), someResults)
	id := h.add(t, "TV screen is black", 0.7)

	resp := h.engine.Process(context.Background(), textInput("my tv screen is black after storm"))

	assert.Equal(t, learning.SourceMemory, resp.Source)
	assert.Equal(t, "TV screen is black", resp.Solution.Issue)
	assert.Equal(t, 0.7, resp.Solution.ConfidenceScore)
	assert.Equal(t, "Check the power cable", resp.Solution.RecommendedSteps[0].Description)
	assert.Equal(t, "Common on older panels", resp.Solution.AdditionalInfo)
	require.Len(t, resp.Solution.ExternalSources, 1)
	assert.Equal(t, "https://example.com/tv", resp.Solution.ExternalSources[0].URL)

	assert.Equal(t, int32(1), h.analyses.Load())
	assert.Equal(t, int32(1), h.searches.Load())

	events, err := h.store.LearningEvents(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)

	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.SuccessRate)

	stats, err := h.engine.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalProblems, "stored primary is never promoted")
}

func TestProcess_FreshAnalysisPromoted(t *testing.T) {
	h := newHarness(t, goodAnalysis(0.9), someResults)

	resp := h.engine.Process(context.Background(), textInput("panel goes dark after a few seconds"))

	assert.Equal(t, learning.SourceFreshAnalysis, resp.Source)
	assert.Equal(t, "Backlight failure", resp.Solution.Issue)
	assert.Nil(t, resp.Solution.Memory)
	assert.Len(t, resp.Solution.ExternalSources, 1)
	assert.Equal(t, []models.Step{
		{StepNumber: 1, Description: "Shine a torch at the screen"},
		{StepNumber: 2, Description: "Replace the LED strip"},
	}, resp.Solution.RecommendedSteps)

	all, err := h.store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	promoted := all[0]
	assert.Equal(t, "Backlight failure", promoted.ProblemText)
	assert.Equal(t, "ai_generated", promoted.ProblemType)
	assert.Equal(t, "unknown", promoted.DeviceCategory)
	assert.Equal(t, "panel goes dark after a few seconds", promoted.Symptoms)
	assert.Equal(t, []string{"Shine a torch at the screen", "Replace the LED strip"}, promoted.SolutionSteps)
	assert.Equal(t, 0.9, promoted.ConfidenceScore)
	assert.Equal(t, 0.5, promoted.SuccessRate)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.PromotionsTotal))

	related, err := h.engine.Related("backlight", "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, related)
	assert.Equal(t, promoted.ID, related[0].RecordID)

	// The promoted record now answers the same problem from memory.
	again := h.engine.Process(context.Background(), textInput("backlight failure"))
	assert.Equal(t, learning.SourceMemory, again.Source)
	assert.Equal(t, int32(1), h.analyses.Load())
}

func TestProcess_HyphenatedCodeDoesNotMatchEverything(t *testing.T) {
	h := newHarness(t, goodAnalysis(0.6), someResults)
	ctx := context.Background()
	_, err := h.engine.AddRecord(ctx, models.ProblemRecord{
		ProblemText:     "Router shows error e-04 on boot",
		DeviceCategory:  "iot",
		SolutionSteps:   []string{"Power cycle the router"},
		ConfidenceScore: 0.5,
		SuccessRate:     0.5,
	})
	require.NoError(t, err)
	_, err = h.engine.AddRecord(ctx, models.ProblemRecord{
		ProblemText:     "Phone battery drains quickly",
		DeviceCategory:  "smartphone",
		SolutionSteps:   []string{"Lower screen brightness"},
		ConfidenceScore: 0.9,
		SuccessRate:     0.9,
	})
	require.NoError(t, err)

	found, err := h.engine.Search(ctx, "E-04 wi-fi", "")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Router shows error e-04 on boot", found[0].ProblemText)

	resp := h.engine.Process(ctx, textInput("E-04 wi-fi"))

	assert.Equal(t, learning.SourceFreshAnalysis, resp.Source)
	assert.NotEqual(t, "Phone battery drains quickly", resp.Solution.Issue)
	assert.Equal(t, int32(1), h.analyses.Load())
	require.NotNil(t, resp.Solution.Memory)
	assert.Equal(t, "iot", resp.Solution.Memory.DeviceCategory)
}

func TestProcess_PromotionThreshold(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		promoted   bool
	}{
		{"at threshold", 0.7, false},
		{"above threshold", 0.71, true},
		{"low", 0.3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, goodAnalysis(tt.confidence), someResults)
			h.engine.Process(context.Background(), textInput("panel goes dark"))

			stats, err := h.engine.Stats(context.Background())
			require.NoError(t, err)
			if tt.promoted {
				assert.Equal(t, int64(1), stats.TotalProblems)
			} else {
				assert.Zero(t, stats.TotalProblems)
			}
		})
	}
}

func TestProcess_WeakStoredMatchCarriedAlong(t *testing.T) {
	h := newHarness(t, goodAnalysis(0.6), someResults)
	id := h.add(t, "TV screen is black", 0.5)

	resp := h.engine.Process(context.Background(), textInput("tv screen black"))

	assert.Equal(t, learning.SourceFreshAnalysis, resp.Source)
	assert.Equal(t, "Backlight failure", resp.Solution.Issue)
	require.NotNil(t, resp.Solution.Memory)
	assert.Equal(t, id, resp.Solution.Memory.RecordID)

	query, err := h.store.GetQuery(context.Background(), resp.QueryID)
	require.NoError(t, err)
	assert.Nil(t, query.MatchedRecordID)

	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.UsageCount, "usage is recorded for the best match on every branch")
}

func TestProcess_BranchFailureIsolation(t *testing.T) {
	t.Run("analysis fails", func(t *testing.T) {
		failing := analyzerFunc(func(context.Context, string, string) (models.Analysis, error) {
			return models.Analysis{}, errors.New("model unavailable")
		})
		h := newHarness(t, failing, someResults)

		resp := h.engine.Process(context.Background(), textInput("router keeps rebooting"))

		assert.Equal(t, learning.SourceFreshAnalysis, resp.Source)
		assert.Equal(t, "Unknown issue", resp.Solution.Issue)
		assert.Equal(t, 0.5, resp.Solution.ConfidenceScore)
		assert.Empty(t, resp.Solution.RecommendedSteps)
		assert.Len(t, resp.Solution.ExternalSources, 1)
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CollaboratorFailuresTotal.WithLabelValues("analysis")))
	})

	t.Run("web search fails", func(t *testing.T) {
		failing := searcherFunc(func(context.Context, string) ([]models.WebResult, error) {
			return nil, errors.New("quota exceeded")
		})
		h := newHarness(t, goodAnalysis(0.6), failing)

		resp := h.engine.Process(context.Background(), textInput("router keeps rebooting"))

		assert.Equal(t, "Backlight failure", resp.Solution.Issue)
		assert.NotNil(t, resp.Solution.ExternalSources)
		assert.Empty(t, resp.Solution.ExternalSources)
	})

	t.Run("analysis panics", func(t *testing.T) {
		panicking := analyzerFunc(func(context.Context, string, string) (models.Analysis, error) {
			panic("nil map")
		})
		h := newHarness(t, panicking, someResults)

		resp := h.engine.Process(context.Background(), textInput("router keeps rebooting"))

		assert.Equal(t, learning.SourceFreshAnalysis, resp.Source)
		assert.Equal(t, "Unknown issue", resp.Solution.Issue)
	})

	t.Run("no collaborators", func(t *testing.T) {
		h := newHarness(t, nil, nil)

		resp := h.engine.Process(context.Background(), textInput("router keeps rebooting"))

		assert.Equal(t, "Unknown issue", resp.Solution.Issue)
		assert.Empty(t, resp.Solution.ExternalSources)
	})
}

func TestProcess_BranchesRunConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	bothStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(bothStarted)
	}()

	wait := func(ctx context.Context) error {
		started.Done()
		select {
		case <-bothStarted:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	analyzer := analyzerFunc(func(ctx context.Context, _, _ string) (models.Analysis, error) {
		if err := wait(ctx); err != nil {
			return models.Analysis{}, err
		}
		return goodAnalysis(0.6)(ctx, "", "")
	})
	searcher := searcherFunc(func(ctx context.Context, text string) ([]models.WebResult, error) {
		if err := wait(ctx); err != nil {
			return nil, err
		}
		return someResults(ctx, text)
	})

	h := newHarness(t, analyzer, searcher)
	resp := h.engine.Process(context.Background(), textInput("speaker crackles"))

	assert.Equal(t, "Backlight failure", resp.Solution.Issue)
	assert.Len(t, resp.Solution.ExternalSources, 1)
}

func TestProcess_BranchTimeout(t *testing.T) {
	slow := analyzerFunc(func(ctx context.Context, _, _ string) (models.Analysis, error) {
		<-ctx.Done()
		return models.Analysis{}, ctx.Err()
	})
	h := newHarness(t, slow, someResults)
	h.engine.cfg.AnalysisTimeout = 20 * time.Millisecond

	resp := h.engine.Process(context.Background(), textInput("speaker crackles"))

	assert.Equal(t, "Unknown issue", resp.Solution.Issue)
	assert.Len(t, resp.Solution.ExternalSources, 1)
}

func TestProcess_ErrorResponses(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		h := newHarness(t, goodAnalysis(0.9), someResults)

		resp := h.engine.Process(context.Background(), textInput("   "))

		assert.Equal(t, learning.SourceError, resp.Source)
		assert.Equal(t, "System Error", resp.Solution.Issue)
		assert.Equal(t, 0.1, resp.Solution.ConfidenceScore)
		assert.Equal(t, "empty query", resp.Solution.Error)
		assert.Len(t, resp.Solution.RecommendedSteps, 2)
		assert.Zero(t, h.analyses.Load())
	})

	t.Run("store failure", func(t *testing.T) {
		h := newHarness(t, goodAnalysis(0.9), someResults)
		require.NoError(t, h.store.Close())

		resp := h.engine.Process(context.Background(), textInput("tv screen is black"))

		assert.Equal(t, learning.SourceError, resp.Source)
		assert.Equal(t, 0.1, resp.Solution.ConfidenceScore)
		assert.Contains(t, resp.Solution.Error, storage.ErrClosed.Error())
		assert.Equal(t, "tv screen is black", resp.QueryText)
	})

	t.Run("panic", func(t *testing.T) {
		h := newHarness(t, goodAnalysis(0.9), someResults)
		h.engine.normalizer = normalizerFunc(func(context.Context, models.Input) (string, error) {
			panic("boom")
		})

		resp := h.engine.Process(context.Background(), textInput("tv screen is black"))

		assert.Equal(t, learning.SourceError, resp.Source)
		assert.Equal(t, []string{"Technical issue in processing", "Service unavailable"}, resp.Solution.PossibleCauses)
		assert.Contains(t, resp.Solution.Error, "boom")
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.DecisionsTotal.WithLabelValues(learning.SourceError)))
	})
}

func TestProcess_NormalizationFallback(t *testing.T) {
	h := newHarness(t, goodAnalysis(0.9), someResults)
	h.add(t, "TV screen is black", 0.9)
	h.engine.normalizer = normalizerFunc(func(context.Context, models.Input) (string, error) {
		return "", errors.New("corrupt audio")
	})

	resp := h.engine.Process(context.Background(), models.Input{
		Type:    models.InputVoice,
		Text:    "TV screen is black",
		Payload: []byte("garbage"),
	})

	assert.Equal(t, learning.SourceMemory, resp.Source)
	assert.Equal(t, "TV screen is black", resp.QueryText)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CollaboratorFailuresTotal.WithLabelValues("normalize")))
}

func TestProcess_ConcurrentUsage(t *testing.T) {
	h := newHarness(t, goodAnalysis(0.9), someResults)
	id := h.add(t, "TV screen is black", 0.9)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := h.engine.Process(context.Background(), textInput("tv screen is black"))
			assert.Equal(t, learning.SourceMemory, resp.Source)
		}()
	}
	wg.Wait()

	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(n), rec.UsageCount)
}

func TestSubmitFeedback(t *testing.T) {
	h := newHarness(t, goodAnalysis(0.95), someResults)
	id := h.add(t, "TV screen is black", 0.7)
	ctx := context.Background()

	// Combined answer: one optimistic success event.
	resp := h.engine.Process(ctx, textInput("tv screen is black"))
	require.Equal(t, learning.SourceMemory, resp.Source)

	result, err := h.engine.SubmitFeedback(ctx, resp.QueryID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, learning.FeedbackRecorded, result.Status)
	require.NotNil(t, result.RecordID)
	assert.Equal(t, id, *result.RecordID)
	require.NotNil(t, result.SuccessRate)
	assert.Equal(t, 0.5, *result.SuccessRate)

	_, err = h.engine.SubmitFeedback(ctx, resp.QueryID, true, nil)
	assert.ErrorIs(t, err, learning.ErrFeedbackRecorded)

	rec, err := h.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0.5, rec.SuccessRate, "duplicate feedback must not change the rate")

	result, err = h.engine.SubmitFeedback(ctx, "no-such-query", true, nil)
	require.NoError(t, err)
	assert.Equal(t, learning.FeedbackUnknownQuery, result.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.FeedbackTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.FeedbackTotal.WithLabelValues(learning.FeedbackDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.FeedbackTotal.WithLabelValues(learning.FeedbackUnknownQuery)))
}

func TestSearchAndAddRecord(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	h.add(t, "TV screen is black", 0.6)
	h.add(t, "TV has no sound", 0.9)

	results, err := h.engine.Search(ctx, "tv screen", "television")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "TV screen is black", results[0].ProblemText, "exact substring is pinned first")

	for _, rec := range results {
		assert.Zero(t, rec.UsageCount, "search does not record usage")
	}

	_, err = h.engine.AddRecord(ctx, models.ProblemRecord{ProblemText: "no steps"})
	assert.ErrorIs(t, err, storage.ErrInvalidRecord)

	count, err := h.index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestLoadIndex(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	n, err := h.store.Seed(ctx)
	require.NoError(t, err)
	require.NoError(t, h.engine.LoadIndex(ctx))

	count, err := h.index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(n), count)
}

func TestNewEngine_RequiresStore(t *testing.T) {
	_, err := NewEngine(DefaultConfig(), Deps{})
	assert.Error(t, err)
}
