package scraper_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cgpvp/cgpvp/internal/scraper"
	"github.com/cgpvp/cgpvp/internal/scraper/scrapertest"
)

func newExtractor() *scraper.Extractor {
	return scraper.NewExtractor(0, zap.NewNop().Sugar())
}

func TestExtractLatest_ShortPostNoImage(t *testing.T) {
	s := scrapertest.NewSession(scrapertest.Page{
		Posts: []scrapertest.Post{{Text: "  Hola mundo \n"}},
	})

	before := time.Now()
	draft, err := newExtractor().ExtractLatest(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, draft)

	assert.Equal(t, "Hola mundo", draft.Text)
	assert.Empty(t, draft.ImageURL)
	assert.False(t, draft.CollectedAt.Before(before))
}

func TestExtractLatest_TakesFirstContainer(t *testing.T) {
	s := scrapertest.NewSession(scrapertest.Page{
		Posts: []scrapertest.Post{
			{Text: "newest", ImageURL: "https://scontent.xx.fbcdn.net/v/a.jpg"},
			{Text: "older"},
		},
	})

	draft, err := newExtractor().ExtractLatest(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "newest", draft.Text)
	assert.Equal(t, "https://scontent.xx.fbcdn.net/v/a.jpg", draft.ImageURL)
}

func TestExtractLatest_ExpandsTruncatedText(t *testing.T) {
	full := strings.Repeat("Curso de rescate vehicular. ", 10)
	s := scrapertest.NewSession(scrapertest.Page{
		Posts: []scrapertest.Post{{
			Text:          full,
			Truncated:     true,
			TruncatedText: full[:40] + "… Ver más",
		}},
	})

	draft, err := newExtractor().ExtractLatest(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(full), draft.Text)
}

func TestExtractLatest_NoContainers(t *testing.T) {
	s := scrapertest.NewSession(scrapertest.Page{})

	draft, err := newExtractor().ExtractLatest(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, draft)
	assert.Equal(t, 1, s.Calls(), "read script must not run when there are no posts")
}

func TestExtractLatest_MissingText(t *testing.T) {
	s := scrapertest.NewSession(scrapertest.Page{
		Posts: []scrapertest.Post{{NoText: true, ImageURL: "https://scontent.example/a.jpg"}},
	})

	draft, err := newExtractor().ExtractLatest(context.Background(), s)
	assert.Nil(t, draft)
	assert.ErrorIs(t, err, scraper.ErrTextMissing)
}

func TestExtractLatest_EvaluateError(t *testing.T) {
	s := scrapertest.NewSession(scrapertest.Page{Posts: []scrapertest.Post{{Text: "x"}}})
	s.EvaluateErr = errors.New("target closed")

	_, err := newExtractor().ExtractLatest(context.Background(), s)
	assert.ErrorContains(t, err, "target closed")
}

func TestExtractLatest_SettleRespectsContext(t *testing.T) {
	s := scrapertest.NewSession(scrapertest.Page{
		Posts: []scrapertest.Post{{Text: "long", Truncated: true, TruncatedText: "lo"}},
	})
	ex := scraper.NewExtractor(time.Hour, zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ex.ExtractLatest(ctx, s)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSleep(t *testing.T) {
	require.NoError(t, scraper.Sleep(context.Background(), 0))
	require.NoError(t, scraper.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, scraper.Sleep(ctx, time.Hour), context.Canceled)
}

func TestExpandScript_EmbedsLabels(t *testing.T) {
	for _, label := range scraper.ExpandLabels {
		assert.Contains(t, scraper.ExpandLatestJS, label)
	}
	assert.Contains(t, scraper.ReadLatestJS, scraper.PostMessage)
}
