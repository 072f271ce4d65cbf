package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/wiki-weaver/internal/storage"
)

func TestStoreArticleAndLinkUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewStore()

	a, err := m.SaveArticle(ctx, &storage.Article{Title: "A", URL: "https://en.wikipedia.org/wiki/A"})
	require.NoError(t, err)
	b, err := m.EnsureArticle(ctx, "B", "https://en.wikipedia.org/wiki/B")
	require.NoError(t, err)

	again, err := m.SaveArticle(ctx, &storage.Article{Title: "A", URL: "https://en.wikipedia.org/wiki/A", Content: "new"})
	require.NoError(t, err)
	assert.Equal(t, a, again)

	require.NoError(t, m.SaveLink(ctx, &storage.Link{FromArticleID: a, ToArticleID: b, RelevanceScore: 0.2}))
	require.NoError(t, m.SaveLink(ctx, &storage.Link{FromArticleID: a, ToArticleID: b, RelevanceScore: 0.7}))

	links, err := m.ListLinks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.InDelta(t, 0.7, links[0].RelevanceScore, 1e-9)

	err = m.SaveLink(ctx, &storage.Link{FromArticleID: a, ToArticleID: 99, RelevanceScore: 0.5})
	assert.Error(t, err)

	st, err := m.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalArticles)
	assert.Equal(t, 1, st.PendingArticles)
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewStore()

	_, err := m.SaveArticle(ctx, &storage.Article{Title: "A", URL: "u", Categories: []string{"x"}})
	require.NoError(t, err)

	got, err := m.GetArticleByURL(ctx, "u")
	require.NoError(t, err)
	got.Categories[0] = "mutated"

	again, err := m.GetArticleByURL(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "x", again.Categories[0])
}

func TestStoreCleanup(t *testing.T) {
	ctx := context.Background()
	m := NewStore()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	m.Now = func() time.Time { return now }

	old, err := m.SaveArticle(ctx, &storage.Article{Title: "Old", URL: "old", ParsedAt: now.AddDate(0, 0, -10)})
	require.NoError(t, err)
	fresh, err := m.SaveArticle(ctx, &storage.Article{Title: "Fresh", URL: "fresh"})
	require.NoError(t, err)
	require.NoError(t, m.SaveLink(ctx, &storage.Link{FromArticleID: fresh, ToArticleID: old, RelevanceScore: 0.5}))

	deleted, err := m.Cleanup(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	links, err := m.ListLinks(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	m := NewStore()
	m.SetUnavailable(true)

	_, err := m.SaveArticle(ctx, &storage.Article{Title: "A", URL: "u"})
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	_, err = m.GetStats(ctx)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestStoreSessions(t *testing.T) {
	ctx := context.Background()
	m := NewStore()

	s := &storage.CrawlSession{StartURL: "u", MaxDepth: 1, MaxArticles: 5}
	_, err := m.CreateSession(ctx, s)
	require.NoError(t, err)

	s.Status = storage.SessionAborted
	require.NoError(t, m.FinishSession(ctx, s))
	assert.ErrorIs(t, m.FinishSession(ctx, s), storage.ErrSessionFinished)

	got, err := m.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.SessionAborted, got.Status)
	assert.True(t, got.Finished())
}
