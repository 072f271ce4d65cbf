package metrics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerCounters(t *testing.T) {
	tr := NewTracker("run-1")
	tr.IncrementArticlesCrawled()
	tr.IncrementArticlesCrawled()
	tr.IncrementArticlesProcessed()
	tr.AddLinksAnalyzed(7)
	tr.IncrementLinksRecorded()
	tr.IncrementPagesFetched()
	tr.IncrementPagesFailed()
	tr.IncrementRetries()
	tr.RecordFetchTime(100 * time.Millisecond)
	tr.RecordFetchTime(300 * time.Millisecond)

	s := tr.GetSnapshot()
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 2, s.ArticlesCrawled)
	assert.Equal(t, 1, s.ArticlesProcessed)
	assert.Equal(t, 7, s.LinksAnalyzed)
	assert.Equal(t, 1, s.LinksRecorded)
	assert.Equal(t, 1, s.PagesFailed)
	assert.Equal(t, 1, s.Retries)
	assert.Equal(t, int64(400), s.TotalFetchTimeMs)
	assert.Equal(t, int64(200), s.AvgFetchTimeMs)

	assert.Contains(t, tr.LogProgress(), "2 crawled, 1 processed")
}

func TestWriteAndReadFile(t *testing.T) {
	tr := NewTracker("run-2")
	tr.IncrementArticlesCrawled()
	tr.Finish("completed")

	path := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, tr.WriteToFile(path))

	s, err := ReadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "run-2", s.RunID)
	assert.Equal(t, 1, s.ArticlesCrawled)
	assert.Equal(t, "completed", s.TerminationReason)
	assert.False(t, s.EndTime.IsZero())
}

func TestReadFromFileMissing(t *testing.T) {
	_, err := ReadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
