package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExcluded(t *testing.T) {
	tests := []struct {
		title    string
		excluded bool
	}{
		{"Graph theory", false},
		{"Star Wars: Episode IV", false},
		{"File:Königsberg bridges.png", true},
		{"Image:Map.svg", true},
		{"Category:Graph theory", true},
		{"Special:Random", true},
		{"Help:Contents", true},
		{"Wikipedia:About", true},
		{"Template:Infobox", true},
		{"Portal:Mathematics", true},
		{"User:Example", true},
		{"Talk:Graph theory", true},
		{"User talk:Example", true},
		{"Wikipedia_talk:About", true},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.excluded, IsExcluded(tt.title))
		})
	}
}

func TestTitleToURL(t *testing.T) {
	assert.Equal(t, "https://en.wikipedia.org/wiki/Graph_theory", TitleToURL("Graph theory"))
	assert.Equal(t, "https://en.wikipedia.org/wiki/Python_(programming_language)", TitleToURL("Python (programming language)"))
	assert.Equal(t, "https://en.wikipedia.org/wiki/Paris,_Texas", TitleToURL("Paris, Texas"))
}

func TestTitleRoundTrip(t *testing.T) {
	for _, title := range []string{"Graph theory", "Café", "Python (programming language)", "AC/DC", "Paris, Texas"} {
		got, err := ExtractTitleFromURL(TitleToURL(title))
		require.NoError(t, err)
		assert.Equal(t, title, got)
	}
}

func TestExtractTitleFromURL(t *testing.T) {
	title, err := ExtractTitleFromURL("https://en.wikipedia.org/wiki/Leonhard_Euler#Life")
	require.NoError(t, err)
	assert.Equal(t, "Leonhard Euler", title)

	_, err = ExtractTitleFromURL("https://en.wikipedia.org/w/index.php?title=Euler")
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = ExtractTitleFromURL("https://en.wikipedia.org/wiki/")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://en.wikipedia.org/wiki/Graph_theory", "https://en.wikipedia.org/wiki/Graph_theory"},
		{"http://EN.Wikipedia.org/wiki/Graph_theory?oldid=1#History", "https://en.wikipedia.org/wiki/Graph_theory"},
		{"//en.wikipedia.org/wiki/Graph_theory", "https://en.wikipedia.org/wiki/Graph_theory"},
		{"https://en.wikipedia.org/wiki/Graph%20theory", "https://en.wikipedia.org/wiki/Graph_theory"},
		{"https://de.m.wikipedia.org/wiki/Berlin", "https://de.m.wikipedia.org/wiki/Berlin"},
	}
	for _, tt := range tests {
		got, err := CanonicalURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestCanonicalURLRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"not a url",
		"ftp://en.wikipedia.org/wiki/Graph_theory",
		"https://example.com/wiki/Graph_theory",
		"https://wikipedia.org.evil.com/wiki/Graph_theory",
		"https://en.wikipedia.org/w/index.php?title=Graph_theory",
		"https://en.wikipedia.org/wiki/Category:Graph_theory",
		"https://en.wikipedia.org/wiki/Talk:Graph_theory",
	} {
		_, err := CanonicalURL(in)
		assert.ErrorIs(t, err, ErrInvalidURL, in)
		assert.False(t, IsWikipediaArticle(in), in)
	}
}
