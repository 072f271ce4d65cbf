package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultBaseURL is the article prefix TitleToURL builds on
const DefaultBaseURL = "https://en.wikipedia.org/wiki/"

// ErrInvalidURL is returned for URLs that do not name a Wikipedia article
var ErrInvalidURL = errors.New("not a wikipedia article url")

// Non-article namespaces (media, meta pages, talk pages)
var excludedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(file|image|media):`),
	regexp.MustCompile(`(?i)^category:`),
	regexp.MustCompile(`(?i)^special:`),
	regexp.MustCompile(`(?i)^help:`),
	regexp.MustCompile(`(?i)^(wikipedia|wp|project):`),
	regexp.MustCompile(`(?i)^template:`),
	regexp.MustCompile(`(?i)^portal:`),
	regexp.MustCompile(`(?i)^(user|draft|module|mediawiki|timedtext|book|gadget):`),
	regexp.MustCompile(`(?i)^([a-z]+[ _])?talk:`),
}

var wikipediaHost = regexp.MustCompile(`(?i)^([a-z0-9-]+\.)+wikipedia\.org$`)

// IsExcluded reports whether a title lives in a non-article namespace
func IsExcluded(title string) bool {
	for _, pattern := range excludedPatterns {
		if pattern.MatchString(title) {
			return true
		}
	}
	return false
}

// IsWikipediaArticle reports whether rawURL points at an article page
func IsWikipediaArticle(rawURL string) bool {
	_, err := CanonicalURL(rawURL)
	return err == nil
}

// ExtractTitleFromURL turns an article URL into its title, with
// underscores replaced by spaces and percent-escapes decoded
func ExtractTitleFromURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !strings.HasPrefix(parsed.Path, "/wiki/") {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	title := strings.ReplaceAll(strings.TrimPrefix(parsed.Path, "/wiki/"), "_", " ")
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: empty title in %s", ErrInvalidURL, rawURL)
	}
	return title, nil
}

// TitleToURL builds the article URL on DefaultBaseURL
func TitleToURL(title string) string {
	return DefaultBaseURL + escapeTitle(title)
}

// CanonicalURL validates rawURL and rewrites it to the form used as the
// visited and storage key: https scheme, lower-case host, no query or fragment
func CanonicalURL(rawURL string) (string, error) {
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	}

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme in %s", ErrInvalidURL, rawURL)
	}
	host := strings.ToLower(parsed.Hostname())
	if !wikipediaHost.MatchString(host) {
		return "", fmt.Errorf("%w: foreign host %s", ErrInvalidURL, host)
	}

	title, err := ExtractTitleFromURL(rawURL)
	if err != nil {
		return "", err
	}
	if IsExcluded(title) {
		return "", fmt.Errorf("%w: non-article namespace %q", ErrInvalidURL, title)
	}

	return "https://" + host + "/wiki/" + escapeTitle(title), nil
}

// keeps parentheses and commas readable the way Wikipedia renders them
var titleUnescaper = strings.NewReplacer("%28", "(", "%29", ")", "%2C", ",")

func escapeTitle(title string) string {
	title = strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
	return titleUnescaper.Replace(url.PathEscape(title))
}
