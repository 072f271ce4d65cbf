package parser

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/alvmarrod/wiki-weaver/internal/storage"
)

// ErrParse is returned for pages that cannot be turned into an article.
// Such pages are skipped and never retried.
var ErrParse = errors.New("parse failure")

// Link is a raw outbound link found on a page
type Link struct {
	Title      string
	AnchorText string
	URL        string
}

// Page is the structured result of parsing one article page.
// Article.ID and Article.ParsedAt are left for the store to assign.
type Page struct {
	Article storage.Article
	Links   []Link
}

// WikipediaParser extracts articles from Wikipedia's rendered HTML
type WikipediaParser struct{}

// NewWikipediaParser creates a parser
func NewWikipediaParser() *WikipediaParser {
	return &WikipediaParser{}
}

var (
	editMarker  = regexp.MustCompile(`\[\s*edit\s*\]`)
	citeMarker  = regexp.MustCompile(`\[\d+\]`)
	spaceRun    = regexp.MustCompile(`\s+`)
	titleSuffix = regexp.MustCompile(`\s+[-–—]\s+Wikipedia\s*$`)
)

// ParsePage parses html fetched from pageURL
func (p *WikipediaParser) ParsePage(html []byte, pageURL string) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid page url: %v", ErrParse, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	title := cleanText(doc.Find("#firstHeading").First().Text())
	if title == "" {
		title = titleSuffix.ReplaceAllString(cleanText(doc.Find("title").First().Text()), "")
	}
	if title == "" {
		return nil, fmt.Errorf("%w: no title in %s", ErrParse, pageURL)
	}

	page := &Page{
		Article: storage.Article{
			Title:      title,
			URL:        pageURL,
			Categories: extractCategories(doc),
			Infobox:    map[string]string{},
		},
	}

	root := doc.Find("#mw-content-text .mw-parser-output").First()
	if root.Length() == 0 {
		root = doc.Find("#mw-content-text").First()
	}

	if root.Length() > 0 {
		page.Article.Infobox = extractInfobox(root)
		page.Article.Coordinates = extractCoordinates(doc)
		page.Links = extractLinks(root, base)

		root.Find("style, script, sup.reference, .mw-editsection, .navbox, table").Remove()
		page.Article.Content, page.Article.Summary, page.Article.Sections = extractText(root)
	}

	if page.Article.Content == "" {
		if err := readabilityFallback(html, base, &page.Article); err != nil {
			return nil, err
		}
	}

	return page, nil
}

func cleanText(s string) string {
	s = editMarker.ReplaceAllString(s, "")
	s = citeMarker.ReplaceAllString(s, "")
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func extractCategories(doc *goquery.Document) []string {
	categories := make([]string, 0)
	doc.Find("#mw-normal-catlinks ul li a").Each(func(_ int, s *goquery.Selection) {
		if name := cleanText(s.Text()); name != "" {
			categories = append(categories, name)
		}
	})
	return categories
}

func extractInfobox(root *goquery.Selection) map[string]string {
	infobox := make(map[string]string)
	root.Find("table.infobox tr").Each(func(_ int, row *goquery.Selection) {
		key := cleanText(row.Find("th").First().Text())
		value := cleanText(row.Find("td").First().Text())
		if key != "" && value != "" {
			infobox[key] = value
		}
	})
	return infobox
}

// extractCoordinates reads the "lat; lon" microformat Wikipedia renders in .geo
func extractCoordinates(doc *goquery.Document) *storage.Coordinates {
	geo := strings.TrimSpace(doc.Find(".geo").First().Text())
	parts := strings.Split(geo, ";")
	if len(parts) != 2 {
		return nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil
	}
	return &storage.Coordinates{Latitude: lat, Longitude: lon}
}

func extractLinks(root *goquery.Selection, base *url.URL) []Link {
	links := make([]Link, 0)
	root.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("new") || s.HasClass("external") {
			return
		}
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		target := base.ResolveReference(ref)
		if !strings.HasPrefix(target.Path, "/wiki/") || !strings.EqualFold(target.Host, base.Host) {
			return
		}
		target.Fragment = ""

		title, _ := s.Attr("title")
		title = strings.TrimSpace(title)
		if title == "" {
			title = strings.ReplaceAll(strings.TrimPrefix(target.Path, "/wiki/"), "_", " ")
		}

		links = append(links, Link{
			Title:      title,
			AnchorText: cleanText(s.Text()),
			URL:        target.String(),
		})
	})
	return links
}

func extractText(root *goquery.Selection) (content, summary string, sections []storage.Section) {
	var paragraphs []string
	sections = make([]storage.Section, 0)
	current := -1

	root.Find("h2, p").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "h2" {
			sections = append(sections, storage.Section{Title: cleanText(s.Text())})
			current = len(sections) - 1
			return
		}
		text := cleanText(s.Text())
		if text == "" {
			return
		}
		paragraphs = append(paragraphs, text)
		if current >= 0 {
			if sections[current].Text != "" {
				sections[current].Text += "\n\n"
			}
			sections[current].Text += text
		}
	})

	if len(paragraphs) > 0 {
		summary = paragraphs[0]
	}
	return strings.Join(paragraphs, "\n\n"), summary, sections
}

// readabilityFallback fills content for pages without the usual article markup
func readabilityFallback(html []byte, base *url.URL, a *storage.Article) error {
	article, err := readability.FromReader(bytes.NewReader(html), base)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return fmt.Errorf("%w: no readable content in %s", ErrParse, base)
	}
	a.Content = text
	for _, line := range strings.Split(text, "\n") {
		if line = cleanText(line); line != "" {
			a.Summary = line
			break
		}
	}
	return nil
}
