// -----------------------------------------------------------------------
// InfoMoney Scraper - market news with article bodies rendered as markdown
// -----------------------------------------------------------------------

package infomoney

import (
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/scrapers"
)

const (
	Name    = "infomoney"
	baseURL = "https://www.infomoney.com.br"

	maxArticles = 10
)

// Article is one extracted news item.
type Article struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Summary     string `json:"summary,omitempty"`
	Body        string `json:"body,omitempty"` // markdown
	PublishedAt string `json:"published_at,omitempty"`
}

// Scraper extracts the news list for a ticker. The list page is fetched
// once; the top article bodies are fetched individually and converted to
// markdown.
type Scraper struct {
	*scrapers.Base
	converter  *md.Converter
	fetchBody  bool
	maxResults int
}

var _ interfaces.Scraper = (*Scraper)(nil)

// New creates the InfoMoney news scraper.
func New(opts scrapers.Options, logger arbor.ILogger) *Scraper {
	desc := interfaces.Descriptor{
		Name:          Name,
		Source:        "infomoney.com.br",
		Category:      interfaces.CategoryNews,
		RatePerMinute: 10,
		RatePerHour:   200,
	}
	converter := md.NewConverter("", true, nil)
	return &Scraper{
		Base:       scrapers.NewBase(desc, opts, logger),
		converter:  converter,
		fetchBody:  true,
		maxResults: maxArticles,
	}
}

// Scrape fetches the search page for the ticker and extracts articles.
func (s *Scraper) Scrape(ctx context.Context, target string) (*models.ScrapeResult, error) {
	ticker := common.NormalizeTicker(target)
	url := fmt.Sprintf("%s/?s=%s", baseURL, ticker)

	doc, err := s.FetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	articles := extractArticles(doc, s.maxResults)
	if len(articles) == 0 {
		return nil, fmt.Errorf("no articles found for %s", ticker)
	}

	if s.fetchBody {
		// Only the top few articles get their bodies fetched; the rest
		// stay title-and-link entries.
		for i := range articles {
			if i >= 3 {
				break
			}
			body, err := s.fetchArticleBody(ctx, articles[i].URL)
			if err != nil {
				s.Logger().Debug().
					Err(err).
					Str("url", articles[i].URL).
					Msg("Failed to fetch article body")
				continue
			}
			articles[i].Body = body
		}
	}

	items := make([]interface{}, 0, len(articles))
	for _, a := range articles {
		items = append(items, map[string]interface{}{
			"title":        a.Title,
			"url":          a.URL,
			"summary":      a.Summary,
			"body":         a.Body,
			"published_at": a.PublishedAt,
		})
	}

	data := map[string]interface{}{
		"articles": items,
		"count":    len(items),
	}
	return s.NewResult(ticker, data, url), nil
}

// fetchArticleBody fetches one article page and converts its content to
// markdown.
func (s *Scraper) fetchArticleBody(ctx context.Context, url string) (string, error) {
	doc, err := s.FetchDocument(ctx, url)
	if err != nil {
		return "", err
	}

	content := doc.Find("article .article-content, article .entry-content, article").First()
	if content.Length() == 0 {
		return "", fmt.Errorf("no article content found")
	}
	html, err := content.Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize article HTML: %w", err)
	}

	markdown, err := s.converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert article to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// ScrapeWithRetry wraps Scrape with the shared retry policy.
func (s *Scraper) ScrapeWithRetry(ctx context.Context, target string) *models.ScrapeResult {
	return s.DoScrapeWithRetry(ctx, target, s.Scrape)
}

// HealthCheck probes the site root.
func (s *Scraper) HealthCheck(ctx context.Context) bool {
	return s.CheckURL(ctx, baseURL)
}

// extractArticles walks the result cards on a listing page.
func extractArticles(doc *goquery.Document, limit int) []Article {
	var articles []Article
	seen := make(map[string]bool)

	doc.Find("article, div.card-news, li.search-result").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		link := card.Find("a[href]").First()
		href, _ := link.Attr("href")
		title := strings.TrimSpace(card.Find("h1, h2, h3, .title").First().Text())
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}
		if href == "" || title == "" || seen[href] {
			return true
		}
		seen[href] = true

		articles = append(articles, Article{
			Title:       title,
			URL:         href,
			Summary:     strings.TrimSpace(card.Find("p").First().Text()),
			PublishedAt: strings.TrimSpace(card.Find("time").First().AttrOr("datetime", "")),
		})
		return len(articles) < limit
	})

	return articles
}
