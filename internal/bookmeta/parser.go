package bookmeta

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// BookMeta is what we scrape off an Open Library work page to fill the
// gaps a user left when listing a book.
type BookMeta struct {
	OpenLibraryID  string    `json:"open_library_id"`
	Title          string    `json:"title"`
	Author         *string   `json:"author,omitempty"`
	CoverImageURL  *string   `json:"cover_image_url,omitempty"`
	FirstPublished *string   `json:"first_published,omitempty"`
	Subjects       []string  `json:"subjects,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`
}

type Parser struct {
	httpClient *http.Client
	baseURL    string
	log        *zap.Logger
	maxRetries int
}

func NewParser(baseURL string, timeout time.Duration, maxRetries int, log *zap.Logger) *Parser {
	return &Parser{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log,
		maxRetries: maxRetries,
	}
}

// FetchAndParse loads the work page for an Open Library ID (e.g.
// "OL27448W") and extracts display metadata.
func (p *Parser) FetchAndParse(ctx context.Context, openLibraryID string) (*BookMeta, error) {
	url := fmt.Sprintf("%s/works/%s", p.baseURL, openLibraryID)

	var doc *goquery.Document
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "bookcircle/1.0 (book metadata enrichment)")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}

	if lastErr != nil {
		return nil, lastErr
	}

	return Parse(doc, openLibraryID), nil
}

// Parse extracts metadata from an already loaded work page document.
// Split out from fetching so it can be tested against static HTML.
func Parse(doc *goquery.Document, openLibraryID string) *BookMeta {
	meta := &BookMeta{
		OpenLibraryID: openLibraryID,
		FetchedAt:     time.Now(),
	}

	meta.Title = strings.TrimSpace(doc.Find("h1.work-title").First().Text())
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("h1[itemprop=name]").First().Text())
	}

	if author := strings.TrimSpace(doc.Find("a[itemprop=author]").First().Text()); author != "" {
		meta.Author = &author
	} else if author := strings.TrimSpace(doc.Find(".edition-byline a").First().Text()); author != "" {
		meta.Author = &author
	}

	// Cover: prefer the og:image tag, fall back to the cover img element.
	if cover, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && cover != "" {
		meta.CoverImageURL = &cover
	} else if cover, ok := doc.Find(".cover img, img.cover").Attr("src"); ok && cover != "" {
		if strings.HasPrefix(cover, "//") {
			cover = "https:" + cover
		}
		meta.CoverImageURL = &cover
	}

	if published := strings.TrimSpace(doc.Find("span.first-published-date").First().Text()); published != "" {
		published = strings.TrimPrefix(published, "(")
		published = strings.TrimSuffix(published, ")")
		meta.FirstPublished = &published
	}

	doc.Find(".subjects a, a.subject-link").Each(func(_ int, s *goquery.Selection) {
		subject := strings.TrimSpace(s.Text())
		if subject != "" && len(meta.Subjects) < 10 {
			meta.Subjects = append(meta.Subjects, subject)
		}
	})

	return meta
}
