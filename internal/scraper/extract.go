package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Selectors tried in order before falling back to bare paragraphs.
// News CMSes almost always wrap the body in one of these.
var contentSelectors = []string{
	"article",
	"[class*='article-body']",
	"[class*='content']",
	".post",
	".entry-content",
	"main",
}

// extractReadability is the first extraction stage: a readability pass
// over the fetched document, then tag stripping of what readability
// keeps anyway. Returns the cleaned text and the lead image it found.
func extractReadability(htmlBody, pageURL string) (string, string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", "", fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(htmlBody), parsed)
	if err != nil {
		return "", "", fmt.Errorf("readability: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return "", "", fmt.Errorf("parse readability output: %w", err)
	}
	doc.Find("script, style, figure, aside, iframe").Remove()

	return CleanText(doc.Text()), article.Image, nil
}

// extractSelectors is the second stage, used when readability comes back
// thin: walk known content containers on the raw document and take the
// first one with substance, else concatenate every paragraph.
func extractSelectors(htmlBody string, minLength int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	doc.Find("script, style, nav, header, footer, iframe, form, noscript").Remove()

	for _, selector := range contentSelectors {
		node := doc.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		if text := CleanText(node.Text()); len(text) >= minLength {
			return text, nil
		}
	}

	var sb strings.Builder
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	})
	return CleanText(sb.String()), nil
}
