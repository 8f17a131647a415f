package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const longParagraph = "The city council approved the new transit plan after months of public hearings and revisions, committing funds for additional bus lines, protected cycling lanes and a feasibility study for a light rail corridor connecting the northern districts to the waterfront."

func articlePage() string {
	return `<!DOCTYPE html><html><head><title>Transit plan approved</title></head><body>
<nav>Home | Politics | Sports</nav>
<article>
<h1>Transit plan approved</h1>
<p>` + longParagraph + `</p>
<p>` + longParagraph + `</p>
<p>` + longParagraph + `</p>
</article>
<script>trackPageview();</script>
<footer>All rights reserved</footer>
</body></html>`
}

func TestExtractReadability(t *testing.T) {
	text, _, err := extractReadability(articlePage(), "https://example.com/news/transit-plan")

	require.NoError(t, err)
	assert.Contains(t, text, "transit plan after months of public hearings")
	assert.NotContains(t, text, "trackPageview")
}

func TestExtractSelectors_ArticleContainer(t *testing.T) {
	text, err := extractSelectors(articlePage(), 250)

	require.NoError(t, err)
	assert.Contains(t, text, "light rail corridor")
	assert.NotContains(t, text, "trackPageview")
	assert.NotContains(t, text, "Home | Politics")
}

func TestExtractSelectors_ParagraphFallback(t *testing.T) {
	page := `<html><body><div>
<p>` + longParagraph + `</p>
<p>` + longParagraph + `</p>
</div></body></html>`

	text, err := extractSelectors(page, 10*len(longParagraph))

	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(text, "city council approved"))
}

func TestExtractSelectors_EmptyDocument(t *testing.T) {
	text, err := extractSelectors("<html><body></body></html>", 250)

	require.NoError(t, err)
	assert.Empty(t, text)
}
