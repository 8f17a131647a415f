package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://x.com/a?ref=1", "x.com/a"},
		{"https://www.x.com/a/", "x.com/a"},
		{"HTTPS://WWW.Example.COM/News/123#comments", "example.com/news/123"},
		{"example.com/path/", "example.com/path"},
		{"https://x.com", "x.com"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, CanonicalURL(tt.in), "input %q", tt.in)
	}
}

func TestURLsEqual_CanonicalForms(t *testing.T) {
	require.True(t, URLsEqual("http://x.com/a?ref=1", "https://www.x.com/a/"))
	require.True(t, URLsEqual("https://m.example.com/news/123", "https://example.com/news/123"))
	require.False(t, URLsEqual("https://x.com/a", "https://x.com/b"))
	require.False(t, URLsEqual("", "https://x.com/a"))

	// bare domains must not match via empty paths
	require.False(t, URLsEqual("https://a.com", "https://b.com"))
}

func TestTitleSimilarity(t *testing.T) {
	require.Equal(t, 100, TitleSimilarity("Dollar hits record high", "  dollar   HITS record high "))
	require.GreaterOrEqual(t, TitleSimilarity("Merkez Bankası faiz kararını açıkladı", "Merkez Bankası faiz kararını açıkladı!"), 85)
	require.Less(t, TitleSimilarity("Economy shrinks in Q3", "Midfielder signs for Galatasaray"), 50)
	require.Equal(t, 0, TitleSimilarity("", "anything"))
}

func rec(title, url string, published time.Time) domain.Record {
	return domain.Record{Title: title, URL: url, PublishedAt: published, SourceName: "GNews"}
}

func TestDedupe_TitleMatch(t *testing.T) {
	now := time.Now()
	unique, dropped := Dedupe([]domain.Record{
		rec("Galatasaray wins the derby against rivals", "https://a.com/1", now),
		rec("Galatasaray wins the derby against rivals!", "https://b.com/2", now.Add(-10*time.Hour)),
	})
	require.Len(t, unique, 1)
	require.Equal(t, 1, dropped)
	require.Equal(t, "https://a.com/1", unique[0].URL)
}

func TestDedupe_URLMatch(t *testing.T) {
	now := time.Now()
	unique, dropped := Dedupe([]domain.Record{
		rec("Completely different headline about markets", "http://x.com/a?utm=rss", now),
		rec("Unrelated sports headline entirely", "https://www.x.com/a/", now.Add(-48*time.Hour)),
	})
	require.Len(t, unique, 1)
	require.Equal(t, 1, dropped)
}

func TestDedupe_TimeProximityWithRelaxedTitle(t *testing.T) {
	now := time.Now()
	// pure-suffix variant: 13 extra chars over 62 -> 79% similar
	a := "Istanbul mayor announces new metro line extension"
	b := "Istanbul mayor announces new metro line extension this weekend"

	sim := TitleSimilarity(a, b)
	require.Less(t, sim, TitleThreshold)
	require.GreaterOrEqual(t, sim, RelaxedTitleThreshold)

	// close in time -> duplicate
	unique, _ := Dedupe([]domain.Record{
		rec(a, "https://a.com/1", now),
		rec(b, "https://b.com/2", now.Add(10*time.Minute)),
	})
	require.Len(t, unique, 1)

	// far apart in time -> both kept
	unique, _ = Dedupe([]domain.Record{
		rec(a, "https://a.com/1", now),
		rec(b, "https://b.com/2", now.Add(3*time.Hour)),
	})
	require.Len(t, unique, 2)
}

func TestDedupe_KeepsDistinctRecords(t *testing.T) {
	now := time.Now()
	unique, dropped := Dedupe([]domain.Record{
		rec("Central bank raises interest rates", "https://a.com/econ/1", now),
		rec("New stadium opens in Istanbul", "https://b.com/sport/2", now),
		rec("Tech giant releases a new handset", "https://c.com/tech/3", now),
	})
	require.Len(t, unique, 3)
	require.Zero(t, dropped)
}

func TestFilterAgainstExisting(t *testing.T) {
	now := time.Now()
	existing := []domain.Article{
		{Title: "Parliament passes the new budget bill", URL: "https://news.com/budget"},
	}

	kept, dropped := FilterAgainstExisting([]domain.Record{
		rec("Parliament passes the new budget bill", "https://other.com/x", now),
		rec("A fresh story nobody saved yet", "https://other.com/y", now),
		rec("Totally different title", "http://www.news.com/budget/", now),
	}, existing)

	require.Len(t, kept, 1)
	require.Equal(t, 2, dropped)
	require.Equal(t, "https://other.com/y", kept[0].URL)
}
