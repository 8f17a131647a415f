package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
)

func TestScore(t *testing.T) {
	full := domain.Record{
		Title:       "A headline longer than ten characters",
		Description: "A description comfortably over twenty characters.",
		URL:         "https://example.com/a",
		Image:       "https://example.com/a.jpg",
		PublishedAt: time.Now(),
	}
	require.Equal(t, 100, Score(full))

	require.Equal(t, 0, Score(domain.Record{Title: "short"}))

	noImageNoDate := domain.Record{
		Title:       "A headline longer than ten characters",
		Description: "A description comfortably over twenty characters.",
		URL:         "https://example.com/a",
	}
	require.Equal(t, 60, Score(noImageNoDate))
}

func TestFilter(t *testing.T) {
	good := domain.Record{
		Title:       "A headline longer than ten characters",
		Description: "A description comfortably over twenty characters.",
		URL:         "https://example.com/a",
		PublishedAt: time.Now(),
	}
	bad := domain.Record{Title: "meh", URL: "https://example.com/b"}

	kept, dropped := Filter([]domain.Record{good, bad}, DefaultMinScore)
	require.Len(t, kept, 1)
	require.Equal(t, 1, dropped)
	require.Equal(t, good.URL, kept[0].URL)
}
