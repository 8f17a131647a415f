package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/feeds"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
)

const rssItemLimit = 50

func (s *Server) handleRSS(w http.ResponseWriter, r *http.Request) {
	articles, err := s.ingest.Latest(r.Context(), rssItemLimit)
	if err != nil {
		s.logger.Error("failed to build rss feed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	rss, err := generateFeed(articles, s.config.FeedTitle, s.config.FeedLink)
	if err != nil {
		s.logger.Error("failed to render rss feed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(rss))
}

func generateFeed(articles []domain.Article, title, link string) (string, error) {
	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: "Latest headlines aggregated across sources",
		Created:     time.Now(),
	}

	feed.Items = make([]*feeds.Item, 0, len(articles))
	for _, article := range articles {
		item := &feeds.Item{
			Title:   article.Title,
			Link:    &feeds.Link{Href: article.URL},
			Id:      fmt.Sprintf("%s/api/news/%d", link, article.ID),
			Created: article.SavedAt,
		}
		if article.Description != nil {
			item.Description = *article.Description
		}
		if article.PublishedAt != nil {
			item.Created = *article.PublishedAt
		}
		item.Author = &feeds.Author{Name: article.SourceName}

		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("render rss: %w", err)
	}
	return rss, nil
}
