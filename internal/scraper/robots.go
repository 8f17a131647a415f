package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsCache fetches and caches robots.txt groups per host. A host
// whose robots.txt cannot be fetched or parsed is treated as allowing
// everything; only an explicit disallow blocks a scrape.
type robotsCache struct {
	mu        sync.Mutex
	client    *http.Client
	userAgent string
	groups    map[string]*robotstxt.Group
}

func newRobotsCache(client *http.Client, userAgent string) *robotsCache {
	return &robotsCache{
		client:    client,
		userAgent: userAgent,
		groups:    make(map[string]*robotstxt.Group),
	}
}

func (c *robotsCache) allowed(ctx context.Context, pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return false
	}

	group := c.group(ctx, u.Scheme, u.Host)
	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

func (c *robotsCache) group(ctx context.Context, scheme, host string) *robotstxt.Group {
	c.mu.Lock()
	if group, ok := c.groups[host]; ok {
		c.mu.Unlock()
		return group
	}
	c.mu.Unlock()

	group := c.fetch(ctx, scheme, host)

	c.mu.Lock()
	c.groups[host] = group
	c.mu.Unlock()
	return group
}

func (c *robotsCache) fetch(ctx context.Context, scheme, host string) *robotstxt.Group {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data.FindGroup(c.userAgent)
}
