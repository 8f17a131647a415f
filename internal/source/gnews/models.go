package gnews

// apiResponse is the GNews /top-headlines payload.
type apiResponse struct {
	TotalArticles int       `json:"totalArticles"`
	Articles      []article `json:"articles"`
}

type article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	Image       string    `json:"image"`
	PublishedAt string    `json:"publishedAt"`
	Source      apiSource `json:"source"`
}

type apiSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
