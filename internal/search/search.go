package search

// Result is a single search hit over saved content.
type Result struct {
	ID          string `json:"id"`
	SessionID   string `json:"sessionId"`
	ContentType string `json:"contentType"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	Version     int    `json:"version"`
}

// Query describes a search request. OwnerID scopes every query; saved
// content is only ever visible to its author.
type Query struct {
	Text              string
	OwnerID           string
	FilterContentType string // empty = all types
	Limit             int
	Offset            int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ContentDoc is the data we index for a saved content record.
type ContentDoc struct {
	ID          string `json:"id"`
	SessionID   string `json:"sessionId"`
	OwnerID     string `json:"ownerId"`
	ContentType string `json:"contentType"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Version     int    `json:"version"`
}
