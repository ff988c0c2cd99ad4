package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultSermon  ResultType = "sermon"
	ResultPost    ResultType = "post"
	ResultInsight ResultType = "insight"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type        ResultType `json:"type"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	CommunityID string     `json:"communityId,omitempty"`
}

// Query describes a search request. UserID scopes sermons and insights to
// their owner; CommunityIDs scopes posts to the communities the caller
// belongs to.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	UserID       string
	CommunityIDs []string
	Limit        int
	Offset       int
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

// SermonRecord is the data we index for a sermon.
type SermonRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Status   string `json:"status"`
	OwnerID  string `json:"ownerId"`
}

// PostRecord is the data we index for a community post.
type PostRecord struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	AuthorName  string `json:"authorName"`
	CommunityID string `json:"communityId"`
}

// InsightRecord is the data we index for a global insight.
type InsightRecord struct {
	ID         string `json:"id"`
	Reference  string `json:"reference"`
	Revelation string `json:"revelation"`
	Status     string `json:"status"`
	UserID     string `json:"userId"`
}
