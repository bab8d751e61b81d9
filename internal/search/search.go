package search

// Result is a single task hit returned to the caller.
type Result struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
}

// Query describes a search request. OwnerID scopes results to one owner's
// subtree; AllOwners lifts the scope for privileged principals.
type Query struct {
	Text      string
	OwnerID   int64
	AllOwners bool
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over tasks.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// TaskRecord is the data we index per task. OwnerID is the resolved
// root-project owner so the index can be filtered per principal.
type TaskRecord struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ProjectID   int64  `json:"project_id"`
	OwnerID     int64  `json:"owner_id"`
}
