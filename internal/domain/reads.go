package domain

// ReadCount is the number of recorded reads of one article.
type ReadCount struct {
	URL   string `json:"url"`
	Count int64  `json:"count"`
}
