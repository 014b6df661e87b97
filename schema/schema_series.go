package schema

// Series is what the viewer plots for one repository: three aligned per-day series.
// With a label selected, Issues and PRs count only items carrying that label.
type Series struct {
	Repo     RepoID   `json:"repo"`
	Label    string   `json:"label,omitempty"`    // Effective label, empty when none is selected
	Fallback bool     `json:"fallback,omitempty"` // Requested label was unknown and got dropped
	Days     []string `json:"days"`
	Issues   []int    `json:"issues"`
	PRs      []int    `json:"prs"`
	Total    []int    `json:"total"`
}

// Len returns the number of days in the series.
func (s Series) Len() int {
	return len(s.Days)
}
