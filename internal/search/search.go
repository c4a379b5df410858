package search

import (
	"strings"

	"resumebuilder/api/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// Query describes a search request. Only resumes Identity owns or
// collaborates on are searched.
type Query struct {
	Text     string
	Identity string
	Limit    int
	Offset   int
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

// ResumeRecord is the data we index for a resume.
type ResumeRecord struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Owner         string   `json:"owner"`
	Collaborators []string `json:"collaborators"`
	Template      string   `json:"selectedTemplate"`
}

// RecordFromResume builds the index record for a stored resume.
func RecordFromResume(r store.Resume) ResumeRecord {
	return ResumeRecord{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Owner:         r.Owner,
		Collaborators: r.Grant().Collaborators,
		Template:      r.SelectedTemplate,
	}
}

func resultType(owner, identity string) string {
	if strings.EqualFold(owner, identity) {
		return "owned"
	}
	return "shared"
}
