package store

import (
	"encoding/json"
	"errors"
	"time"

	"resumebuilder/api/internal/access"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidPatch = errors.New("invalid patch")
	ErrDuplicate    = errors.New("already exists")
)

type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	GoogleID       string
	ProfilePicture string
	Role           string
	AuthProvider   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Collaborator is an identity a resume has been shared with. Name and
// picture are display metadata only.
type Collaborator struct {
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	ProfilePicture *string `json:"profilePicture"`
}

type Deployment struct {
	GitHubRepo string `json:"githubRepo,omitempty"`
	VercelURL  string `json:"vercelUrl,omitempty"`
}

type Resume struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Owner            string          `json:"owner"`
	Shared           []Collaborator  `json:"shared"`
	SelectedTemplate string          `json:"selectedTemplate"`
	GlobalStyles     json.RawMessage `json:"globalStyles"`
	ResumeData       json.RawMessage `json:"resumeData"`
	Deployment       *Deployment     `json:"deployment,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (r Resume) Grant() access.Grant {
	collaborators := make([]string, 0, len(r.Shared))
	for _, c := range r.Shared {
		collaborators = append(collaborators, c.Email)
	}
	return access.Grant{Owner: r.Owner, Collaborators: collaborators}
}

// ResumeSummary is the list view of a resume.
type ResumeSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
}
