package portfolio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/go-github/v74/github"
)

const defaultVercelAPI = "https://api.vercel.com"

// Hosting creates the remote repository and the static site project that
// serves it. Vercel has no Go client, so its calls go through do.
type Hosting struct {
	client      *http.Client
	github      *github.Client
	vercelAPI   string
	githubUser  string
	githubToken string
	vercelToken string
}

func NewHosting(githubUser, githubToken, vercelToken string) *Hosting {
	client := &http.Client{Timeout: 30 * time.Second}
	return &Hosting{
		client:      client,
		github:      github.NewClient(client).WithAuthToken(githubToken),
		vercelAPI:   defaultVercelAPI,
		githubUser:  githubUser,
		githubToken: githubToken,
		vercelToken: vercelToken,
	}
}

func (h *Hosting) Configured() bool {
	return h.githubUser != "" && h.githubToken != "" && h.vercelToken != ""
}

func (h *Hosting) RemoteFor(repoName string) Remote {
	return Remote{
		URL:      fmt.Sprintf("https://github.com/%s/%s.git", h.githubUser, repoName),
		Username: h.githubUser,
		Token:    h.githubToken,
	}
}

// CreateRepository creates a private repository for the authenticated user
// and returns its numeric id.
func (h *Hosting) CreateRepository(ctx context.Context, name string) (int64, error) {
	repo, _, err := h.github.Repositories.Create(ctx, "", &github.Repository{
		Name:    github.Ptr(name),
		Private: github.Ptr(true),
	})
	if err != nil {
		return 0, fmt.Errorf("create github repo %s: %w", name, err)
	}
	return repo.GetID(), nil
}

func (h *Hosting) CreateProject(ctx context.Context, name string) error {
	err := h.do(ctx, h.vercelAPI+"/v9/projects", "Bearer "+h.vercelToken, map[string]any{
		"name": name,
		"gitRepository": map[string]string{
			"type": "github",
			"repo": h.githubUser + "/" + name,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("create vercel project %s: %w", name, err)
	}
	return nil
}

func (h *Hosting) Deploy(ctx context.Context, name string, repoID int64) error {
	err := h.do(ctx, h.vercelAPI+"/v13/deployments", "Bearer "+h.vercelToken, map[string]any{
		"name": name,
		"gitSource": map[string]any{
			"type":   "github",
			"ref":    mainBranch,
			"repoId": repoID,
		},
		"projectSettings": map[string]any{"framework": nil},
		"target":          "production",
	}, nil)
	if err != nil {
		return fmt.Errorf("trigger vercel deployment %s: %w", name, err)
	}
	return nil
}

// SiteURL is the production address of a project.
func SiteURL(repoName string) string {
	return "https://" + repoName + ".vercel.app"
}

type apiError struct {
	Message string `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (h *Hosting) do(ctx context.Context, url, authorization string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", authorization)

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var apiErr apiError
	_ = json.Unmarshal(raw, &apiErr)
	if resp.StatusCode >= 300 || (apiErr.Error != nil && apiErr.Error.Message != "") {
		message := apiErr.Message
		if apiErr.Error != nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, message)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
