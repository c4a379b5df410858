// Package portfolio publishes a resume as a static portfolio site: the
// resume data is committed to a git repository that a static host deploys.
package portfolio

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"resumebuilder/api/internal/store"
)

var (
	ErrMissingData   = errors.New("resumeData is required")
	ErrNotConfigured = errors.New("portfolio hosting is not configured")
)

type Publisher interface {
	Publish(name string, data json.RawMessage, author, message string, remote Remote) (Commit, error)
}

type Host interface {
	Configured() bool
	RemoteFor(repoName string) Remote
	CreateRepository(ctx context.Context, name string) (int64, error)
	CreateProject(ctx context.Context, name string) error
	Deploy(ctx context.Context, name string, repoID int64) error
}

type DeploymentStore interface {
	SetDeployment(ctx context.Context, resumeID string, deployment store.Deployment) error
}

type Notifier interface {
	IsConfigured() bool
	SendPortfolioDeployedEmail(to, userName, siteURL string) error
}

type Result struct {
	Message string `json:"message"`
	URL     string `json:"url"`
	Created bool   `json:"-"`
}

type Service struct {
	repos    Publisher
	host     Host
	store    DeploymentStore
	notifier Notifier
	now      func() time.Time
	random   io.Reader
}

func NewService(repos Publisher, host Host, deployments DeploymentStore, notifier Notifier) *Service {
	return &Service{
		repos:    repos,
		host:     host,
		store:    deployments,
		notifier: notifier,
		now:      time.Now,
		random:   rand.Reader,
	}
}

// Deploy publishes data for resume. The first deployment creates the
// repository and hosting project; later ones push to the stored repository.
func (s *Service) Deploy(ctx context.Context, resume store.Resume, owner store.User, data json.RawMessage) (Result, error) {
	if len(data) == 0 || string(data) == "null" {
		return Result{}, ErrMissingData
	}
	if s.host == nil || !s.host.Configured() {
		return Result{}, ErrNotConfigured
	}

	if resume.Deployment != nil && resume.Deployment.GitHubRepo != "" {
		name := resume.Deployment.GitHubRepo
		if _, err := s.repos.Publish(name, data, owner.Email, "feat: Update portfolio data", s.host.RemoteFor(name)); err != nil {
			return Result{}, err
		}
		url := resume.Deployment.VercelURL
		if url == "" {
			url = SiteURL(name)
		}
		return Result{Message: "Update pushed to GitHub. Vercel deployment triggered.", URL: url}, nil
	}

	name, err := RepoName(resume.ID, s.now(), s.random)
	if err != nil {
		return Result{}, err
	}
	repoID, err := s.host.CreateRepository(ctx, name)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.repos.Publish(name, data, owner.Email, "feat: Add portfolio data", s.host.RemoteFor(name)); err != nil {
		return Result{}, err
	}
	if err := s.host.CreateProject(ctx, name); err != nil {
		return Result{}, err
	}
	if err := s.host.Deploy(ctx, name, repoID); err != nil {
		return Result{}, err
	}

	deployment := store.Deployment{GitHubRepo: name, VercelURL: SiteURL(name)}
	if err := s.store.SetDeployment(ctx, resume.ID, deployment); err != nil {
		return Result{}, fmt.Errorf("save deployment: %w", err)
	}
	if s.notifier != nil && s.notifier.IsConfigured() {
		if err := s.notifier.SendPortfolioDeployedEmail(owner.Email, owner.Name, deployment.VercelURL); err != nil {
			log.Printf("portfolio: notify %s: %v", owner.Email, err)
		}
	}
	return Result{
		Message: "New portfolio created and deployed successfully!",
		URL:     deployment.VercelURL,
		Created: true,
	}, nil
}

// RepoName builds a short unique repository name:
// portfolio-<12 hex of sha256(id)>-<last 7 base36 chars of the ms clock>-<3 hex>.
func RepoName(resumeID string, now time.Time, random io.Reader) (string, error) {
	sum := sha256.Sum256([]byte(resumeID))
	stamp := strconv.FormatInt(now.UnixMilli(), 36)
	if len(stamp) > 7 {
		stamp = stamp[len(stamp)-7:]
	}
	var salt [2]byte
	if _, err := io.ReadFull(random, salt[:]); err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}
	return fmt.Sprintf("portfolio-%s-%s-%s", hex.EncodeToString(sum[:])[:12], stamp, hex.EncodeToString(salt[:])[:3]), nil
}
