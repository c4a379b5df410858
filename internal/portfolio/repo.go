package portfolio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// DataFile is the file the static site template reads the resume from.
const DataFile = "resume.json"

const mainBranch = "main"

type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Remote describes where a site repository is pushed. An empty URL keeps
// the repository local.
type Remote struct {
	URL      string
	Username string
	Token    string
}

// Repos keeps one git working copy per published site under baseDir.
type Repos struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewRepos(baseDir string) *Repos {
	return &Repos{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Publish writes data to the site's data file, commits it on main and
// pushes to remote when one is configured.
func (r *Repos) Publish(name string, data json.RawMessage, author, message string, remote Remote) (Commit, error) {
	lock := r.repoLock(name)
	lock.Lock()
	defer lock.Unlock()

	repo, err := r.openOrInit(name)
	if err != nil {
		return Commit{}, err
	}
	hash, err := writeAndCommit(repo, data, author, message)
	if err != nil {
		return Commit{}, err
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}

	if remote.URL != "" {
		if err := push(repo, remote); err != nil {
			return Commit{}, err
		}
	}
	return toCommit(commitObj), nil
}

// Data returns the data file as of the latest commit on main.
func (r *Repos) Data(name string) (json.RawMessage, error) {
	lock := r.repoLock(name)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(r.repoPath(name))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", mainBranch, err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	file, err := commitObj.File(DataFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", DataFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", DataFile, err)
	}
	defer reader.Close()
	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", DataFile, err)
	}
	return payload, nil
}

func (r *Repos) History(name string, limit int) ([]Commit, error) {
	lock := r.repoLock(name)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(r.repoPath(name))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", mainBranch, err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(c *object.Commit) error {
		items = append(items, toCommit(c))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (r *Repos) openOrInit(name string) (*git.Repository, error) {
	path := r.repoPath(name)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(mainBranch))); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", mainBranch, err)
	}
	return repo, nil
}

func writeAndCommit(repo *git.Repository, data json.RawMessage, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("decode site data: %w", err)
	}
	payload, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal site data: %w", err)
	}

	root := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(root, DataFile), append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write %s: %w", DataFile, err)
	}
	if _, err := worktree.Add(DataFile); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add %s: %w", DataFile, err)
	}

	// Republishing unchanged data still needs a commit to trigger a deploy.
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: author,
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit %s: %w", DataFile, err)
	}
	return hash, nil
}

func push(repo *git.Repository, remote Remote) error {
	origin, err := repo.Remote("origin")
	switch {
	case errors.Is(err, git.ErrRemoteNotFound):
		if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{remote.URL}}); err != nil {
			return fmt.Errorf("add remote: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read remote: %w", err)
	case origin.Config().URLs[0] != remote.URL:
		if err := repo.DeleteRemote("origin"); err != nil {
			return fmt.Errorf("replace remote: %w", err)
		}
		if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{remote.URL}}); err != nil {
			return fmt.Errorf("add remote: %w", err)
		}
	}

	options := &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec("refs/heads/" + mainBranch + ":refs/heads/" + mainBranch)},
		Force:      true,
	}
	if remote.Token != "" {
		options.Auth = &githttp.BasicAuth{Username: remote.Username, Password: remote.Token}
	}
	if err := repo.Push(options); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push to %s: %w", remote.URL, err)
	}
	return nil
}

func (r *Repos) repoPath(name string) string {
	return filepath.Join(r.baseDir, name)
}

func (r *Repos) repoLock(name string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	lock, ok := r.locks[name]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	r.locks[name] = lock
	return lock
}

func toCommit(c *object.Commit) Commit {
	return Commit{
		Hash:      c.Hash.String()[:7],
		Message:   c.Message,
		Author:    c.Author.Name,
		CreatedAt: c.Author.When,
	}
}
