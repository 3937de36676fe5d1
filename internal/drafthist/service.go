// Package drafthist keeps a git repository per authoring session. Every save
// commits the effective draft and outline, so the append-only saved list is
// backed by a real version history that can be walked and read back.
package drafthist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	draftFile   = "draft.md"
	outlineFile = "outline.json"
)

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}

type Version struct {
	Draft       string
	OutlineJSON string
	Commit      CommitInfo
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureSessionRepo initializes the session's repository if it does not
// exist. Idempotent.
func (s *Service) EnsureSessionRepo(sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(sessionID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}
	if _, err := git.PlainInit(path, false); err != nil {
		return fmt.Errorf("init repo: %w", err)
	}
	return nil
}

// CommitDraft writes the draft and outline to the session repo and commits
// them. The first commit also creates the main branch.
func (s *Service) CommitDraft(sessionID, draft, outlineJSON, author, message string) (CommitInfo, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(sessionID))
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	root := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(root, draftFile), []byte(draft), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write draft: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, outlineFile), append([]byte(outlineJSON), '\n'), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write outline: %w", err)
	}
	if _, err := worktree.Add(draftFile); err != nil {
		return CommitInfo{}, fmt.Errorf("git add draft: %w", err)
	}
	if _, err := worktree.Add(outlineFile); err != nil {
		return CommitInfo{}, fmt.Errorf("git add outline: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@studio.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit draft: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// GetVersion reads the draft and outline as they were at the given commit.
func (s *Service) GetVersion(sessionID, hash string) (Version, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(sessionID))
	if err != nil {
		return Version{}, fmt.Errorf("open repo: %w", err)
	}
	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return Version{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return Version{}, fmt.Errorf("read commit %s: %w", hash, err)
	}

	draft, err := readFileFromCommit(commitObj, draftFile)
	if err != nil {
		return Version{}, err
	}
	outline, err := readFileFromCommit(commitObj, outlineFile)
	if err != nil {
		return Version{}, err
	}
	return Version{Draft: draft, OutlineJSON: outline, Commit: toCommitInfo(commitObj)}, nil
}

// History walks the session's commits newest first, up to limit (0 for all).
func (s *Service) History(sessionID string, limit int) ([]CommitInfo, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(sessionID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) repoPath(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID)
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[sessionID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[sessionID] = lock
	return lock
}

func readFileFromCommit(commitObj *object.Commit, name string) (string, error) {
	file, err := commitObj.File(name)
	if errors.Is(err, object.ErrFileNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s from commit: %w", name, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return contents, nil
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	chars := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			chars = append(chars, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			chars = append(chars, '.')
		}
	}
	if len(chars) == 0 {
		return "author"
	}
	return string(chars)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
