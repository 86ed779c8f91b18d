// Package git looks up the state of the git repository a project lives in, so
// launched instances can be tagged with the commit they were started from.
package git

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// shortHashLen is the number of hash characters used in descriptions.
const shortHashLen = 7

// Info holds information about a git repository
type Info struct {
	// CommitHash is the current HEAD commit hash
	CommitHash string
	// Branch is the current branch name, empty on a detached HEAD
	Branch string
	// Tags lists the tags pointing to the current commit
	Tags []string
	// IsDirty indicates if the working tree has uncommitted changes
	IsDirty bool
}

// Lookup returns the state of the repository containing path, seeking
// upwards for the .git directory. A path outside any repository yields
// (nil, nil).
func Lookup(path string) (*Info, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open the Git repository that path %q belongs to: %w", path, err)
	}

	headRef, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// no commits yet
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD reference for repository %q: %w", path, err)
	}

	info := &Info{CommitHash: headRef.Hash().String()}
	if headRef.Name().IsBranch() {
		info.Branch = headRef.Name().Short()
	}

	tagRefs, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	err = tagRefs.ForEach(func(ref *plumbing.Reference) error {
		revHash, err := repo.ResolveRevision(plumbing.Revision(ref.Name()))
		if err != nil {
			return fmt.Errorf("failed to resolve tag %q: %w", ref.Name().Short(), err)
		}
		if *revHash == headRef.Hash() {
			info.Tags = append(info.Tags, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate over tags: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree for repository %q: %w", path, err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree status for repository %q: %w", path, err)
	}
	info.IsDirty = !status.IsClean()

	return info, nil
}

// ShortHash returns the abbreviated commit hash.
func (i *Info) ShortHash() string {
	if len(i.CommitHash) <= shortHashLen {
		return i.CommitHash
	}
	return i.CommitHash[:shortHashLen]
}

// Describe returns a one-word summary of the checkout: the first tag on HEAD
// or the short hash, suffixed with "-dirty" when there are local changes.
func (i *Info) Describe() string {
	desc := i.ShortHash()
	if len(i.Tags) > 0 {
		desc = i.Tags[0]
	}
	if i.IsDirty {
		desc += "-dirty"
	}
	return desc
}
