package runstore

import (
	git "github.com/go-git/go-git/v5"
)

// WorktreeState summarizes the git repository surrounding the run store,
// shown by --list-actions so users know whether run artifacts sit inside a
// dirty working tree.
type WorktreeState struct {
	InRepository bool
	Dirty        bool
	Branch       string
}

// InspectWorktree opens the repository containing projectDir read-only.
// Projects outside any repository report InRepository=false; inspection
// failures degrade to the same rather than failing the command.
func InspectWorktree(projectDir string) WorktreeState {
	repo, err := git.PlainOpenWithOptions(projectDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return WorktreeState{}
	}

	state := WorktreeState{InRepository: true}

	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		state.Branch = head.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return state
	}
	status, err := wt.Status()
	if err != nil {
		return state
	}
	state.Dirty = !status.IsClean()
	return state
}
