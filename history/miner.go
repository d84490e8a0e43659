// Package history mines commit history from cached repositories into
// commit summaries and weekly per-file churn, and serves blame,
// hotspot, and trend queries over what was mined.
package history

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"go.uber.org/zap"

	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/repocache"
	"github.com/teranos/OPTIX/sym"
)

// Miner walks commit history and produces summaries plus per-file line
// deltas. Diffs are taken against the first parent with rename
// detection on; changes that only move whitespace are not counted.
type Miner struct {
	logger *zap.SugaredLogger
}

// NewMiner creates a miner
func NewMiner(logger *zap.SugaredLogger) *Miner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Miner{logger: logger}
}

// Mine walks from HEAD and keeps commits whose author timestamp falls
// inside [since, until]. Commit order is not strictly chronological, so
// out-of-window commits are skipped rather than ending the walk.
func (m *Miner) Mine(ctx context.Context, handle *repocache.Handle, since, until time.Time) (*MineResult, error) {
	head, err := handle.Head()
	if err != nil {
		return nil, errors.Wrapf(err, "resolving HEAD of %s", handle.URL)
	}

	iter, err := handle.Repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return nil, errors.Wrap(err, "starting commit walk")
	}
	defer iter.Close()

	result := &MineResult{}
	err = iter.ForEach(func(commit *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		authored := commit.Author.When.UTC()
		if authored.Before(since) || authored.After(until) {
			return nil
		}

		deltas, err := m.commitDeltas(ctx, commit)
		if err != nil {
			m.logger.Warnw(sym.Hist+" Skipping undiffable commit",
				"hash", commit.Hash.String(), "error", err)
			return nil
		}

		subject, _, _ := strings.Cut(strings.TrimSpace(commit.Message), "\n")
		summary := CommitSummary{
			CommitHash:   commit.Hash.String(),
			AuthorEmail:  commit.Author.Email,
			Message:      subject,
			CommittedAt:  authored,
			FilesChanged: len(deltas),
		}
		for _, d := range deltas {
			summary.Insertions += d.Added
			summary.Deletions += d.Deleted
		}

		result.Summaries = append(result.Summaries, summary)
		result.Deltas = append(result.Deltas, deltas...)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walking commits")
	}

	m.logger.Infow(sym.Hist+" History mined",
		"repo", handle.URL,
		"commits", len(result.Summaries),
		"deltas", len(result.Deltas),
	)
	return result, nil
}

// commitDeltas diffs one commit against its first parent. Root commits
// diff against the empty tree. Deletions keep the pre-image path,
// renames the post-image path.
func (m *Miner) commitDeltas(ctx context.Context, commit *object.Commit) ([]FileDelta, error) {
	commitTree, err := commit.Tree()
	if err != nil {
		return nil, errors.Wrap(err, "reading commit tree")
	}

	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, errors.Wrap(err, "loading first parent")
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, errors.Wrap(err, "reading parent tree")
		}
	}

	changes, err := object.DiffTreeWithOptions(ctx, parentTree, commitTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, errors.Wrap(err, "diffing against first parent")
	}

	var deltas []FileDelta
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			continue
		}
		filePath := change.To.Name
		if action == merkletrie.Delete {
			filePath = change.From.Name
		}

		patch, err := change.PatchContext(ctx)
		if err != nil {
			m.logger.Debugw(sym.Hist+" Skipping unpatchable change", "path", filePath, "error", err)
			continue
		}

		added, deleted := 0, 0
		for _, fp := range patch.FilePatches() {
			a, d := countLines(fp)
			added += a
			deleted += d
		}
		if added+deleted == 0 {
			continue
		}

		deltas = append(deltas, FileDelta{
			CommitHash:  commit.Hash.String(),
			FilePath:    filePath,
			Added:       added,
			Deleted:     deleted,
			AuthoredAt:  commit.Author.When.UTC(),
			AuthorEmail: commit.Author.Email,
		})
	}
	return deltas, nil
}

// countLines tallies added and deleted lines for one file patch. A
// Delete chunk directly followed by an Add chunk is a modification;
// its lines are paired up and pairs equal after stripping whitespace
// count on neither side.
func countLines(fp diff.FilePatch) (added, deleted int) {
	chunks := fp.Chunks()
	for i := 0; i < len(chunks); i++ {
		c := chunks[i]
		switch c.Type() {
		case diff.Delete:
			del := chunkLines(c.Content())
			if i+1 < len(chunks) && chunks[i+1].Type() == diff.Add {
				add := chunkLines(chunks[i+1].Content())
				d, a := discountWhitespacePairs(del, add)
				deleted += d
				added += a
				i++
				continue
			}
			deleted += len(del)
		case diff.Add:
			added += len(chunkLines(c.Content()))
		}
	}
	return added, deleted
}

func discountWhitespacePairs(del, add []string) (deleted, added int) {
	n := min(len(del), len(add))
	same := 0
	for i := 0; i < n; i++ {
		if stripWhitespace(del[i]) == stripWhitespace(add[i]) {
			same++
		}
	}
	return len(del) - same, len(add) - same
}

func chunkLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
