package history

import (
	"context"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/teranos/OPTIX/auth"
	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/repocache"
)

// Blamer attributes file lines to commits at the cached head revision.
// It never clones: a repository nobody has mined or built yet is
// reported as not cached.
type Blamer struct {
	cache  *repocache.Cache
	tokens auth.TokenSource
	logger *zap.SugaredLogger
}

// NewBlamer creates a blame provider over the repository cache
func NewBlamer(cache *repocache.Cache, tokens auth.TokenSource, logger *zap.SugaredLogger) *Blamer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Blamer{cache: cache, tokens: tokens, logger: logger}
}

// Blame returns per-line attribution for filePath at head, 1-based.
// A file absent from head yields an empty slice.
func (b *Blamer) Blame(ctx context.Context, userID int64, repoURL, filePath string) ([]BlameLine, error) {
	if !b.cache.Exists(repoURL) {
		return nil, errors.Wrapf(errors.ErrRepoNotCached, "repository %s", repoURL)
	}

	var cred *repocache.Credential
	if b.tokens != nil {
		if token := b.tokens.GitToken(userID); token != "" {
			cred = &repocache.Credential{Token: token}
		}
	}

	handle, err := b.cache.Open(ctx, repoURL, cred, repocache.DepthFull)
	if err != nil {
		return nil, err
	}
	head, err := handle.Head()
	if err != nil {
		return nil, err
	}

	tree, err := head.Tree()
	if err != nil {
		return nil, errors.Wrap(err, "reading head tree")
	}
	if _, err := tree.File(filePath); err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return []BlameLine{}, nil
		}
		return nil, errors.Wrapf(err, "looking up %s", filePath)
	}

	result, err := git.Blame(head, filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "blaming %s", filePath)
	}

	lines := make([]BlameLine, 0, len(result.Lines))
	for i, line := range result.Lines {
		lines = append(lines, BlameLine{
			LineNo:      i + 1,
			CommitHash:  line.Hash.String(),
			AuthorEmail: line.Author,
			CommittedAt: line.Date.UTC(),
			Content:     line.Text,
		})
	}
	return lines, nil
}
