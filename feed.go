package wall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrTimeout = errors.New("feed composition timed out")

const (
	DefaultFeedLimit      = 50
	DefaultTrendingLimit  = 3
	DefaultTrendingWindow = 500
)

type LabeledPosts struct {
	Label string  `json:"label"`
	Posts []*Post `json:"posts"`
}

type ComposerConfig struct {
	FeedLimit      int
	TrendingLimit  int
	TrendingWindow int
}

// Composer turns a sort directive into an ordered, bounded list of posts.
// The repository filters and pre-sorts; the composer owns the final order.
type Composer struct {
	posts  PostRepository
	keys   *SortKeys
	scorer Scorer
	cfg    ComposerConfig
	now    func() time.Time
}

func NewComposer(posts PostRepository, keys *SortKeys, scorer Scorer, cfg ComposerConfig) *Composer {
	if cfg.FeedLimit <= 0 {
		cfg.FeedLimit = DefaultFeedLimit
	}
	if cfg.TrendingLimit <= 0 {
		cfg.TrendingLimit = DefaultTrendingLimit
	}
	if cfg.TrendingWindow <= 0 {
		cfg.TrendingWindow = DefaultTrendingWindow
	}
	if scorer == nil {
		scorer = NewGravityScorer()
	}
	return &Composer{posts: posts, keys: keys, scorer: scorer, cfg: cfg, now: time.Now}
}

// Compose returns at most limit posts ordered by d. A non-nil wall restricts the
// result to posts on that wall.
func (c *Composer) Compose(ctx context.Context, d SortDirective, wall *ID, limit int) ([]*Post, error) {
	if limit <= 0 {
		return []*Post{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}

	q := PostQuery{Sort: d, Wall: wall, Limit: limit}
	if d == ByTrending && c.cfg.TrendingWindow > limit {
		q.Limit = c.cfg.TrendingWindow
	}

	posts, err := c.posts.Query(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return nil, contextError(ctx.Err())
		}
		return nil, fmt.Errorf("querying posts by %s: %w", d, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}

	sortPosts(posts, d, c.scorer, c.now())
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// ComposeFeed builds the lists for sortKey across all walls. It returns the applied
// sort key, or "" when the fallback blend was used.
func (c *Composer) ComposeFeed(ctx context.Context, sortKey string) (string, []LabeledPosts, error) {
	return c.composeFeed(ctx, sortKey, nil)
}

// ComposeWall is ComposeFeed restricted to a single wall.
func (c *Composer) ComposeWall(ctx context.Context, wall ID, sortKey string) (string, []LabeledPosts, error) {
	return c.composeFeed(ctx, sortKey, &wall)
}

func (c *Composer) composeFeed(ctx context.Context, sortKey string, wall *ID) (string, []LabeledPosts, error) {
	if o, ok := c.keys.Lookup(sortKey); ok {
		posts, err := c.Compose(ctx, o.Directive, wall, c.cfg.FeedLimit)
		if err != nil {
			return "", nil, err
		}
		return sortKey, []LabeledPosts{{Label: o.Label, Posts: posts}}, nil
	}

	// trending and recent are independent lists; a post may appear in both.
	var trending, recent []*Post
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		trending, err = c.Compose(gctx, ByTrending, wall, c.cfg.TrendingLimit)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = c.Compose(gctx, ByRecency, wall, c.cfg.FeedLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	return "", []LabeledPosts{
		{Label: LabelTrending, Posts: trending},
		{Label: LabelRecent, Posts: recent},
	}, nil
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
