package wall

import (
	"sort"
	"time"
)

type SortDirective int

const (
	ByRecency SortDirective = iota
	ByLikes
	ByTrending
)

func (d SortDirective) String() string {
	switch d {
	case ByLikes:
		return "likes"
	case ByTrending:
		return "trending"
	default:
		return "time"
	}
}

// Labels of the lists in a feed.
const (
	LabelMostLiked = "mostliked"
	LabelTrending  = "trending"
	LabelRecent    = "recent"
)

type SortOption struct {
	Directive SortDirective
	Label     string
}

// SortKeys is the read-only vocabulary of sort keys accepted from clients.
type SortKeys struct {
	options map[string]SortOption
}

func NewSortKeys() *SortKeys {
	return &SortKeys{options: map[string]SortOption{
		"likes":    {Directive: ByLikes, Label: LabelMostLiked},
		"trending": {Directive: ByTrending, Label: LabelTrending},
		"time":     {Directive: ByRecency, Label: LabelRecent},
	}}
}

func (k *SortKeys) Lookup(key string) (SortOption, bool) {
	o, ok := k.options[key]
	return o, ok
}

// sortPosts orders posts by d. Every ordering falls back to newer first and then to
// the higher id, so equal keys always come out in the same order.
func sortPosts(posts []*Post, d SortDirective, scorer Scorer, now time.Time) {
	newer := func(a, b *Post) bool {
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID > b.ID
	}

	switch d {
	case ByLikes:
		sort.SliceStable(posts, func(i, j int) bool {
			if posts[i].LikeCount != posts[j].LikeCount {
				return posts[i].LikeCount > posts[j].LikeCount
			}
			return newer(posts[i], posts[j])
		})
	case ByTrending:
		scores := make(map[PostID]float64, len(posts))
		for _, p := range posts {
			scores[p.ID] = scorer.Score(p, now)
		}
		sort.SliceStable(posts, func(i, j int) bool {
			si, sj := scores[posts[i].ID], scores[posts[j].ID]
			if si != sj {
				return si > sj
			}
			return newer(posts[i], posts[j])
		})
	default:
		sort.SliceStable(posts, func(i, j int) bool {
			return newer(posts[i], posts[j])
		})
	}
}
