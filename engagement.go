package wall

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// DefaultRecentLikers is the size of the recent likers window shown with a post.
const DefaultRecentLikers = 5

type LikeResult int

const (
	Liked LikeResult = iota
	AlreadyLiked
)

type UnlikeResult int

const (
	Unliked UnlikeResult = iota
	NotLiked
)

// Engagement is a point-in-time copy of a post's like state.
type Engagement struct {
	PostID       PostID
	LikeCount    int
	RecentLikers []ID
	Likers       []ID
}

// LikeChange describes a single membership change of the like relation.
type LikeChange struct {
	PostID PostID
	UserID ID
	Liked  bool
	At     time.Time
}

// EngagementRepository persists the like relation together with the post's counters.
// FindEngagement returns ErrPostNotFound for unknown posts. ApplyLikeChange receives the
// counters after the change; its Likers field is left empty. FindLikedBy returns post ids
// in descending order.
type EngagementRepository interface {
	FindEngagement(id PostID) (Engagement, error)
	ApplyLikeChange(c LikeChange, e Engagement) error
	FindLikedBy(ctx context.Context, userID ID) ([]PostID, error)
}

// EngagementStore owns the like state of every post it has touched. Each post has its
// own record and lock, so likes on different posts never wait for each other.
type EngagementStore struct {
	likes    EngagementRepository
	capacity int
	records  sync.Map
}

type engagementRecord struct {
	mu     sync.Mutex
	likers map[ID]struct{}
	recent []ID
}

func NewEngagementStore(likes EngagementRepository, capacity int) *EngagementStore {
	if capacity <= 0 {
		capacity = DefaultRecentLikers
	}
	return &EngagementStore{likes: likes, capacity: capacity}
}

func (s *EngagementStore) Like(postID PostID, userID ID) (LikeResult, error) {
	rec, err := s.record(postID)
	if err != nil {
		return 0, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if _, ok := rec.likers[userID]; ok {
		return AlreadyLiked, nil
	}

	prev := rec.recent
	rec.likers[userID] = struct{}{}
	rec.recent = prependBounded(rec.recent, userID, s.capacity)

	c := LikeChange{PostID: postID, UserID: userID, Liked: true, At: time.Now().UTC()}
	if err := s.likes.ApplyLikeChange(c, rec.counters(postID)); err != nil {
		delete(rec.likers, userID)
		rec.recent = prev
		log.Printf("[likes] like of post %d by %s rolled back: %v", postID, userID, err)
		return 0, fmt.Errorf("saving like: %w", err)
	}

	return Liked, nil
}

// Unlike removes userID from the likers of postID. A freed slot in the recent likers
// window is not refilled from older likers.
func (s *EngagementStore) Unlike(postID PostID, userID ID) (UnlikeResult, error) {
	rec, err := s.record(postID)
	if err != nil {
		return 0, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if _, ok := rec.likers[userID]; !ok {
		return NotLiked, nil
	}

	prev := rec.recent
	delete(rec.likers, userID)
	rec.recent = without(rec.recent, userID)

	c := LikeChange{PostID: postID, UserID: userID, Liked: false, At: time.Now().UTC()}
	if err := s.likes.ApplyLikeChange(c, rec.counters(postID)); err != nil {
		rec.likers[userID] = struct{}{}
		rec.recent = prev
		log.Printf("[likes] unlike of post %d by %s rolled back: %v", postID, userID, err)
		return 0, fmt.Errorf("saving unlike: %w", err)
	}

	return Unliked, nil
}

func (s *EngagementStore) IsLikedBy(postID PostID, userID ID) bool {
	rec, err := s.record(postID)
	if err != nil {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	_, ok := rec.likers[userID]
	return ok
}

func (s *EngagementStore) Engagement(postID PostID) (Engagement, error) {
	rec, err := s.record(postID)
	if err != nil {
		return Engagement{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snapshot(postID), nil
}

// Overlay copies the live counters of already loaded records onto posts.
// Posts whose record was never loaded keep the values they were read with.
func (s *EngagementStore) Overlay(posts []*Post) {
	for _, p := range posts {
		v, ok := s.records.Load(p.ID)
		if !ok {
			continue
		}
		rec := v.(*engagementRecord)
		rec.mu.Lock()
		p.LikeCount = len(rec.likers)
		p.RecentLikers = append([]ID{}, rec.recent...)
		rec.mu.Unlock()
	}
}

// record returns the loaded record for postID, hydrating it from the repository
// without holding any lock.
func (s *EngagementStore) record(postID PostID) (*engagementRecord, error) {
	if v, ok := s.records.Load(postID); ok {
		return v.(*engagementRecord), nil
	}

	e, err := s.likes.FindEngagement(postID)
	if err != nil {
		return nil, err
	}

	v, _ := s.records.LoadOrStore(postID, newEngagementRecord(e, s.capacity))
	return v.(*engagementRecord), nil
}

func newEngagementRecord(e Engagement, capacity int) *engagementRecord {
	rec := &engagementRecord{likers: make(map[ID]struct{}, len(e.Likers)), recent: []ID{}}
	for _, id := range e.Likers {
		rec.likers[id] = struct{}{}
	}

	seen := map[ID]bool{}
	for _, id := range e.RecentLikers {
		if len(rec.recent) == capacity {
			break
		}
		if _, ok := rec.likers[id]; ok && !seen[id] {
			seen[id] = true
			rec.recent = append(rec.recent, id)
		}
	}
	return rec
}

func (rec *engagementRecord) counters(postID PostID) Engagement {
	return Engagement{
		PostID:       postID,
		LikeCount:    len(rec.likers),
		RecentLikers: append([]ID{}, rec.recent...),
	}
}

func (rec *engagementRecord) snapshot(postID PostID) Engagement {
	likers := make([]ID, 0, len(rec.likers))
	for id := range rec.likers {
		likers = append(likers, id)
	}
	sort.Slice(likers, func(i, j int) bool { return likers[i] < likers[j] })

	return Engagement{
		PostID:       postID,
		LikeCount:    len(rec.likers),
		RecentLikers: append([]ID{}, rec.recent...),
		Likers:       likers,
	}
}

// prependBounded returns a new slice with id in front of ids, cut to capacity.
func prependBounded(ids []ID, id ID, capacity int) []ID {
	next := make([]ID, 0, capacity)
	next = append(next, id)
	for _, v := range ids {
		if len(next) == capacity {
			break
		}
		if v != id {
			next = append(next, v)
		}
	}
	return next
}

func without(ids []ID, id ID) []ID {
	next := make([]ID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			next = append(next, v)
		}
	}
	return next
}
