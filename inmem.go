package wall

import (
	"context"
	"sort"
	"sync"
	"time"
)

type userRepository struct {
	mu    sync.RWMutex
	users map[ID]*User
}

func NewUserRepository() UserRepository {
	return &userRepository{users: map[ID]*User{}}
}

func (repo *userRepository) FindByID(id ID) (*User, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if u, ok := repo.users[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (repo *userRepository) FindByName(username string) (*User, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	for _, v := range repo.users {
		if v.Username == username {
			return v, nil
		}
	}
	return nil, ErrNotFound
}

func (repo *userRepository) Store(user *User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.users[user.ID] = user
	return nil
}

type postRepository struct {
	mu     sync.RWMutex
	lastID PostID
	posts  map[PostID]*Post
	likes  map[PostID]map[ID]time.Time
}

func NewPostRepository() PostStore {
	return &postRepository{posts: map[PostID]*Post{}, likes: map[PostID]map[ID]time.Time{}}
}

func (repo *postRepository) FindByID(id PostID) (*Post, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if p, ok := repo.posts[id]; ok {
		return p.clone(), nil
	}
	return nil, ErrPostNotFound
}

func (repo *postRepository) Store(p *Post) (PostID, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.lastID++
	stored := p.clone()
	stored.ID = repo.lastID
	repo.posts[stored.ID] = stored
	repo.likes[stored.ID] = map[ID]time.Time{}
	return stored.ID, nil
}

// Query answers ByTrending with recency order; trending is ranked by the composer.
func (repo *postRepository) Query(ctx context.Context, q PostQuery) ([]*Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo.mu.RLock()
	posts := []*Post{}
	for _, p := range repo.posts {
		if q.Wall != nil && p.Wall.UserID != *q.Wall {
			continue
		}
		posts = append(posts, p.clone())
	}
	repo.mu.RUnlock()

	d := q.Sort
	if d == ByTrending {
		d = ByRecency
	}
	sortPosts(posts, d, nil, time.Time{})

	if q.Limit > 0 && len(posts) > q.Limit {
		posts = posts[:q.Limit]
	}
	return posts, nil
}

func (repo *postRepository) FindEngagement(id PostID) (Engagement, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	p, ok := repo.posts[id]
	if !ok {
		return Engagement{}, ErrPostNotFound
	}

	likes := repo.likes[id]
	likers := make([]ID, 0, len(likes))
	for u := range likes {
		likers = append(likers, u)
	}
	sort.Slice(likers, func(i, j int) bool { return likes[likers[i]].After(likes[likers[j]]) })

	return Engagement{
		PostID:       id,
		LikeCount:    len(likers),
		RecentLikers: append([]ID{}, p.RecentLikers...),
		Likers:       likers,
	}, nil
}

func (repo *postRepository) ApplyLikeChange(c LikeChange, e Engagement) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	p, ok := repo.posts[c.PostID]
	if !ok {
		return ErrPostNotFound
	}

	if c.Liked {
		repo.likes[c.PostID][c.UserID] = c.At
	} else {
		delete(repo.likes[c.PostID], c.UserID)
	}
	p.LikeCount = e.LikeCount
	p.RecentLikers = append([]ID{}, e.RecentLikers...)
	return nil
}

func (repo *postRepository) FindLikedBy(ctx context.Context, userID ID) ([]PostID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	ids := []PostID{}
	for id, likes := range repo.likes {
		if _, ok := likes[userID]; ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids, nil
}
