package wall

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrUnauthorized = errors.New("not signed in")

const DefaultMaxMessageLength = 280

type Service interface {
	CreateProfile(id, username, email string) error
	FindViewer(id ID) (*User, error)
	GetFeed(ctx context.Context, viewer *User, sortKey string) (FeedView, error)
	GetWallFeed(ctx context.Context, viewer *User, username, sortKey string) (FeedView, error)
	GetPost(id PostID) (*Post, error)
	CreatePost(author *User, wallUsername string, req createPostRequest) (*Post, error)
	LikePost(id PostID, viewer *User) error
	UnlikePost(id PostID, viewer *User) error
}

// FeedView is everything a client needs to render a feed page. Viewer and
// LikedPostIDs are only set for signed in viewers.
type FeedView struct {
	Viewer       *User
	LikedPostIDs []PostID
	SortBy       string
	Lists        []LabeledPosts
}

type Options struct {
	MaxMessageLength int
	RecentLikers     int
	ComposeTimeout   time.Duration
	Composer         ComposerConfig
	Scorer           Scorer
}

type service struct {
	users            UserRepository
	posts            PostStore
	engagement       *EngagementStore
	composer         *Composer
	maxMessageLength int
	composeTimeout   time.Duration
}

type createPostRequest struct {
	Message    string `json:"message"`
	Attachment string `json:"attachment"`
}

func NewService(users UserRepository, posts PostStore, opts Options) Service {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = DefaultMaxMessageLength
	}
	return &service{
		users:            users,
		posts:            posts,
		engagement:       NewEngagementStore(posts, opts.RecentLikers),
		composer:         NewComposer(posts, NewSortKeys(), opts.Scorer, opts.Composer),
		maxMessageLength: opts.MaxMessageLength,
		composeTimeout:   opts.ComposeTimeout,
	}
}

func (svc *service) CreateProfile(id, username, email string) error {
	if !IsValidID(id) {
		return ErrInvalidID
	}
	if username == "" {
		return ErrInvalidUsername
	}
	if u, err := svc.users.FindByName(username); u != nil && err == nil {
		return ErrExistingUser
	}

	u := &User{ID: ID(id), Username: username, Email: email, CreatedAt: time.Now().UTC()}
	if err := svc.users.Store(u); err != nil {
		return fmt.Errorf("error saving user: %w", err)
	}
	return nil
}

func (svc *service) FindViewer(id ID) (*User, error) {
	return svc.users.FindByID(id)
}

func (svc *service) GetFeed(ctx context.Context, viewer *User, sortKey string) (FeedView, error) {
	ctx, cancel := svc.withComposeTimeout(ctx)
	defer cancel()

	return svc.feed(ctx, viewer, sortKey, nil)
}

func (svc *service) GetWallFeed(ctx context.Context, viewer *User, username, sortKey string) (FeedView, error) {
	ctx, cancel := svc.withComposeTimeout(ctx)
	defer cancel()

	owner, err := svc.users.FindByName(username)
	if err != nil {
		return FeedView{}, err
	}
	if err := ctx.Err(); err != nil {
		return FeedView{}, contextError(err)
	}
	return svc.feed(ctx, viewer, sortKey, &owner.ID)
}

// withComposeTimeout bounds every step of building a feed, the viewer's liked posts included.
func (svc *service) withComposeTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if svc.composeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, svc.composeTimeout)
}

func (svc *service) feed(ctx context.Context, viewer *User, sortKey string, wall *ID) (FeedView, error) {
	view := FeedView{}

	g, gctx := errgroup.WithContext(ctx)
	if viewer != nil {
		g.Go(func() error {
			liked, err := svc.posts.FindLikedBy(gctx, viewer.ID)
			if err != nil {
				if ctx.Err() != nil {
					return contextError(ctx.Err())
				}
				return fmt.Errorf("finding posts liked by %s: %w", viewer.ID, err)
			}
			if liked == nil {
				liked = []PostID{}
			}
			view.Viewer = viewer
			view.LikedPostIDs = liked
			return nil
		})
	}
	g.Go(func() error {
		var err error
		if wall == nil {
			view.SortBy, view.Lists, err = svc.composer.ComposeFeed(gctx, sortKey)
		} else {
			view.SortBy, view.Lists, err = svc.composer.ComposeWall(gctx, *wall, sortKey)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		log.Printf("[feed] composing %q failed: %v", sortKey, err)
		return FeedView{}, err
	}

	for _, l := range view.Lists {
		svc.engagement.Overlay(l.Posts)
	}
	return view, nil
}

func (svc *service) GetPost(id PostID) (*Post, error) {
	p, err := svc.posts.FindByID(id)
	if err != nil {
		return nil, err
	}
	svc.engagement.Overlay([]*Post{p})
	return p, nil
}

// CreatePost publishes a post by author on the wall of wallUsername, or on the
// author's own wall when wallUsername is empty.
func (svc *service) CreatePost(author *User, wallUsername string, req createPostRequest) (*Post, error) {
	if author == nil {
		return nil, ErrUnauthorized
	}
	if err := validateMessage(req.Message, svc.maxMessageLength); err != nil {
		return nil, err
	}

	wall := author
	if wallUsername != "" {
		w, err := svc.users.FindByName(wallUsername)
		if err != nil {
			return nil, err
		}
		wall = w
	}

	p, err := NewPost(author, wall, req.Message, req.Attachment, svc.maxMessageLength)
	if err != nil {
		return nil, err
	}

	id, err := svc.posts.Store(p)
	if err != nil {
		return nil, fmt.Errorf("error saving post: %w", err)
	}
	p.ID = id
	return p, nil
}

func (svc *service) LikePost(id PostID, viewer *User) error {
	if viewer == nil {
		return ErrUnauthorized
	}

	res, err := svc.engagement.Like(id, viewer.ID)
	if err != nil {
		return err
	}
	if res == AlreadyLiked {
		log.Printf("[likes] %s already likes post %d", viewer.ID, id)
	}
	return nil
}

func (svc *service) UnlikePost(id PostID, viewer *User) error {
	if viewer == nil {
		return ErrUnauthorized
	}

	res, err := svc.engagement.Unlike(id, viewer.ID)
	if err != nil {
		return err
	}
	if res == NotLiked {
		log.Printf("[likes] %s did not like post %d", viewer.ID, id)
	}
	return nil
}
