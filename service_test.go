package wall

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ServiceTestSuite struct {
	suite.Suite
	svc   *service
	posts *postRepository
	alice *User
	bob   *User
}

func (suite *ServiceTestSuite) SetupTest() {
	suite.posts = NewPostRepository().(*postRepository)
	suite.svc = NewService(NewUserRepository(), suite.posts, Options{MaxMessageLength: 10}).(*service)
	suite.alice = suite.createProfile("alice")
	suite.bob = suite.createProfile("bob")
}

func (suite *ServiceTestSuite) createProfile(username string) *User {
	id := nextID()
	require.NoError(suite.T(), suite.svc.CreateProfile(string(id), username, username+"@wall.test"))

	u, err := suite.svc.FindViewer(id)
	require.NoError(suite.T(), err)
	return u
}

func (suite *ServiceTestSuite) createPost(author *User, wall, message string) *Post {
	p, err := suite.svc.CreatePost(author, wall, createPostRequest{Message: message})
	require.NoError(suite.T(), err)
	return p
}

func (suite *ServiceTestSuite) postCount() int {
	suite.posts.mu.RLock()
	defer suite.posts.mu.RUnlock()
	return len(suite.posts.posts)
}

func (suite *ServiceTestSuite) TestCreateProfile() {
	tests := []struct {
		id       string
		username string
		wantErr  error
	}{
		{id: "", username: "carol", wantErr: ErrInvalidID},
		{id: "not-an-xid", username: "carol", wantErr: ErrInvalidID},
		{id: string(nextID()), username: "", wantErr: ErrInvalidUsername},
		{id: string(nextID()), username: "alice", wantErr: ErrExistingUser},
		{id: string(nextID()), username: "carol", wantErr: nil},
	}

	for _, tt := range tests {
		err := suite.svc.CreateProfile(tt.id, tt.username, "c@wall.test")
		assert.Equal(suite.T(), tt.wantErr, err)
	}

	u, err := suite.svc.users.FindByName("carol")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "c@wall.test", u.Email)
}

func (suite *ServiceTestSuite) TestCreatePost_RejectsInvalidRequests() {
	tests := []struct {
		author  *User
		wall    string
		message string
		wantErr error
	}{
		{author: nil, message: "hi", wantErr: ErrUnauthorized},
		{author: suite.alice, message: "12345678901", wantErr: ErrInputTooLong},
		{author: suite.alice, wall: "bob", message: "ééééééééééé", wantErr: ErrInputTooLong},
		{author: suite.alice, wall: "nobody", message: "hi", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		p, err := suite.svc.CreatePost(tt.author, tt.wall, createPostRequest{Message: tt.message})

		assert.Nil(suite.T(), p)
		assert.Equal(suite.T(), tt.wantErr, err)
		assert.Equal(suite.T(), 0, suite.postCount())
	}
}

func (suite *ServiceTestSuite) TestCreatePost_CountsRunesNotBytes() {
	p, err := suite.svc.CreatePost(suite.alice, "", createPostRequest{Message: "éééééééééé"})

	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), p)
}

func (suite *ServiceTestSuite) TestCreatePost_DefaultsToOwnWall() {
	p, err := suite.svc.CreatePost(suite.alice, "", createPostRequest{Message: "hi", Attachment: "a.png"})

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.alice.Author(), p.Author)
	assert.Equal(suite.T(), suite.alice.Author(), p.Wall)
	assert.Equal(suite.T(), "a.png", p.Attachment)
	assert.Equal(suite.T(), 0, p.LikeCount)
	assert.Empty(suite.T(), p.RecentLikers)
	assert.WithinDuration(suite.T(), time.Now().UTC(), p.PublishedAt, time.Minute)

	stored, err := suite.svc.GetPost(p.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), p.Message, stored.Message)
}

func (suite *ServiceTestSuite) TestCreatePost_OnAnotherWall() {
	p := suite.createPost(suite.alice, "bob", "hi bob")

	assert.Equal(suite.T(), suite.alice.Author(), p.Author)
	assert.Equal(suite.T(), suite.bob.Author(), p.Wall)
}

func (suite *ServiceTestSuite) TestCreatePost_AssignsIncreasingIDs() {
	p1 := suite.createPost(suite.alice, "", "one")
	p2 := suite.createPost(suite.bob, "", "two")

	assert.Greater(suite.T(), p2.ID, p1.ID)
}

func (suite *ServiceTestSuite) TestGetPost_Unknown() {
	p, err := suite.svc.GetPost(99)

	assert.Nil(suite.T(), p)
	assert.Equal(suite.T(), ErrPostNotFound, err)
}

func (suite *ServiceTestSuite) TestLikePost() {
	p := suite.createPost(suite.alice, "", "hi")

	assert.Equal(suite.T(), ErrUnauthorized, suite.svc.LikePost(p.ID, nil))
	assert.Equal(suite.T(), ErrPostNotFound, suite.svc.LikePost(99, suite.bob))

	assert.NoError(suite.T(), suite.svc.LikePost(p.ID, suite.bob))
	assert.NoError(suite.T(), suite.svc.LikePost(p.ID, suite.bob))

	got, _ := suite.svc.GetPost(p.ID)
	assert.Equal(suite.T(), 1, got.LikeCount)
	assert.Equal(suite.T(), []ID{suite.bob.ID}, got.RecentLikers)
}

func (suite *ServiceTestSuite) TestUnlikePost() {
	p := suite.createPost(suite.alice, "", "hi")

	assert.Equal(suite.T(), ErrUnauthorized, suite.svc.UnlikePost(p.ID, nil))
	assert.Equal(suite.T(), ErrPostNotFound, suite.svc.UnlikePost(99, suite.bob))
	assert.NoError(suite.T(), suite.svc.UnlikePost(p.ID, suite.bob))

	require.NoError(suite.T(), suite.svc.LikePost(p.ID, suite.bob))
	assert.NoError(suite.T(), suite.svc.UnlikePost(p.ID, suite.bob))

	got, _ := suite.svc.GetPost(p.ID)
	assert.Equal(suite.T(), 0, got.LikeCount)
	assert.Empty(suite.T(), got.RecentLikers)
}

func (suite *ServiceTestSuite) TestGetFeed_AnonymousViewer() {
	suite.createPost(suite.alice, "", "hi")

	view, err := suite.svc.GetFeed(context.Background(), nil, "time")

	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), view.Viewer)
	assert.Nil(suite.T(), view.LikedPostIDs)
	assert.Equal(suite.T(), "time", view.SortBy)
	require.Len(suite.T(), view.Lists, 1)
	assert.Len(suite.T(), view.Lists[0].Posts, 1)
}

func (suite *ServiceTestSuite) TestGetFeed_SignedInViewer() {
	p1 := suite.createPost(suite.alice, "", "one")
	suite.createPost(suite.alice, "", "two")
	p3 := suite.createPost(suite.alice, "", "three")
	require.NoError(suite.T(), suite.svc.LikePost(p1.ID, suite.bob))
	require.NoError(suite.T(), suite.svc.LikePost(p3.ID, suite.bob))

	view, err := suite.svc.GetFeed(context.Background(), suite.bob, "")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.bob, view.Viewer)
	assert.Equal(suite.T(), []PostID{p3.ID, p1.ID}, view.LikedPostIDs)
	assert.Equal(suite.T(), "", view.SortBy)
	assert.Len(suite.T(), view.Lists, 2)

	view, err = suite.svc.GetFeed(context.Background(), suite.alice, "")
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), view.LikedPostIDs)
	assert.Empty(suite.T(), view.LikedPostIDs)
}

func (suite *ServiceTestSuite) TestGetFeed_ShowsLiveLikes() {
	p1 := suite.createPost(suite.alice, "", "one")
	p2 := suite.createPost(suite.alice, "", "two")
	require.NoError(suite.T(), suite.svc.LikePost(p1.ID, suite.bob))
	require.NoError(suite.T(), suite.svc.LikePost(p1.ID, suite.alice))
	require.NoError(suite.T(), suite.svc.LikePost(p2.ID, suite.bob))

	view, err := suite.svc.GetFeed(context.Background(), nil, "likes")

	require.NoError(suite.T(), err)
	require.Len(suite.T(), view.Lists, 1)
	assert.Equal(suite.T(), LabelMostLiked, view.Lists[0].Label)
	posts := view.Lists[0].Posts
	assert.Equal(suite.T(), []PostID{p1.ID, p2.ID}, postIDs(posts))
	assert.Equal(suite.T(), 2, posts[0].LikeCount)
	assert.Equal(suite.T(), []ID{suite.alice.ID, suite.bob.ID}, posts[0].RecentLikers)
}

func (suite *ServiceTestSuite) TestGetWallFeed() {
	suite.createPost(suite.alice, "", "own")
	onBob := suite.createPost(suite.alice, "bob", "for bob")

	view, err := suite.svc.GetWallFeed(context.Background(), nil, "bob", "time")
	assert.NoError(suite.T(), err)
	require.Len(suite.T(), view.Lists, 1)
	assert.Equal(suite.T(), []PostID{onBob.ID}, postIDs(view.Lists[0].Posts))

	_, err = suite.svc.GetWallFeed(context.Background(), nil, "nobody", "time")
	assert.Equal(suite.T(), ErrNotFound, err)
}

func (suite *ServiceTestSuite) TestNewService() {
	svc := NewService(NewUserRepository(), NewPostRepository(), Options{}).(*service)

	assert.Equal(suite.T(), DefaultMaxMessageLength, svc.maxMessageLength)
	assert.Equal(suite.T(), DefaultRecentLikers, svc.engagement.capacity)
	assert.Equal(suite.T(), DefaultFeedLimit, svc.composer.cfg.FeedLimit)
	assert.Equal(suite.T(), DefaultTrendingLimit, svc.composer.cfg.TrendingLimit)
	assert.Equal(suite.T(), DefaultTrendingWindow, svc.composer.cfg.TrendingWindow)
	assert.Zero(suite.T(), svc.composeTimeout)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func TestGetFeed_TimesOut(t *testing.T) {
	svc := NewService(NewUserRepository(), &blockingPosts{PostStore: NewPostRepository()}, Options{
		ComposeTimeout: 10 * time.Millisecond,
	})

	view, err := svc.GetFeed(context.Background(), nil, "likes")

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Nil(t, view.Lists)
}

func TestGetFeed_LikedPostsLookupIsBoundedByTimeout(t *testing.T) {
	posts := &slowLikes{PostStore: NewPostRepository(), delay: 300 * time.Millisecond}
	svc := NewService(NewUserRepository(), posts, Options{ComposeTimeout: 20 * time.Millisecond})
	viewer := &User{ID: nextID(), Username: "v"}

	start := time.Now()
	view, err := svc.GetFeed(context.Background(), viewer, "time")

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Nil(t, view.Viewer)
}

func TestGetFeed_LikedPostsWithinTimeout(t *testing.T) {
	posts := &slowLikes{PostStore: NewPostRepository(), delay: time.Millisecond}
	svc := NewService(NewUserRepository(), posts, Options{ComposeTimeout: time.Second})
	viewer := &User{ID: nextID(), Username: "v"}

	view, err := svc.GetFeed(context.Background(), viewer, "time")

	assert.NoError(t, err)
	assert.Equal(t, viewer, view.Viewer)
	assert.Equal(t, []PostID{}, view.LikedPostIDs)
}

// slowLikes answers FindLikedBy after delay, or earlier with the context error.
type slowLikes struct {
	PostStore
	delay time.Duration
}

func (s *slowLikes) FindLikedBy(ctx context.Context, userID ID) ([]PostID, error) {
	select {
	case <-time.After(s.delay):
		return s.PostStore.FindLikedBy(ctx, userID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
