package wall

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/suite"
)

type BddTestSuite struct {
	suite.Suite
	svc   *service
	users UserRepository
	user  *User
}

// reset runs at the top of every scenario; convey replays the outer blocks once per leaf.
func (bs *BddTestSuite) reset() {
	bs.users = NewUserRepository()
	bs.svc = NewService(bs.users, NewPostRepository(), Options{}).(*service)

	id := nextID()
	_ = bs.svc.CreateProfile(string(id), "U", "user@wall.test")
	bs.user, _ = bs.users.FindByID(id)
}

func (bs *BddTestSuite) TestLikingAPost() {
	Convey("Given a user U with a post P on their wall", bs.T(), func() {
		bs.reset()
		p, err := bs.svc.CreatePost(bs.user, "", createPostRequest{Message: "P"})
		So(err, ShouldBeNil)

		likers := []*User{
			DuplicateUser(bs.users, *bs.user, "V"),
			DuplicateUser(bs.users, *bs.user, "W"),
			DuplicateUser(bs.users, *bs.user, "X"),
		}

		Convey("When three other users like P", func() {
			for _, u := range likers {
				So(bs.svc.LikePost(p.ID, u), ShouldBeNil)
			}

			Convey("Then P has three likes, newest liker first", func() {
				got, err := bs.svc.GetPost(p.ID)
				So(err, ShouldBeNil)
				So(got.LikeCount, ShouldEqual, 3)
				So(got.RecentLikers, ShouldResemble, []ID{likers[2].ID, likers[1].ID, likers[0].ID})
			})

			Convey("And one of them likes P again", func() {
				So(bs.svc.LikePost(p.ID, likers[0]), ShouldBeNil)

				Convey("Then the like count does not change", func() {
					got, _ := bs.svc.GetPost(p.ID)
					So(got.LikeCount, ShouldEqual, 3)
				})
			})

			Convey("And the middle one unlikes P", func() {
				So(bs.svc.UnlikePost(p.ID, likers[1]), ShouldBeNil)

				Convey("Then P has two likes and the liker is gone from recent likers", func() {
					got, _ := bs.svc.GetPost(p.ID)
					So(got.LikeCount, ShouldEqual, 2)
					So(got.RecentLikers, ShouldResemble, []ID{likers[2].ID, likers[0].ID})
				})

				Convey("Then P is not in that user's liked posts", func() {
					view, err := bs.svc.GetFeed(context.Background(), likers[1], "time")
					So(err, ShouldBeNil)
					So(view.LikedPostIDs, ShouldBeEmpty)
				})
			})
		})
	})
}

func (bs *BddTestSuite) TestReadingTheFeed() {
	Convey("Given a user U who posted A and then B", bs.T(), func() {
		bs.reset()
		a, _ := bs.svc.CreatePost(bs.user, "", createPostRequest{Message: "A"})
		b, _ := bs.svc.CreatePost(bs.user, "", createPostRequest{Message: "B"})

		Convey("When another user likes A", func() {
			v := DuplicateUser(bs.users, *bs.user, "V")
			So(bs.svc.LikePost(a.ID, v), ShouldBeNil)

			Convey("Then the most liked list starts with A", func() {
				view, err := bs.svc.GetFeed(context.Background(), v, "likes")
				So(err, ShouldBeNil)
				So(view.SortBy, ShouldEqual, "likes")
				So(view.Lists, ShouldHaveLength, 1)
				So(view.Lists[0].Label, ShouldEqual, LabelMostLiked)
				So(postIDs(view.Lists[0].Posts), ShouldResemble, []PostID{a.ID, b.ID})
				So(view.LikedPostIDs, ShouldResemble, []PostID{a.ID})
			})

			Convey("Then the recent list starts with B", func() {
				view, err := bs.svc.GetFeed(context.Background(), nil, "time")
				So(err, ShouldBeNil)
				So(view.Lists[0].Label, ShouldEqual, LabelRecent)
				So(postIDs(view.Lists[0].Posts), ShouldResemble, []PostID{b.ID, a.ID})
			})

			Convey("Then an unknown sort key returns trending and recent lists", func() {
				view, err := bs.svc.GetFeed(context.Background(), nil, "banana")
				So(err, ShouldBeNil)
				So(view.SortBy, ShouldBeEmpty)
				So(view.Lists, ShouldHaveLength, 2)
				So(view.Lists[0].Label, ShouldEqual, LabelTrending)
				So(view.Lists[0].Posts[0].ID, ShouldEqual, a.ID)
				So(view.Lists[1].Label, ShouldEqual, LabelRecent)
			})
		})
	})
}

func TestBddTestSuite(t *testing.T) {
	suite.Run(t, new(BddTestSuite))
}
