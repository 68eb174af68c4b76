package wall

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(c *mongo.Collection) UserRepository {
	return &mongoUserRepository{collection: c}
}

func (m *mongoUserRepository) FindByName(username string) (*User, error) {
	return m.findUserBy("username", username)
}

func (m *mongoUserRepository) FindByID(id ID) (*User, error) {
	return m.findUserBy("_id", string(id))
}

func (m *mongoUserRepository) findUserBy(key string, val string) (*User, error) {
	var u User
	sr := m.collection.FindOne(context.TODO(), bson.M{key: val})

	if sr.Err() == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}

	if err := sr.Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *mongoUserRepository) Store(u *User) error {
	_, err := m.collection.InsertOne(context.TODO(), u)
	return err
}

type mongoPostRepository struct {
	posts    *mongo.Collection
	counters *mongo.Collection
}

type dbPost struct {
	ID           PostID    `bson:"_id"`
	Message      string    `bson:"message"`
	Author       Author    `bson:"author"`
	Wall         Author    `bson:"wall"`
	Attachment   string    `bson:"attachment,omitempty"`
	PublishedAt  time.Time `bson:"publishedAt"`
	LikeCount    int       `bson:"likeCount"`
	RecentLikers []ID      `bson:"recentLikers"`
	Likes        []dbLike  `bson:"likes"`
}

type dbLike struct {
	UserID ID        `bson:"userId"`
	At     time.Time `bson:"at"`
}

// NewMongoPostRepository stores posts with their likes embedded. Post ids come from a
// sequence document in counters.
func NewMongoPostRepository(posts, counters *mongo.Collection) PostStore {
	return &mongoPostRepository{posts: posts, counters: counters}
}

func (m *mongoPostRepository) FindByID(id PostID) (*Post, error) {
	p, err := m.findPost(id)
	if err != nil {
		return nil, err
	}
	return postFromDBPost(p), nil
}

func (m *mongoPostRepository) findPost(id PostID) (dbPost, error) {
	var p dbPost
	sr := m.posts.FindOne(context.TODO(), bson.M{"_id": id})

	if sr.Err() == mongo.ErrNoDocuments {
		return dbPost{}, ErrPostNotFound
	}
	if err := sr.Decode(&p); err != nil {
		return dbPost{}, err
	}
	return p, nil
}

func (m *mongoPostRepository) Store(p *Post) (PostID, error) {
	id, err := m.nextPostID()
	if err != nil {
		return 0, err
	}

	dbp := dbPostFromPost(p)
	dbp.ID = id
	if _, err := m.posts.InsertOne(context.TODO(), &dbp); err != nil {
		return 0, err
	}
	return id, nil
}

func (m *mongoPostRepository) nextPostID() (PostID, error) {
	var seq struct {
		Seq int64 `bson:"seq"`
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	sr := m.counters.FindOneAndUpdate(context.TODO(), bson.M{"_id": "posts"}, bson.M{"$inc": bson.M{"seq": 1}}, opts)
	if err := sr.Decode(&seq); err != nil {
		return 0, fmt.Errorf("next post id: %w", err)
	}
	return PostID(seq.Seq), nil
}

func (m *mongoPostRepository) Query(ctx context.Context, q PostQuery) ([]*Post, error) {
	filter := bson.M{}
	if q.Wall != nil {
		filter["wall.userid"] = string(*q.Wall)
	}

	sortBy := bson.D{{Key: "publishedAt", Value: -1}, {Key: "_id", Value: -1}}
	if q.Sort == ByLikes {
		sortBy = append(bson.D{{Key: "likeCount", Value: -1}}, sortBy...)
	}

	opts := options.Find().SetSort(sortBy).SetProjection(bson.M{"likes": 0})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := m.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var found []dbPost
	if err := cur.All(ctx, &found); err != nil {
		return nil, err
	}

	posts := make([]*Post, 0, len(found))
	for _, p := range found {
		posts = append(posts, postFromDBPost(p))
	}
	return posts, nil
}

func (m *mongoPostRepository) FindEngagement(id PostID) (Engagement, error) {
	p, err := m.findPost(id)
	if err != nil {
		return Engagement{}, err
	}

	sort.Slice(p.Likes, func(i, j int) bool { return p.Likes[i].At.After(p.Likes[j].At) })
	likers := make([]ID, 0, len(p.Likes))
	for _, l := range p.Likes {
		likers = append(likers, l.UserID)
	}

	return Engagement{
		PostID:       id,
		LikeCount:    len(likers),
		RecentLikers: p.RecentLikers,
		Likers:       likers,
	}, nil
}

func (m *mongoPostRepository) ApplyLikeChange(c LikeChange, e Engagement) error {
	counters := bson.M{"likeCount": e.LikeCount, "recentLikers": e.RecentLikers}

	var filter, update bson.M
	if c.Liked {
		filter = bson.M{"_id": c.PostID, "likes.userId": bson.M{"$ne": c.UserID}}
		update = bson.M{
			"$push": bson.M{"likes": dbLike{UserID: c.UserID, At: c.At}},
			"$set":  counters,
		}
	} else {
		filter = bson.M{"_id": c.PostID}
		update = bson.M{
			"$pull": bson.M{"likes": bson.M{"userId": c.UserID}},
			"$set":  counters,
		}
	}

	res, err := m.posts.UpdateOne(context.TODO(), filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// the like was already stored; only the counters need to follow.
	res, err = m.posts.UpdateOne(context.TODO(), bson.M{"_id": c.PostID}, bson.M{"$set": counters})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (m *mongoPostRepository) FindLikedBy(ctx context.Context, userID ID) ([]PostID, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: -1}})

	cur, err := m.posts.Find(ctx, bson.M{"likes.userId": userID}, opts)
	if err != nil {
		return nil, err
	}

	var docs []struct {
		ID PostID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]PostID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func dbPostFromPost(p *Post) dbPost {
	return dbPost{
		ID:           p.ID,
		Message:      p.Message,
		Author:       p.Author,
		Wall:         p.Wall,
		Attachment:   p.Attachment,
		PublishedAt:  p.PublishedAt,
		LikeCount:    p.LikeCount,
		RecentLikers: p.RecentLikers,
		Likes:        []dbLike{},
	}
}

func postFromDBPost(p dbPost) *Post {
	recent := p.RecentLikers
	if recent == nil {
		recent = []ID{}
	}
	return &Post{
		ID:           p.ID,
		Message:      p.Message,
		Author:       p.Author,
		Wall:         p.Wall,
		Attachment:   p.Attachment,
		PublishedAt:  p.PublishedAt,
		LikeCount:    p.LikeCount,
		RecentLikers: recent,
	}
}
