package wall

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"
)

var (
	ErrPostNotFound  = errors.New("post not found")
	ErrInputTooLong  = errors.New("message too long")
	ErrInvalidAuthor = errors.New("post author must be a known user")
	ErrInvalidWall   = errors.New("post wall must be a known user")
)

// PostRepository is the data-access layer the feed depends on. Query returns posts
// filtered by wall and ordered by the requested criterion; Store assigns the post id.
type PostRepository interface {
	FindByID(id PostID) (*Post, error)
	Store(p *Post) (PostID, error)
	Query(ctx context.Context, q PostQuery) ([]*Post, error)
}

// PostStore keeps posts together with their like relation.
type PostStore interface {
	PostRepository
	EngagementRepository
}

type PostID int64

type Author struct {
	UserID   ID
	Username string
}

type Post struct {
	ID           PostID `bson:"_id"`
	Message      string
	Author       Author
	Wall         Author
	Attachment   string
	PublishedAt  time.Time
	LikeCount    int
	RecentLikers []ID
}

// PostQuery selects posts for the composer. A nil Wall means every wall.
type PostQuery struct {
	Sort  SortDirective
	Wall  *ID
	Limit int
}

// NewPost builds an unsaved post on wall. maxLen is counted in runes.
func NewPost(author, wall *User, message, attachment string, maxLen int) (*Post, error) {
	if author == nil || author.ID == "" {
		return nil, ErrInvalidAuthor
	}
	if wall == nil || wall.ID == "" {
		return nil, ErrInvalidWall
	}
	if err := validateMessage(message, maxLen); err != nil {
		return nil, err
	}

	return &Post{
		Message:      message,
		Author:       author.Author(),
		Wall:         wall.Author(),
		Attachment:   attachment,
		PublishedAt:  time.Now().UTC(),
		RecentLikers: []ID{},
	}, nil
}

func validateMessage(message string, maxLen int) error {
	if utf8.RuneCountInString(message) > maxLen {
		return ErrInputTooLong
	}
	return nil
}

func (p *Post) clone() *Post {
	c := *p
	c.RecentLikers = append([]ID{}, p.RecentLikers...)
	return &c
}
