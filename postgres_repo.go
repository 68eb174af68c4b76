package wall

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id BIGSERIAL PRIMARY KEY,
	message TEXT NOT NULL DEFAULT '',
	author_id TEXT NOT NULL,
	author_name TEXT NOT NULL,
	wall_id TEXT NOT NULL,
	wall_name TEXT NOT NULL,
	attachment TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ NOT NULL,
	like_count INTEGER NOT NULL DEFAULT 0,
	recent_likers TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS post_likes (
	post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	liked_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (post_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(published_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_posts_wall_published ON posts(wall_id, published_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_likes ON posts(like_count DESC, published_at DESC);
CREATE INDEX IF NOT EXISTS idx_post_likes_user ON post_likes(user_id);
`

// MigratePostgres creates the tables used by the postgres repositories.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

type postgresUserRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepository(pool *pgxpool.Pool) UserRepository {
	return &postgresUserRepository{pool: pool}
}

func (r *postgresUserRepository) FindByName(username string) (*User, error) {
	return r.findUserBy("username", username)
}

func (r *postgresUserRepository) FindByID(id ID) (*User, error) {
	return r.findUserBy("id", string(id))
}

func (r *postgresUserRepository) findUserBy(column, val string) (*User, error) {
	var u User
	var id string
	q := fmt.Sprintf(`SELECT id, username, email, created_at FROM users WHERE %s = $1`, column)
	err := r.pool.QueryRow(context.TODO(), q, val).Scan(&id, &u.Username, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.ID = ID(id)
	return &u, nil
}

func (r *postgresUserRepository) Store(u *User) error {
	_, err := r.pool.Exec(context.TODO(),
		`INSERT INTO users (id, username, email, created_at) VALUES ($1, $2, $3, $4)`,
		string(u.ID), u.Username, u.Email, u.CreatedAt)
	return err
}

type postgresPostRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresPostRepository(pool *pgxpool.Pool) PostStore {
	return &postgresPostRepository{pool: pool}
}

const postColumns = `id, message, author_id, author_name, wall_id, wall_name, attachment, published_at, like_count, recent_likers`

func (r *postgresPostRepository) FindByID(id PostID) (*Post, error) {
	row := r.pool.QueryRow(context.TODO(), `SELECT `+postColumns+` FROM posts WHERE id = $1`, int64(id))
	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	return p, err
}

func (r *postgresPostRepository) Store(p *Post) (PostID, error) {
	var id int64
	err := r.pool.QueryRow(context.TODO(), `
		INSERT INTO posts (message, author_id, author_name, wall_id, wall_name, attachment, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.Message,
		string(p.Author.UserID), p.Author.Username,
		string(p.Wall.UserID), p.Wall.Username,
		p.Attachment, p.PublishedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return PostID(id), nil
}

func (r *postgresPostRepository) Query(ctx context.Context, q PostQuery) ([]*Post, error) {
	var sb strings.Builder
	var args []any

	sb.WriteString(`SELECT ` + postColumns + ` FROM posts`)
	if q.Wall != nil {
		args = append(args, string(*q.Wall))
		sb.WriteString(` WHERE wall_id = $1`)
	}
	if q.Sort == ByLikes {
		sb.WriteString(` ORDER BY like_count DESC, published_at DESC, id DESC`)
	} else {
		sb.WriteString(` ORDER BY published_at DESC, id DESC`)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sb.WriteString(fmt.Sprintf(` LIMIT $%d`, len(args)))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []*Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postgresPostRepository) FindEngagement(id PostID) (Engagement, error) {
	ctx := context.TODO()

	var recent []string
	err := r.pool.QueryRow(ctx, `SELECT recent_likers FROM posts WHERE id = $1`, int64(id)).Scan(&recent)
	if errors.Is(err, pgx.ErrNoRows) {
		return Engagement{}, ErrPostNotFound
	}
	if err != nil {
		return Engagement{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT user_id FROM post_likes WHERE post_id = $1 ORDER BY liked_at DESC`, int64(id))
	if err != nil {
		return Engagement{}, err
	}
	defer rows.Close()

	likers := []ID{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return Engagement{}, err
		}
		likers = append(likers, ID(u))
	}
	if err := rows.Err(); err != nil {
		return Engagement{}, err
	}

	return Engagement{PostID: id, LikeCount: len(likers), RecentLikers: toIDs(recent), Likers: likers}, nil
}

func (r *postgresPostRepository) ApplyLikeChange(c LikeChange, e Engagement) error {
	ctx := context.TODO()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE posts SET like_count = $2, recent_likers = $3 WHERE id = $1`,
		int64(c.PostID), e.LikeCount, fromIDs(e.RecentLikers))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}

	if c.Liked {
		_, err = tx.Exec(ctx, `
			INSERT INTO post_likes (post_id, user_id, liked_at) VALUES ($1, $2, $3)
			ON CONFLICT (post_id, user_id) DO NOTHING`,
			int64(c.PostID), string(c.UserID), c.At)
	} else {
		_, err = tx.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`,
			int64(c.PostID), string(c.UserID))
	}
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *postgresPostRepository) FindLikedBy(ctx context.Context, userID ID) ([]PostID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT post_id FROM post_likes WHERE user_id = $1 ORDER BY post_id DESC`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []PostID{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, PostID(id))
	}
	return ids, rows.Err()
}

func scanPost(row pgx.Row) (*Post, error) {
	var (
		p                Post
		id               int64
		authorID, wallID string
		recent           []string
	)
	err := row.Scan(&id, &p.Message, &authorID, &p.Author.Username, &wallID, &p.Wall.Username,
		&p.Attachment, &p.PublishedAt, &p.LikeCount, &recent)
	if err != nil {
		return nil, err
	}

	p.ID = PostID(id)
	p.Author.UserID = ID(authorID)
	p.Wall.UserID = ID(wallID)
	p.RecentLikers = toIDs(recent)
	return &p, nil
}

func toIDs(ss []string) []ID {
	ids := make([]ID, 0, len(ss))
	for _, s := range ss {
		ids = append(ids, ID(s))
	}
	return ids
}

func fromIDs(ids []ID) []string {
	ss := make([]string, 0, len(ids))
	for _, id := range ids {
		ss = append(ss, string(id))
	}
	return ss
}
