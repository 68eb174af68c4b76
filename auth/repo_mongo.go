package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const duplicateKey = 11000

type mongoAccountRepository struct {
	collection *mongo.Collection
}

type dbAccount struct {
	ID        ID        `bson:"_id"`
	Username  string    `bson:"username"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password"`
	CreatedAt time.Time `bson:"createdAt"`
}

// NewMongoAccountRepository ensures the unique username and email indexes exist.
func NewMongoAccountRepository(ctx context.Context, c *mongo.Collection) (Repository, error) {
	_, err := c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("creating account indexes: %w", err)
	}
	return &mongoAccountRepository{collection: c}, nil
}

func (m *mongoAccountRepository) FindByName(username string) (*Account, error) {
	return m.findBy("username", username)
}

func (m *mongoAccountRepository) FindByEmail(email string) (*Account, error) {
	return m.findBy("email", email)
}

func (m *mongoAccountRepository) findBy(key, val string) (*Account, error) {
	var a dbAccount
	sr := m.collection.FindOne(context.TODO(), bson.M{key: val})

	if sr.Err() == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err := sr.Decode(&a); err != nil {
		return nil, err
	}

	return &Account{ID: a.ID, Username: a.Username, Email: a.Email, PasswordHash: a.Password, CreatedAt: a.CreatedAt}, nil
}

func (m *mongoAccountRepository) Store(acc *Account) error {
	a := dbAccount{
		ID:        acc.ID,
		Username:  acc.Username,
		Email:     acc.Email,
		Password:  acc.PasswordHash,
		CreatedAt: acc.CreatedAt,
	}
	_, err := m.collection.InsertOne(context.TODO(), &a)

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code != duplicateKey {
				continue
			}
			if strings.Contains(e.Message, "username") {
				return ErrExistingUsername
			}
			if strings.Contains(e.Message, "email") {
				return ErrExistingEmail
			}
		}
	}
	return err
}
