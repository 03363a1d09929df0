package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/database"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"
)

// UserService persists patient accounts and their questionnaires in MongoDB.
type UserService struct {
	collection *mongo.Collection
}

// NewUserService creates a user service.
func NewUserService(db *database.MongoDB) *UserService {
	return &UserService{
		collection: db.Collection(database.CollectionUsers),
	}
}

// Create inserts a new user and returns the user with its assigned ID.
func (s *UserService) Create(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := s.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("email %s is already registered", user.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("unexpected inserted ID type %T", result.InsertedID)
	}
	user.ID = oid
	return user, nil
}

// FindByID fetches a user by hex ID. Absent users yield (nil, nil).
func (s *UserService) FindByID(ctx context.Context, userID string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID %q: %w", userID, err)
	}

	var user models.User
	err = s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// FindByEmail fetches a user by email. Absent users yield (nil, nil).
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

// UpdateQuestionnaire replaces the user's health questionnaire.
func (s *UserService) UpdateQuestionnaire(ctx context.Context, userID string, q *models.Questionnaire) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", userID, err)
	}

	_, err = s.collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"questionnaire": q,
			"updatedAt":     time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update questionnaire: %w", err)
	}
	return nil
}
