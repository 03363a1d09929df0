package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/database"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"
)

// ErrActiveConversationExists is returned when a user tries to start a
// consultation while another one is still open. Backed by the partial unique
// index on {userId, ended:false}.
var ErrActiveConversationExists = errors.New("user already has an active consultation")

// ConversationService persists consultations and their append-only message
// logs in MongoDB.
type ConversationService struct {
	collection *mongo.Collection
}

// NewConversationService creates a conversation service.
func NewConversationService(db *database.MongoDB) *ConversationService {
	return &ConversationService{
		collection: db.Collection(database.CollectionConversations),
	}
}

// Create inserts a new active conversation and returns its hex ID.
func (s *ConversationService) Create(ctx context.Context, userID, title string) (string, error) {
	now := time.Now().UTC()
	doc := models.Conversation{
		UserID:    userID,
		Title:     title,
		Messages:  []models.Message{},
		Ended:     false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrActiveConversationExists
		}
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted ID type %T", result.InsertedID)
	}
	return oid.Hex(), nil
}

// AppendMessage pushes one message onto the conversation log and returns the
// new message's ID. Message IDs are UUIDs, independent of the conversation ID.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID, role, content string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return "", fmt.Errorf("invalid conversation ID %q: %w", conversationID, err)
	}

	now := time.Now().UTC()
	message := models.Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}

	_, err = s.collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$push": bson.M{"messages": message},
			"$set":  bson.M{"updatedAt": now},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to append message: %w", err)
	}

	return message.ID, nil
}

// GetByID fetches a conversation. Absent conversations yield (nil, nil).
func (s *ConversationService) GetByID(ctx context.Context, conversationID string) (*models.Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation ID %q: %w", conversationID, err)
	}

	var conversation models.Conversation
	err = s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&conversation)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conversation, nil
}

// GetActive returns the user's open conversation, or (nil, nil) when none.
func (s *ConversationService) GetActive(ctx context.Context, userID string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.collection.FindOne(ctx, bson.M{"userId": userID, "ended": false}).Decode(&conversation)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active conversation: %w", err)
	}

	return &conversation, nil
}

// ListByUser returns all of a user's conversations, most recently updated
// first.
func (s *ConversationService) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	conversations := []models.Conversation{}
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}

	return conversations, nil
}

// End marks a conversation as ended. Returns false when the conversation was
// already ended or does not exist.
func (s *ConversationService) End(ctx context.Context, conversationID string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return false, fmt.Errorf("invalid conversation ID %q: %w", conversationID, err)
	}

	now := time.Now().UTC()
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": oid, "ended": false},
		bson.M{"$set": bson.M{
			"ended":     true,
			"endedAt":   now,
			"updatedAt": now,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to end conversation: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

// MarkConsolidated records that long-term memory consolidation succeeded for
// this conversation, so the background sweep won't retry it.
func (s *ConversationService) MarkConsolidated(ctx context.Context, conversationID string) error {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return fmt.Errorf("invalid conversation ID %q: %w", conversationID, err)
	}

	_, err = s.collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"consolidatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark conversation consolidated: %w", err)
	}
	return nil
}

// FindUnconsolidated returns ended conversations whose memory consolidation
// has not completed yet.
func (s *ConversationService) FindUnconsolidated(ctx context.Context, limit int64) ([]models.Conversation, error) {
	filter := bson.M{
		"ended":          true,
		"consolidatedAt": bson.M{"$exists": false},
		"messages.0":     bson.M{"$exists": true},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "endedAt", Value: 1}}).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find unconsolidated conversations: %w", err)
	}
	defer cursor.Close(ctx)

	conversations := []models.Conversation{}
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}

	return conversations, nil
}
