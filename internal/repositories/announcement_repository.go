package repositories

import (
	"context"
	"time"

	"github.com/wavelane/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AnnouncementRepository defines the interface for platform announcements.
type AnnouncementRepository interface {
	Create(ctx context.Context, a *models.Announcement) error
	GetSince(ctx context.Context, since time.Time, limit int) ([]models.Announcement, error)
	GetAll(ctx context.Context) ([]models.Announcement, error)
}

type announcementRepository struct {
	collection *mongo.Collection
}

// NewAnnouncementRepository creates a MongoDB-backed AnnouncementRepository.
func NewAnnouncementRepository(mongoDB *mongo.Database) AnnouncementRepository {
	return &announcementRepository{collection: mongoDB.Collection("announcements")}
}

func (r *announcementRepository) Create(ctx context.Context, a *models.Announcement) error {
	if a.DatePublished.IsZero() {
		a.DatePublished = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, a)
	return err
}

func (r *announcementRepository) GetSince(ctx context.Context, since time.Time, limit int) ([]models.Announcement, error) {
	filter := bson.M{"date_published": bson.M{"$gt": since}}
	opts := options.Find().SetSort(bson.D{{Key: "date_published", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var announcements []models.Announcement
	if err = cursor.All(ctx, &announcements); err != nil {
		return nil, err
	}
	return announcements, nil
}

func (r *announcementRepository) GetAll(ctx context.Context) ([]models.Announcement, error) {
	return r.GetSince(ctx, time.Time{}, 0)
}
