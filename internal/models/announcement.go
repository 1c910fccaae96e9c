package models

import "time"

// Announcement is a platform-wide notice stored in MongoDB. Announcements are
// merged into each user's notification feed and email digests at read time;
// they are never persisted per user and carry no viewed state.
type Announcement struct {
	EntityID         int64     `json:"entityId" bson:"entity_id"`
	Title            string    `json:"title" bson:"title"`
	ShortDescription string    `json:"shortDescription" bson:"short_description"`
	LongDescription  string    `json:"longDescription,omitempty" bson:"long_description,omitempty"`
	DatePublished    time.Time `json:"datePublished" bson:"date_published"`
}
