package domain

import "time"

type User struct {
	ID              string    `bson:"_id" json:"uid"`
	Email           string    `bson:"email" json:"email"`
	ProfileImageURL string    `bson:"profile_image_url" json:"profile_image_url"`
	PasswordHash    string    `bson:"password_hash" json:"-"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}

// RecentActivity is the denormalized "latest message per partner" row that
// drives the conversation list. It carries enough of the partner's identity
// to render without a second lookup.
type RecentActivity struct {
	OwnerID         string    `bson:"owner_id" json:"-"`
	PartnerID       string    `bson:"partner_id" json:"partner_id"`
	PartnerEmail    string    `bson:"partner_email" json:"partner_email"`
	PartnerImageURL string    `bson:"partner_image_url" json:"partner_image_url"`
	Text            string    `bson:"text" json:"text"`
	Timestamp       time.Time `bson:"timestamp" json:"timestamp"`
	Seq             uint64    `bson:"seq" json:"seq"`
}

func (r RecentActivity) Cursor() Cursor {
	return Cursor{Timestamp: r.Timestamp, Seq: r.Seq}
}
