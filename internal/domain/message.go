package domain

import "time"

// Cursor marks a position inside a conversation's total order. Timestamps
// alone are not unique; Seq breaks ties and is strictly increasing per
// conversation.
type Cursor struct {
	Timestamp time.Time `json:"ts"`
	Seq       uint64    `json:"seq"`
}

func (c Cursor) IsZero() bool {
	return c.Timestamp.IsZero() && c.Seq == 0
}

func (c Cursor) After(o Cursor) bool {
	if c.Timestamp.Equal(o.Timestamp) {
		return c.Seq > o.Seq
	}
	return c.Timestamp.After(o.Timestamp)
}

type Message struct {
	ID        string    `bson:"message_id" json:"id"`
	FromID    string    `bson:"from_id" json:"from_id"`
	ToID      string    `bson:"to_id" json:"to_id"`
	Text      string    `bson:"text" json:"text"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Seq       uint64    `bson:"seq" json:"seq"`
}

func (m Message) Cursor() Cursor {
	return Cursor{Timestamp: m.Timestamp, Seq: m.Seq}
}
