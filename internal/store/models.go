package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthoringSession is the durable progress record behind a pipeline session.
// It is created on the first save and updated on every save after that; the
// transient pipeline snapshot itself lives in Redis.
type AuthoringSession struct {
	ID          string
	OwnerID     string
	ContentType string
	Strategy    string
	Phase       string
	AngleTitle  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContentRecord is a saved piece of content. Saving never overwrites: each
// save inserts a new version for the session, so the rows form an append-only
// version history.
type ContentRecord struct {
	ID            string
	SessionID     string
	OwnerID       string
	ContentType   string
	Title         string
	Body          string
	OutlineJSON   string
	OutlineEdited bool
	DraftEdited   bool
	Version       int
	DisplayOrder  int
	CreatedAt     time.Time
}
