package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}

// Sermon statuses.
const (
	SermonDraft    = "DRAFT"
	SermonReady    = "READY"
	SermonArchived = "ARCHIVED"
)

type Sermon struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	Revision  int64     `json:"revision"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BibleSource is a named chunk of imported scripture text attached to a
// sermon. ReaderState carries an opaque snapshot of the reader tool.
type BibleSource struct {
	ID          string          `json:"id"`
	SermonID    string          `json:"-"`
	Reference   string          `json:"reference"`
	Text        string          `json:"text"`
	ReaderState json.RawMessage `json:"readerState,omitempty"`
	Position    int             `json:"position"`
}

// Insight lifecycle states carried in block metadata.
const (
	InsightPending   = "PENDING"
	InsightCompleted = "COMPLETED"
)

// BlockMetadata is the free-form bag carried by every block. ParentVerseID
// points at a TEXTO_BASE block id in the same sermon; BibleSourceID points
// at a bible source entry.
type BlockMetadata struct {
	Depth         int    `json:"depth,omitempty"`
	ParentVerseID string `json:"parentVerseId,omitempty"`
	BibleSourceID string `json:"bibleSourceId,omitempty"`
	Label         string `json:"label,omitempty"`
	Color         string `json:"color,omitempty"`
	Reference     string `json:"reference,omitempty"`
	VerseText     string `json:"verseText,omitempty"`
	Revelation    string `json:"revelation,omitempty"`
	InsightStatus string `json:"insightStatus,omitempty"`
}

type Block struct {
	ID        string        `json:"id"`
	SermonID  string        `json:"-"`
	Type      string        `json:"type"`
	Content   string        `json:"content"`
	Order     int           `json:"order"`
	PositionX float64       `json:"positionX"`
	PositionY float64       `json:"positionY"`
	Preached  bool          `json:"preached"`
	Metadata  BlockMetadata `json:"metadata"`
}

type MinistryHistoryEntry struct {
	ID         string    `json:"id"`
	SermonID   string    `json:"sermonId"`
	PreachedAt time.Time `json:"preachedAt"`
	Location   string    `json:"location"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Community member roles.
const (
	RoleLeader = "LEADER"
	RoleMember = "MEMBER"
)

type Community struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	InviteCode  string    `json:"inviteCode"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CommunityMember struct {
	CommunityID string    `json:"communityId"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type CommunityPost struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"communityId"`
	AuthorID    string    `json:"authorId"`
	AuthorName  string    `json:"authorName"`
	Content     string    `json:"content"`
	SermonID    *string   `json:"sermonId,omitempty"`
	EventID     *string   `json:"eventId,omitempty"`
	AckUserIDs  []string  `json:"ackUserIds"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CommunityEvent struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"communityId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"startsAt"`
	Location    string    `json:"location"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type GlobalInsight struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	Reference  string    `json:"reference"`
	VerseText  string    `json:"verseText"`
	Revelation string    `json:"revelation"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ShareLink grants anonymous read access to a sermon's pulpit view.
type ShareLink struct {
	Token        string
	SermonID     string
	PasswordHash *string
	CreatedBy    string
	CreatedAt    time.Time
	RevokedAt    *time.Time
}

type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}
