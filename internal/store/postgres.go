package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStaleRevision is returned when a canvas sync carries a base
	// revision that no longer matches the sermon's current revision.
	ErrStaleRevision = errors.New("stale canvas revision")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) EnsureUserByName(ctx context.Context, name string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `SELECT id, display_name FROM users WHERE display_name = $1`, name).
		Scan(&user.ID, &user.DisplayName)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (display_name)
		VALUES ($1)
		RETURNING id, display_name
	`, name).Scan(&user.ID, &user.DisplayName)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `SELECT id, display_name FROM users WHERE id=$1`, userID).
		Scan(&user.ID, &user.DisplayName)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ── Refresh sessions (Postgres fallback when Redis is not configured) ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ── Sermons ──

func (s *PostgresStore) ListSermons(ctx context.Context, userID string) ([]Sermon, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, category, status, revision, created_by, created_at, updated_at
		FROM sermons
		WHERE created_by=$1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sermons: %w", err)
	}
	defer rows.Close()

	items := make([]Sermon, 0)
	for rows.Next() {
		var item Sermon
		if err := rows.Scan(&item.ID, &item.Title, &item.Category, &item.Status, &item.Revision, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sermon: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sermons: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSermon(ctx context.Context, sermonID string) (Sermon, error) {
	var item Sermon
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, category, status, revision, created_by, created_at, updated_at
		FROM sermons
		WHERE id=$1
	`, sermonID).Scan(&item.ID, &item.Title, &item.Category, &item.Status, &item.Revision, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Sermon{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertSermon(ctx context.Context, item Sermon) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sermons (id, title, category, status, created_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.Title, item.Category, item.Status, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert sermon: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSermonMeta(ctx context.Context, sermonID, title, category, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sermons
		SET title=$2, category=$3, status=$4, updated_at=NOW()
		WHERE id=$1
	`, sermonID, title, category, status)
	if err != nil {
		return fmt.Errorf("update sermon meta: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteSermon(ctx context.Context, sermonID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sermons WHERE id=$1`, sermonID)
	if err != nil {
		return fmt.Errorf("delete sermon: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ── Bible sources ──

func (s *PostgresStore) ListBibleSources(ctx context.Context, sermonID string) ([]BibleSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sermon_id, reference, text, reader_state, position
		FROM bible_sources
		WHERE sermon_id=$1
		ORDER BY position
	`, sermonID)
	if err != nil {
		return nil, fmt.Errorf("list bible sources: %w", err)
	}
	defer rows.Close()

	items := make([]BibleSource, 0)
	for rows.Next() {
		var item BibleSource
		var readerState []byte
		if err := rows.Scan(&item.ID, &item.SermonID, &item.Reference, &item.Text, &readerState, &item.Position); err != nil {
			return nil, fmt.Errorf("scan bible source: %w", err)
		}
		if len(readerState) > 0 {
			item.ReaderState = json.RawMessage(readerState)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bible sources: %w", err)
	}
	return items, nil
}

// ReplaceBibleSources swaps the whole source list for a sermon in one
// transaction, mirroring the wholesale mutation model of the canvas.
func (s *PostgresStore) ReplaceBibleSources(ctx context.Context, sermonID string, sources []BibleSource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bible sources tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bible_sources WHERE sermon_id=$1`, sermonID); err != nil {
		return fmt.Errorf("delete bible sources: %w", err)
	}
	for i, source := range sources {
		var readerState any
		if len(source.ReaderState) > 0 {
			readerState = []byte(source.ReaderState)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bible_sources (id, sermon_id, reference, text, reader_state, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, source.ID, sermonID, source.Reference, source.Text, readerState, i); err != nil {
			return fmt.Errorf("insert bible source: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bible sources: %w", err)
	}
	return nil
}

// ── Blocks ──

func (s *PostgresStore) ListBlocks(ctx context.Context, sermonID string) ([]Block, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sermon_id, type, content, block_order, position_x, position_y, preached, metadata
		FROM blocks
		WHERE sermon_id=$1
		ORDER BY block_order, id
	`, sermonID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	items := make([]Block, 0)
	for rows.Next() {
		item, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return items, nil
}

func scanBlock(rows *sql.Rows) (Block, error) {
	var item Block
	var metadata []byte
	if err := rows.Scan(&item.ID, &item.SermonID, &item.Type, &item.Content, &item.Order, &item.PositionX, &item.PositionY, &item.Preached, &metadata); err != nil {
		return Block{}, fmt.Errorf("scan block: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &item.Metadata); err != nil {
			return Block{}, fmt.Errorf("decode block metadata: %w", err)
		}
	}
	return item, nil
}

// ReplaceBlocks swaps the whole block set for a sermon and bumps its
// revision, all inside one transaction so a crash can never leave the
// sermon with zero blocks. Client-minted block ids are preserved so
// parentVerseId references stay valid across syncs. When baseRevision is
// non-nil and no longer current, ErrStaleRevision is returned and nothing
// is written.
func (s *PostgresStore) ReplaceBlocks(ctx context.Context, sermonID string, blocks []Block, baseRevision *int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin blocks tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM sermons WHERE id=$1 FOR UPDATE`, sermonID).Scan(&current)
	if err != nil {
		return 0, err
	}
	if baseRevision != nil && *baseRevision != current {
		return current, ErrStaleRevision
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE sermon_id=$1`, sermonID); err != nil {
		return 0, fmt.Errorf("delete blocks: %w", err)
	}

	for i, block := range blocks {
		metadata, err := json.Marshal(block.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encode block metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO blocks (id, sermon_id, type, content, block_order, position_x, position_y, preached, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, block.ID, sermonID, block.Type, block.Content, i, block.PositionX, block.PositionY, block.Preached, metadata); err != nil {
			return 0, fmt.Errorf("insert block %s: %w", block.ID, err)
		}
	}

	next := current + 1
	if _, err := tx.ExecContext(ctx, `UPDATE sermons SET revision=$2, updated_at=NOW() WHERE id=$1`, sermonID, next); err != nil {
		return 0, fmt.Errorf("bump sermon revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit blocks: %w", err)
	}
	return next, nil
}

func (s *PostgresStore) SetBlockPreached(ctx context.Context, sermonID, blockID string, preached bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE blocks SET preached=$3 WHERE sermon_id=$1 AND id=$2
	`, sermonID, blockID, preached)
	if err != nil {
		return fmt.Errorf("set block preached: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ── Ministry history ──

func (s *PostgresStore) InsertMinistryHistory(ctx context.Context, entry MinistryHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ministry_history (id, sermon_id, preached_at, location, notes)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.ID, entry.SermonID, entry.PreachedAt, entry.Location, entry.Notes)
	if err != nil {
		return fmt.Errorf("insert ministry history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMinistryHistory(ctx context.Context, sermonID string) ([]MinistryHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sermon_id, preached_at, location, notes, created_at
		FROM ministry_history
		WHERE sermon_id=$1
		ORDER BY preached_at DESC
	`, sermonID)
	if err != nil {
		return nil, fmt.Errorf("list ministry history: %w", err)
	}
	defer rows.Close()

	items := make([]MinistryHistoryEntry, 0)
	for rows.Next() {
		var item MinistryHistoryEntry
		if err := rows.Scan(&item.ID, &item.SermonID, &item.PreachedAt, &item.Location, &item.Notes, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ministry history: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ministry history: %w", err)
	}
	return items, nil
}

// ── Communities ──

func (s *PostgresStore) InsertCommunity(ctx context.Context, community Community) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin community tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO communities (id, name, description, invite_code, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, community.ID, community.Name, community.Description, community.InviteCode, community.CreatedBy); err != nil {
		return fmt.Errorf("insert community: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO community_members (community_id, user_id, role)
		VALUES ($1, $2, $3)
	`, community.ID, community.CreatedBy, RoleLeader); err != nil {
		return fmt.Errorf("insert leader membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit community: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCommunity(ctx context.Context, communityID string) (Community, error) {
	var item Community
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, invite_code, created_by, created_at
		FROM communities WHERE id=$1
	`, communityID).Scan(&item.ID, &item.Name, &item.Description, &item.InviteCode, &item.CreatedBy, &item.CreatedAt)
	if err != nil {
		return Community{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetCommunityByInviteCode(ctx context.Context, inviteCode string) (Community, error) {
	var item Community
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, invite_code, created_by, created_at
		FROM communities WHERE invite_code=$1
	`, inviteCode).Scan(&item.ID, &item.Name, &item.Description, &item.InviteCode, &item.CreatedBy, &item.CreatedAt)
	if err != nil {
		return Community{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListCommunitiesForUser(ctx context.Context, userID string) ([]Community, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, c.invite_code, c.created_by, c.created_at
		FROM communities c
		JOIN community_members cm ON cm.community_id = c.id
		WHERE cm.user_id=$1
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	defer rows.Close()

	items := make([]Community, 0)
	for rows.Next() {
		var item Community
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.InviteCode, &item.CreatedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan community: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate communities: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertMembership(ctx context.Context, communityID, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO community_members (community_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (community_id, user_id) DO NOTHING
	`, communityID, userID, role)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// GetMemberRole returns the member's role, or "" when the user does not
// belong to the community.
func (s *PostgresStore) GetMemberRole(ctx context.Context, communityID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM community_members WHERE community_id=$1 AND user_id=$2
	`, communityID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read member role: %w", err)
	}
	return role, nil
}

// ── Posts ──

func (s *PostgresStore) InsertPost(ctx context.Context, post CommunityPost) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO community_posts (id, community_id, author_id, content, sermon_id, event_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, post.ID, post.CommunityID, post.AuthorID, post.Content, post.SermonID, post.EventID)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPost(ctx context.Context, communityID, postID string) (CommunityPost, error) {
	var item CommunityPost
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.community_id, p.author_id, u.display_name, p.content, p.sermon_id, p.event_id, p.created_at
		FROM community_posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.community_id=$1 AND p.id=$2
	`, communityID, postID).Scan(&item.ID, &item.CommunityID, &item.AuthorID, &item.AuthorName, &item.Content, &item.SermonID, &item.EventID, &item.CreatedAt)
	if err != nil {
		return CommunityPost{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListFeed(ctx context.Context, communityID string) ([]CommunityPost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.community_id, p.author_id, u.display_name, p.content, p.sermon_id, p.event_id, p.created_at
		FROM community_posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.community_id=$1
		ORDER BY p.created_at DESC
	`, communityID)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	defer rows.Close()

	items := make([]CommunityPost, 0)
	byID := make(map[string]int)
	for rows.Next() {
		var item CommunityPost
		if err := rows.Scan(&item.ID, &item.CommunityID, &item.AuthorID, &item.AuthorName, &item.Content, &item.SermonID, &item.EventID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		item.AckUserIDs = []string{}
		byID[item.ID] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	ackRows, err := s.db.QueryContext(ctx, `
		SELECT a.post_id, a.user_id
		FROM post_acknowledgments a
		JOIN community_posts p ON p.id = a.post_id
		WHERE p.community_id=$1
		ORDER BY a.acked_at
	`, communityID)
	if err != nil {
		return nil, fmt.Errorf("list acknowledgments: %w", err)
	}
	defer ackRows.Close()
	for ackRows.Next() {
		var postID, userID string
		if err := ackRows.Scan(&postID, &userID); err != nil {
			return nil, fmt.Errorf("scan acknowledgment: %w", err)
		}
		if idx, ok := byID[postID]; ok {
			items[idx].AckUserIDs = append(items[idx].AckUserIDs, userID)
		}
	}
	if err := ackRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate acknowledgments: %w", err)
	}
	return items, nil
}

// AcknowledgePost appends an acknowledgment row. The list is append-only;
// duplicates are allowed at the data layer.
func (s *PostgresStore) AcknowledgePost(ctx context.Context, postID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_acknowledgments (post_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`, postID, userID)
	if err != nil {
		return fmt.Errorf("acknowledge post: %w", err)
	}
	return nil
}

// ── Events ──

func (s *PostgresStore) InsertEvent(ctx context.Context, event CommunityEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO community_events (id, community_id, title, description, starts_at, location, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.CommunityID, event.Title, event.Description, event.StartsAt, event.Location, event.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, communityID string) ([]CommunityEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, community_id, title, description, starts_at, location, created_by, created_at
		FROM community_events
		WHERE community_id=$1
		ORDER BY starts_at
	`, communityID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := make([]CommunityEvent, 0)
	for rows.Next() {
		var item CommunityEvent
		if err := rows.Scan(&item.ID, &item.CommunityID, &item.Title, &item.Description, &item.StartsAt, &item.Location, &item.CreatedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, communityID string) ([]CommunityMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cm.community_id, cm.user_id, u.display_name, cm.role, cm.joined_at
		FROM community_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.community_id=$1
		ORDER BY cm.joined_at
	`, communityID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]CommunityMember, 0)
	for rows.Next() {
		var item CommunityMember
		if err := rows.Scan(&item.CommunityID, &item.UserID, &item.UserName, &item.Role, &item.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

// ── Insights ──

func (s *PostgresStore) InsertInsight(ctx context.Context, insight GlobalInsight) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO global_insights (id, user_id, reference, verse_text, revelation, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, insight.ID, insight.UserID, insight.Reference, insight.VerseText, insight.Revelation, insight.Status)
	if err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListInsights(ctx context.Context, userID string) ([]GlobalInsight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, reference, verse_text, revelation, status, created_at, updated_at
		FROM global_insights
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	items := make([]GlobalInsight, 0)
	for rows.Next() {
		var item GlobalInsight
		if err := rows.Scan(&item.ID, &item.UserID, &item.Reference, &item.VerseText, &item.Revelation, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate insights: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetInsight(ctx context.Context, insightID string) (GlobalInsight, error) {
	var item GlobalInsight
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, reference, verse_text, revelation, status, created_at, updated_at
		FROM global_insights WHERE id=$1
	`, insightID).Scan(&item.ID, &item.UserID, &item.Reference, &item.VerseText, &item.Revelation, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return GlobalInsight{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateInsight(ctx context.Context, insight GlobalInsight) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE global_insights
		SET reference=$2, verse_text=$3, revelation=$4, status=$5, updated_at=NOW()
		WHERE id=$1
	`, insight.ID, insight.Reference, insight.VerseText, insight.Revelation, insight.Status)
	if err != nil {
		return fmt.Errorf("update insight: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteInsight(ctx context.Context, insightID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM global_insights WHERE id=$1`, insightID)
	if err != nil {
		return fmt.Errorf("delete insight: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ── Share links ──

func (s *PostgresStore) InsertShareLink(ctx context.Context, link ShareLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO share_links (token, sermon_id, password_hash, created_by)
		VALUES ($1, $2, $3, $4)
	`, link.Token, link.SermonID, link.PasswordHash, link.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert share link: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetShareLink(ctx context.Context, token string) (ShareLink, error) {
	var item ShareLink
	err := s.db.QueryRowContext(ctx, `
		SELECT token, sermon_id, password_hash, created_by, created_at, revoked_at
		FROM share_links WHERE token=$1
	`, token).Scan(&item.Token, &item.SermonID, &item.PasswordHash, &item.CreatedBy, &item.CreatedAt, &item.RevokedAt)
	if err != nil {
		return ShareLink{}, err
	}
	return item, nil
}

func (s *PostgresStore) RevokeShareLinks(ctx context.Context, sermonID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE share_links SET revoked_at=NOW() WHERE sermon_id=$1 AND revoked_at IS NULL
	`, sermonID)
	if err != nil {
		return fmt.Errorf("revoke share links: %w", err)
	}
	return nil
}
