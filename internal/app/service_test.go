package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"pulpito/api/internal/config"
	"pulpito/api/internal/history"
	"pulpito/api/internal/store"
)

type fakeStore struct {
	ensureUserByNameFn    func(context.Context, string) (store.User, error)
	getUserByIDFn         func(context.Context, string) (store.User, error)
	getSermonFn           func(context.Context, string) (store.Sermon, error)
	insertSermonFn        func(context.Context, store.Sermon) error
	updateSermonMetaFn    func(context.Context, string, string, string, string) error
	listBibleSourcesFn    func(context.Context, string) ([]store.BibleSource, error)
	listBlocksFn          func(context.Context, string) ([]store.Block, error)
	replaceBlocksFn       func(context.Context, string, []store.Block, *int64) (int64, error)
	setBlockPreachedFn    func(context.Context, string, string, bool) error
	getMemberRoleFn       func(context.Context, string, string) (string, error)
	insertEventFn         func(context.Context, store.CommunityEvent) error
	insertShareLinkFn     func(context.Context, store.ShareLink) error
	getShareLinkFn        func(context.Context, string) (store.ShareLink, error)
	getInsightFn          func(context.Context, string) (store.GlobalInsight, error)
	getPostFn             func(context.Context, string, string) (store.CommunityPost, error)
	acknowledgePostFn     func(context.Context, string, string) error
	insertMembershipFn    func(context.Context, string, string, string) error
	getCommunityByCodeFn  func(context.Context, string) (store.Community, error)
	listCommunitiesFn     func(context.Context, string) ([]store.Community, error)
	insertMinistryFn      func(context.Context, store.MinistryHistoryEntry) error
	listMinistryFn        func(context.Context, string) ([]store.MinistryHistoryEntry, error)
	listEventsFn          func(context.Context, string) ([]store.CommunityEvent, error)
	lookupRefreshFn       func(context.Context, string) (store.User, error)
	revokeShareLinksFn    func(context.Context, string) error
	replaceBibleSourcesFn func(context.Context, string, []store.BibleSource) error
}

func (f *fakeStore) EnsureUserByName(ctx context.Context, name string) (store.User, error) {
	if f.ensureUserByNameFn != nil {
		return f.ensureUserByNameFn(ctx, name)
	}
	return store.User{ID: "usr_1", DisplayName: name}, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID, DisplayName: "Lucas"}, nil
}

func (f *fakeStore) SaveRefreshSession(context.Context, string, string, time.Time) error { return nil }
func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if f.lookupRefreshFn != nil {
		return f.lookupRefreshFn(ctx, tokenHash)
	}
	return store.User{ID: "usr_1", DisplayName: "Lucas"}, nil
}
func (f *fakeStore) RevokeRefreshSession(context.Context, string) error { return nil }

func (f *fakeStore) ListSermons(context.Context, string) ([]store.Sermon, error) { return nil, nil }
func (f *fakeStore) GetSermon(ctx context.Context, sermonID string) (store.Sermon, error) {
	if f.getSermonFn != nil {
		return f.getSermonFn(ctx, sermonID)
	}
	return store.Sermon{ID: sermonID, Title: "A Graça Abundante", Status: store.SermonDraft, CreatedBy: "usr_1"}, nil
}
func (f *fakeStore) InsertSermon(ctx context.Context, item store.Sermon) error {
	if f.insertSermonFn != nil {
		return f.insertSermonFn(ctx, item)
	}
	return nil
}
func (f *fakeStore) UpdateSermonMeta(ctx context.Context, sermonID, title, category, status string) error {
	if f.updateSermonMetaFn != nil {
		return f.updateSermonMetaFn(ctx, sermonID, title, category, status)
	}
	return nil
}
func (f *fakeStore) DeleteSermon(context.Context, string) error { return nil }

func (f *fakeStore) ListBibleSources(ctx context.Context, sermonID string) ([]store.BibleSource, error) {
	if f.listBibleSourcesFn != nil {
		return f.listBibleSourcesFn(ctx, sermonID)
	}
	return nil, nil
}
func (f *fakeStore) ReplaceBibleSources(ctx context.Context, sermonID string, sources []store.BibleSource) error {
	if f.replaceBibleSourcesFn != nil {
		return f.replaceBibleSourcesFn(ctx, sermonID, sources)
	}
	return nil
}

func (f *fakeStore) ListBlocks(ctx context.Context, sermonID string) ([]store.Block, error) {
	if f.listBlocksFn != nil {
		return f.listBlocksFn(ctx, sermonID)
	}
	return nil, nil
}
func (f *fakeStore) ReplaceBlocks(ctx context.Context, sermonID string, blocks []store.Block, baseRevision *int64) (int64, error) {
	if f.replaceBlocksFn != nil {
		return f.replaceBlocksFn(ctx, sermonID, blocks, baseRevision)
	}
	return 1, nil
}
func (f *fakeStore) SetBlockPreached(ctx context.Context, sermonID, blockID string, preached bool) error {
	if f.setBlockPreachedFn != nil {
		return f.setBlockPreachedFn(ctx, sermonID, blockID, preached)
	}
	return nil
}

func (f *fakeStore) InsertMinistryHistory(ctx context.Context, entry store.MinistryHistoryEntry) error {
	if f.insertMinistryFn != nil {
		return f.insertMinistryFn(ctx, entry)
	}
	return nil
}
func (f *fakeStore) ListMinistryHistory(ctx context.Context, sermonID string) ([]store.MinistryHistoryEntry, error) {
	if f.listMinistryFn != nil {
		return f.listMinistryFn(ctx, sermonID)
	}
	return nil, nil
}

func (f *fakeStore) InsertCommunity(context.Context, store.Community) error { return nil }
func (f *fakeStore) GetCommunity(ctx context.Context, communityID string) (store.Community, error) {
	return store.Community{ID: communityID, Name: "Comunidade Vida", InviteCode: "ABC123", CreatedBy: "usr_1"}, nil
}
func (f *fakeStore) GetCommunityByInviteCode(ctx context.Context, code string) (store.Community, error) {
	if f.getCommunityByCodeFn != nil {
		return f.getCommunityByCodeFn(ctx, code)
	}
	return store.Community{}, sql.ErrNoRows
}
func (f *fakeStore) ListCommunitiesForUser(ctx context.Context, userID string) ([]store.Community, error) {
	if f.listCommunitiesFn != nil {
		return f.listCommunitiesFn(ctx, userID)
	}
	return nil, nil
}
func (f *fakeStore) InsertMembership(ctx context.Context, communityID, userID, role string) error {
	if f.insertMembershipFn != nil {
		return f.insertMembershipFn(ctx, communityID, userID, role)
	}
	return nil
}
func (f *fakeStore) GetMemberRole(ctx context.Context, communityID, userID string) (string, error) {
	if f.getMemberRoleFn != nil {
		return f.getMemberRoleFn(ctx, communityID, userID)
	}
	return store.RoleMember, nil
}

func (f *fakeStore) InsertPost(context.Context, store.CommunityPost) error { return nil }
func (f *fakeStore) GetPost(ctx context.Context, communityID, postID string) (store.CommunityPost, error) {
	if f.getPostFn != nil {
		return f.getPostFn(ctx, communityID, postID)
	}
	return store.CommunityPost{ID: postID, CommunityID: communityID, AckUserIDs: []string{}}, nil
}
func (f *fakeStore) ListFeed(context.Context, string) ([]store.CommunityPost, error) {
	return nil, nil
}
func (f *fakeStore) AcknowledgePost(ctx context.Context, postID, userID string) error {
	if f.acknowledgePostFn != nil {
		return f.acknowledgePostFn(ctx, postID, userID)
	}
	return nil
}

func (f *fakeStore) InsertEvent(ctx context.Context, event store.CommunityEvent) error {
	if f.insertEventFn != nil {
		return f.insertEventFn(ctx, event)
	}
	return nil
}
func (f *fakeStore) ListEvents(ctx context.Context, communityID string) ([]store.CommunityEvent, error) {
	if f.listEventsFn != nil {
		return f.listEventsFn(ctx, communityID)
	}
	return nil, nil
}
func (f *fakeStore) ListMembers(context.Context, string) ([]store.CommunityMember, error) {
	return nil, nil
}

func (f *fakeStore) InsertInsight(context.Context, store.GlobalInsight) error { return nil }
func (f *fakeStore) ListInsights(context.Context, string) ([]store.GlobalInsight, error) {
	return nil, nil
}
func (f *fakeStore) GetInsight(ctx context.Context, insightID string) (store.GlobalInsight, error) {
	if f.getInsightFn != nil {
		return f.getInsightFn(ctx, insightID)
	}
	return store.GlobalInsight{ID: insightID, UserID: "usr_1", Status: store.InsightPending}, nil
}
func (f *fakeStore) UpdateInsight(context.Context, store.GlobalInsight) error { return nil }
func (f *fakeStore) DeleteInsight(context.Context, string) error              { return nil }

func (f *fakeStore) InsertShareLink(ctx context.Context, link store.ShareLink) error {
	if f.insertShareLinkFn != nil {
		return f.insertShareLinkFn(ctx, link)
	}
	return nil
}
func (f *fakeStore) GetShareLink(ctx context.Context, token string) (store.ShareLink, error) {
	if f.getShareLinkFn != nil {
		return f.getShareLinkFn(ctx, token)
	}
	return store.ShareLink{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeShareLinks(ctx context.Context, sermonID string) error {
	if f.revokeShareLinksFn != nil {
		return f.revokeShareLinksFn(ctx, sermonID)
	}
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

type fakeHistory struct {
	recordSyncFn func(string, history.Snapshot, string, string) (store.CommitInfo, error)
	historyFn    func(string, int) ([]store.CommitInfo, error)
	snapshotFn   func(string, string) (history.Snapshot, error)
}

func (f *fakeHistory) RecordSync(sermonID string, snapshot history.Snapshot, author, message string) (store.CommitInfo, error) {
	if f.recordSyncFn != nil {
		return f.recordSyncFn(sermonID, snapshot, author, message)
	}
	return store.CommitInfo{Hash: "abc1234", Author: author, Message: message, CreatedAt: time.Now()}, nil
}
func (f *fakeHistory) History(sermonID string, limit int) ([]store.CommitInfo, error) {
	if f.historyFn != nil {
		return f.historyFn(sermonID, limit)
	}
	return []store.CommitInfo{{Hash: "abc1234", Message: "Sync canvas (2 blocos)", Author: "Lucas", CreatedAt: time.Now()}}, nil
}
func (f *fakeHistory) SnapshotByHash(sermonID, hash string) (history.Snapshot, error) {
	if f.snapshotFn != nil {
		return f.snapshotFn(sermonID, hash)
	}
	return history.Snapshot{}, errors.New("not found")
}

func newTestService(fs *fakeStore) *Service {
	svc := &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		store:   fs,
		history: &fakeHistory{},
	}
	svc.sessions = pgRefreshStore{store: fs}
	return svc
}

func testSession() Session {
	return Session{UserID: "usr_1", UserName: "Lucas"}
}

func TestLoginDefaultsBlankName(t *testing.T) {
	var ensured string
	fs := &fakeStore{
		ensureUserByNameFn: func(_ context.Context, name string) (store.User, error) {
			ensured = name
			return store.User{ID: "usr_1", DisplayName: name}, nil
		},
	}
	svc := newTestService(fs)

	userSession, err := svc.Login(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if ensured != "Visitante" {
		t.Fatalf("expected blank name to default to Visitante, got %q", ensured)
	}
	if userSession.Token == "" || userSession.RefreshToken == "" {
		t.Fatalf("expected both tokens to be issued")
	}
}

func TestSyncSermonPreservesClientBlockIDs(t *testing.T) {
	var replaced []store.Block
	fs := &fakeStore{
		replaceBlocksFn: func(_ context.Context, _ string, blocks []store.Block, baseRevision *int64) (int64, error) {
			if baseRevision != nil {
				t.Fatalf("expected nil baseRevision, got %d", *baseRevision)
			}
			replaced = blocks
			return 3, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.SyncSermon(context.Background(), testSession(), "ser_1", SyncInput{
		Blocks: []store.Block{
			{ID: "blk_b", Type: "TEXTO_BASE", Content: "v8", Order: 9},
			{ID: "blk_a", Type: "EXEGESE", Content: "nota", Order: 2, Metadata: store.BlockMetadata{ParentVerseID: "blk_b"}},
		},
	})
	if err != nil {
		t.Fatalf("SyncSermon() error = %v", err)
	}

	if len(replaced) != 2 {
		t.Fatalf("expected 2 blocks persisted, got %d", len(replaced))
	}
	if replaced[0].ID != "blk_b" || replaced[1].ID != "blk_a" {
		t.Fatalf("expected client ids preserved, got %q, %q", replaced[0].ID, replaced[1].ID)
	}
	if replaced[0].Order != 0 || replaced[1].Order != 1 {
		t.Fatalf("expected order normalized to array position, got %d, %d", replaced[0].Order, replaced[1].Order)
	}
	if payload["revision"] != int64(3) {
		t.Fatalf("expected revision 3, got %v", payload["revision"])
	}
}

func TestSyncSermonRejectsDanglingParentVerse(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.SyncSermon(context.Background(), testSession(), "ser_1", SyncInput{
		Blocks: []store.Block{
			{ID: "blk_a", Type: "EXEGESE", Content: "órfão", Metadata: store.BlockMetadata{ParentVerseID: "blk_missing"}},
		},
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != 422 || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected 422 VALIDATION_ERROR, got %d %s", domainErr.Status, domainErr.Code)
	}
}

func TestSyncSermonRejectsUnknownBlockType(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.SyncSermon(context.Background(), testSession(), "ser_1", SyncInput{
		Blocks: []store.Block{{ID: "blk_a", Type: "PIADA", Content: "x"}},
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", domainErr.Code)
	}
}

func TestSyncSermonHidesForeignSermonBehindNotFound(t *testing.T) {
	fs := &fakeStore{
		getSermonFn: func(_ context.Context, sermonID string) (store.Sermon, error) {
			return store.Sermon{ID: sermonID, CreatedBy: "usr_other"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.SyncSermon(context.Background(), testSession(), "ser_1", SyncInput{})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for foreign sermon, got %v", err)
	}
}

func TestSyncCanvasPropagatesStaleRevision(t *testing.T) {
	fs := &fakeStore{
		replaceBlocksFn: func(context.Context, string, []store.Block, *int64) (int64, error) {
			return 4, store.ErrStaleRevision
		},
	}
	svc := newTestService(fs)

	base := int64(1)
	revision, err := svc.SyncCanvas(context.Background(), "ser_1", []store.Block{
		{ID: "blk_a", Type: "TEXTO_BASE", Content: "v8"},
	}, &base)
	if !errors.Is(err, store.ErrStaleRevision) {
		t.Fatalf("expected ErrStaleRevision, got %v", err)
	}
	if revision != 4 {
		t.Fatalf("expected the current server revision 4 alongside the error, got %d", revision)
	}
}

func TestUpdateSermonMetaRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(&fakeStore{})

	bad := "PUBLICADO"
	_, err := svc.UpdateSermonMeta(context.Background(), testSession(), "ser_1", SermonMetaInput{Status: &bad})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", domainErr.Code)
	}
}

func TestCreateEventRequiresLeader(t *testing.T) {
	fs := &fakeStore{
		getMemberRoleFn: func(context.Context, string, string) (string, error) {
			return store.RoleMember, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateEvent(context.Background(), testSession(), "com_1", EventInput{
		Title:    "Culto de oração",
		StartsAt: time.Now().Add(48 * time.Hour),
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != 403 {
		t.Fatalf("expected 403 for member creating event, got %d", domainErr.Status)
	}
}

func TestCreateEventAllowsLeader(t *testing.T) {
	var inserted store.CommunityEvent
	fs := &fakeStore{
		getMemberRoleFn: func(context.Context, string, string) (string, error) {
			return store.RoleLeader, nil
		},
		insertEventFn: func(_ context.Context, event store.CommunityEvent) error {
			inserted = event
			return nil
		},
	}
	svc := newTestService(fs)

	event, err := svc.CreateEvent(context.Background(), testSession(), "com_1", EventInput{
		Title:    "Culto de oração",
		StartsAt: time.Now().Add(48 * time.Hour),
		Location: "Templo central",
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if inserted.ID == "" || inserted.ID != event.ID {
		t.Fatalf("expected inserted event to be returned, got %q vs %q", inserted.ID, event.ID)
	}
	if inserted.CreatedBy != "usr_1" {
		t.Fatalf("expected creator usr_1, got %q", inserted.CreatedBy)
	}
}

func TestCreatePostRejectsForeignSermonReference(t *testing.T) {
	fs := &fakeStore{
		getMemberRoleFn: func(context.Context, string, string) (string, error) {
			return store.RoleLeader, nil
		},
		getSermonFn: func(_ context.Context, sermonID string) (store.Sermon, error) {
			return store.Sermon{ID: sermonID, CreatedBy: "usr_other"}, nil
		},
	}
	svc := newTestService(fs)

	sermonID := "ser_foreign"
	_, err := svc.CreatePost(context.Background(), testSession(), "com_1", PostInput{
		Content:  "Confira meu esboço",
		SermonID: &sermonID,
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", domainErr.Code)
	}
}

func TestUpdateInsightHidesForeignInsight(t *testing.T) {
	fs := &fakeStore{
		getInsightFn: func(_ context.Context, insightID string) (store.GlobalInsight, error) {
			return store.GlobalInsight{ID: insightID, UserID: "usr_other"}, nil
		},
	}
	svc := newTestService(fs)

	revelation := "nova revelação"
	_, err := svc.UpdateInsight(context.Background(), testSession(), "ins_1", InsightInput{Revelation: &revelation})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for foreign insight, got %v", err)
	}
}
