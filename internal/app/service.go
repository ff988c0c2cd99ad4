package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"pulpito/api/internal/archive"
	"pulpito/api/internal/auth"
	"pulpito/api/internal/bible"
	"pulpito/api/internal/canvas"
	"pulpito/api/internal/config"
	"pulpito/api/internal/email"
	"pulpito/api/internal/export"
	"pulpito/api/internal/history"
	"pulpito/api/internal/roles"
	"pulpito/api/internal/search"
	"pulpito/api/internal/session"
	"pulpito/api/internal/store"
	"pulpito/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	EnsureUserByName(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	ListSermons(context.Context, string) ([]store.Sermon, error)
	GetSermon(context.Context, string) (store.Sermon, error)
	InsertSermon(context.Context, store.Sermon) error
	UpdateSermonMeta(context.Context, string, string, string, string) error
	DeleteSermon(context.Context, string) error
	ListBibleSources(context.Context, string) ([]store.BibleSource, error)
	ReplaceBibleSources(context.Context, string, []store.BibleSource) error
	ListBlocks(context.Context, string) ([]store.Block, error)
	ReplaceBlocks(context.Context, string, []store.Block, *int64) (int64, error)
	SetBlockPreached(context.Context, string, string, bool) error
	InsertMinistryHistory(context.Context, store.MinistryHistoryEntry) error
	ListMinistryHistory(context.Context, string) ([]store.MinistryHistoryEntry, error)
	InsertCommunity(context.Context, store.Community) error
	GetCommunity(context.Context, string) (store.Community, error)
	GetCommunityByInviteCode(context.Context, string) (store.Community, error)
	ListCommunitiesForUser(context.Context, string) ([]store.Community, error)
	InsertMembership(context.Context, string, string, string) error
	GetMemberRole(context.Context, string, string) (string, error)
	InsertPost(context.Context, store.CommunityPost) error
	GetPost(context.Context, string, string) (store.CommunityPost, error)
	ListFeed(context.Context, string) ([]store.CommunityPost, error)
	AcknowledgePost(context.Context, string, string) error
	InsertEvent(context.Context, store.CommunityEvent) error
	ListEvents(context.Context, string) ([]store.CommunityEvent, error)
	ListMembers(context.Context, string) ([]store.CommunityMember, error)
	InsertInsight(context.Context, store.GlobalInsight) error
	ListInsights(context.Context, string) ([]store.GlobalInsight, error)
	GetInsight(context.Context, string) (store.GlobalInsight, error)
	UpdateInsight(context.Context, store.GlobalInsight) error
	DeleteInsight(context.Context, string) error
	InsertShareLink(context.Context, store.ShareLink) error
	GetShareLink(context.Context, string) (store.ShareLink, error)
	RevokeShareLinks(context.Context, string) error
	Ping(ctx context.Context) error
}

// refreshStore is where refresh tokens live. Redis when available, the
// refresh_sessions table otherwise.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// pgRefreshStore adapts the Postgres refresh table to the session-store
// shape used when Redis is not configured.
type pgRefreshStore struct {
	store dataStore
}

func (p pgRefreshStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return p.store.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (p pgRefreshStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return p.store.LookupRefreshSession(ctx, tokenHash)
}

func (p pgRefreshStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return p.store.RevokeRefreshSession(ctx, tokenHash)
}

type historyService interface {
	RecordSync(sermonID string, snapshot history.Snapshot, author, message string) (store.CommitInfo, error)
	History(sermonID string, limit int) ([]store.CommitInfo, error)
	SnapshotByHash(sermonID, hash string) (history.Snapshot, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshStore
	bible    *bible.Service
	history  historyService
	search   *search.Service
	archive  *archive.Service
	email    *email.Service
	export   *export.Service
}

func New(
	cfg config.Config,
	dataStore *store.PostgresStore,
	sessions *session.RedisStore,
	bibleSvc *bible.Service,
	historySvc *history.Service,
	searchSvc *search.Service,
	archiveSvc *archive.Service,
	emailSvc *email.Service,
	exportSvc *export.Service,
) *Service {
	svc := &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: pgRefreshStore{store: dataStore},
		bible:    bibleSvc,
		history:  historySvc,
		search:   searchSvc,
		archive:  archiveSvc,
		email:    emailSvc,
		export:   exportSvc,
	}
	if sessions != nil {
		svc.sessions = sessions
	}
	return svc
}

// Bootstrap seeds a demo account with one sermon and one community so a
// fresh install has something on screen.
func (s *Service) Bootstrap(ctx context.Context) error {
	owner, err := s.store.EnsureUserByName(ctx, "Lucas")
	if err != nil {
		return err
	}

	existing, err := s.store.ListSermons(ctx, owner.ID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	sermon := store.Sermon{
		ID:        util.NewID("ser"),
		Title:     "A Graça Abundante",
		Category:  "Evangelística",
		Status:    store.SermonDraft,
		CreatedBy: owner.ID,
	}
	if err := s.store.InsertSermon(ctx, sermon); err != nil {
		return err
	}

	if err := s.store.ReplaceBibleSources(ctx, sermon.ID, []store.BibleSource{
		{
			ID:        util.NewID("src"),
			SermonID:  sermon.ID,
			Reference: "Efésios 2:8-9",
			Text:      "Porque pela graça sois salvos, por meio da fé, e isto não vem de vós, é dom de Deus.",
			Position:  0,
		},
	}); err != nil {
		return err
	}

	anchorID := util.NewBlockID()
	blocks := []store.Block{
		{
			ID:      anchorID,
			Type:    canvas.BlockTypeTextoBase,
			Content: "Porque pela graça sois salvos, por meio da fé",
			Order:   0,
			Metadata: store.BlockMetadata{
				Reference: "Efésios 2:8",
			},
		},
		{
			ID:      util.NewBlockID(),
			Type:    canvas.BlockTypeExegese,
			Content: "A salvação é iniciativa de Deus, não conquista humana.",
			Order:   1,
			Metadata: store.BlockMetadata{
				ParentVerseID: anchorID,
				InsightStatus: store.InsightCompleted,
			},
		},
	}
	revision, err := s.store.ReplaceBlocks(ctx, sermon.ID, blocks, nil)
	if err != nil {
		return err
	}
	if _, err := s.history.RecordSync(sermon.ID, history.Snapshot{Revision: revision, Blocks: blocks}, owner.DisplayName, "Seed canvas"); err != nil {
		return err
	}

	community := store.Community{
		ID:          util.NewID("com"),
		Name:        "Comunidade Vida",
		Description: "Pastores e pregadores compartilhando esboços e eventos.",
		InviteCode:  util.NewInviteCode(),
		CreatedBy:   owner.ID,
	}
	if err := s.store.InsertCommunity(ctx, community); err != nil {
		return err
	}

	if s.search != nil {
		s.search.IndexSermon(search.SermonRecord{
			ID:       sermon.ID,
			Title:    sermon.Title,
			Category: sermon.Category,
			Status:   sermon.Status,
			OwnerID:  owner.ID,
		})
	}
	return nil
}

func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "Visitante"
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}

	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// memberRole resolves the caller's role in a community, failing with 403
// when they are not a member at all.
func (s *Service) memberRole(ctx context.Context, communityID, userID string) (roles.Role, error) {
	role, err := s.store.GetMemberRole(ctx, communityID, userID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", domainError(http.StatusForbidden, "FORBIDDEN", "Você não participa desta comunidade", nil)
	}
	return roles.Normalize(role), nil
}

func (s *Service) requireCommunityAction(ctx context.Context, communityID, userID string, action roles.Action) (roles.Role, error) {
	role, err := s.memberRole(ctx, communityID, userID)
	if err != nil {
		return "", err
	}
	if !roles.Can(role, action) {
		return "", domainError(http.StatusForbidden, "FORBIDDEN", "Apenas líderes podem executar esta ação", nil)
	}
	return role, nil
}
