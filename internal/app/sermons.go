package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pulpito/api/internal/canvas"
	"pulpito/api/internal/export"
	"pulpito/api/internal/history"
	"pulpito/api/internal/search"
	"pulpito/api/internal/store"
	"pulpito/api/internal/util"
)

// SyncInput is the canvas state a client pushes on save. BaseRevision is
// optional; when present the sync is rejected if the server has moved on.
type SyncInput struct {
	Blocks       []store.Block       `json:"blocks"`
	Sources      []store.BibleSource `json:"sources,omitempty"`
	BaseRevision *int64              `json:"baseRevision,omitempty"`
	Message      string              `json:"message,omitempty"`
}

type SermonMetaInput struct {
	Title    *string `json:"title"`
	Category *string `json:"category"`
	Status   *string `json:"status"`
}

var allowedSermonStatuses = map[string]struct{}{
	store.SermonDraft:    {},
	store.SermonReady:    {},
	store.SermonArchived: {},
}

func (s *Service) ListSermons(ctx context.Context, session Session) ([]store.Sermon, error) {
	return s.store.ListSermons(ctx, session.UserID)
}

func (s *Service) CreateSermon(ctx context.Context, session Session, title, category string) (store.Sermon, error) {
	if title == "" {
		return store.Sermon{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Título é obrigatório", nil)
	}

	sermon := store.Sermon{
		ID:        util.NewID("ser"),
		Title:     title,
		Category:  category,
		Status:    store.SermonDraft,
		CreatedBy: session.UserID,
	}
	if err := s.store.InsertSermon(ctx, sermon); err != nil {
		return store.Sermon{}, err
	}

	s.indexSermon(sermon)
	return s.store.GetSermon(ctx, sermon.ID)
}

// ownedSermon loads a sermon and hides it behind 404 when the caller does
// not own it.
func (s *Service) ownedSermon(ctx context.Context, session Session, sermonID string) (store.Sermon, error) {
	sermon, err := s.store.GetSermon(ctx, sermonID)
	if err != nil {
		return store.Sermon{}, err
	}
	if sermon.CreatedBy != session.UserID {
		return store.Sermon{}, sql.ErrNoRows
	}
	return sermon, nil
}

// GetSermonWorkspace returns the sermon with its sources, flat block list
// and the grouped view the canvas renders. mode=pulpit switches to the
// presentation grouping, which hides pending insights.
func (s *Service) GetSermonWorkspace(ctx context.Context, session Session, sermonID, mode string) (map[string]any, error) {
	sermon, err := s.ownedSermon(ctx, session, sermonID)
	if err != nil {
		return nil, err
	}

	sources, err := s.store.ListBibleSources(ctx, sermonID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.store.ListBlocks(ctx, sermonID)
	if err != nil {
		return nil, err
	}

	groupMode := canvas.ModeEdit
	if mode == "pulpit" {
		groupMode = canvas.ModePulpit
	}

	return map[string]any{
		"sermon":       sermon,
		"sources":      sources,
		"blocks":       blocks,
		"groups":       canvas.BuildGroups(blocks, groupMode),
		"pendingInbox": canvas.PendingInbox(blocks),
	}, nil
}

func (s *Service) UpdateSermonMeta(ctx context.Context, session Session, sermonID string, input SermonMetaInput) (store.Sermon, error) {
	sermon, err := s.ownedSermon(ctx, session, sermonID)
	if err != nil {
		return store.Sermon{}, err
	}

	title := sermon.Title
	category := sermon.Category
	status := sermon.Status
	if input.Title != nil {
		title = *input.Title
	}
	if input.Category != nil {
		category = *input.Category
	}
	if input.Status != nil {
		status = *input.Status
	}
	if title == "" {
		return store.Sermon{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Título é obrigatório", nil)
	}
	if _, ok := allowedSermonStatuses[status]; !ok {
		return store.Sermon{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Status inválido", map[string]any{"status": status})
	}

	if err := s.store.UpdateSermonMeta(ctx, sermonID, title, category, status); err != nil {
		return store.Sermon{}, err
	}

	updated, err := s.store.GetSermon(ctx, sermonID)
	if err != nil {
		return store.Sermon{}, err
	}
	s.indexSermon(updated)
	return updated, nil
}

func (s *Service) DeleteSermon(ctx context.Context, session Session, sermonID string) error {
	if _, err := s.ownedSermon(ctx, session, sermonID); err != nil {
		return err
	}
	if err := s.store.DeleteSermon(ctx, sermonID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteSermon(sermonID)
	}
	return nil
}

// SyncSermon replaces the whole canvas in one transaction and records the
// snapshot in the sermon's commit log.
func (s *Service) SyncSermon(ctx context.Context, session Session, sermonID string, input SyncInput) (map[string]any, error) {
	if _, err := s.ownedSermon(ctx, session, sermonID); err != nil {
		return nil, err
	}

	if input.Sources != nil {
		for i := range input.Sources {
			if input.Sources[i].ID == "" {
				input.Sources[i].ID = util.NewID("src")
			}
			input.Sources[i].SermonID = sermonID
			input.Sources[i].Position = i
		}
		if err := s.store.ReplaceBibleSources(ctx, sermonID, input.Sources); err != nil {
			return nil, err
		}
	}

	message := input.Message
	if message == "" {
		message = fmt.Sprintf("Sync canvas (%d blocos)", len(input.Blocks))
	}

	revision, blocks, err := s.applySync(ctx, sermonID, input.Blocks, input.BaseRevision, session.UserName, message)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"revision": revision,
		"blocks":   blocks,
		"groups":   canvas.BuildGroups(blocks, canvas.ModeEdit),
	}, nil
}

// applySync validates and persists a full block replacement, then records
// the git snapshot and ships a copy to the archive. Client block ids are
// preserved; order is normalized to array position.
func (s *Service) applySync(ctx context.Context, sermonID string, blocks []store.Block, baseRevision *int64, author, message string) (int64, []store.Block, error) {
	seen := make(map[string]bool, len(blocks))
	for i := range blocks {
		if blocks[i].ID == "" {
			blocks[i].ID = util.NewBlockID()
		}
		if seen[blocks[i].ID] {
			return 0, nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Blocos com id duplicado", map[string]any{"blockId": blocks[i].ID})
		}
		seen[blocks[i].ID] = true
		if !canvas.IsKnownType(blocks[i].Type) {
			return 0, nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Tipo de bloco desconhecido", map[string]any{"blockId": blocks[i].ID, "type": blocks[i].Type})
		}
		blocks[i].SermonID = sermonID
		blocks[i].Order = i
	}

	sources, err := s.store.ListBibleSources(ctx, sermonID)
	if err != nil {
		return 0, nil, err
	}
	sourceIDs := make(map[string]bool, len(sources))
	for _, source := range sources {
		sourceIDs[source.ID] = true
	}
	if dangling := canvas.ValidateReferences(blocks, sourceIDs); len(dangling) > 0 {
		return 0, nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Referências entre blocos inválidas", map[string]any{"dangling": dangling})
	}

	// On a stale base revision the store reports the current revision so
	// rejected syncs can tell the client where the server is.
	revision, err := s.store.ReplaceBlocks(ctx, sermonID, blocks, baseRevision)
	if err != nil {
		return revision, nil, err
	}

	snapshot := history.Snapshot{Revision: revision, Blocks: blocks}
	if _, err := s.history.RecordSync(sermonID, snapshot, author, message); err != nil {
		return 0, nil, err
	}

	if s.archive != nil {
		go func() {
			archiveCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			s.archive.StoreSnapshot(archiveCtx, sermonID, revision, snapshot)
		}()
	}

	return revision, blocks, nil
}

// SyncCanvas is the relay-facing sync path. The author recorded in the
// commit log is the live session itself.
func (s *Service) SyncCanvas(ctx context.Context, sermonID string, blocks []store.Block, baseRevision *int64) (int64, error) {
	revision, _, err := s.applySync(ctx, sermonID, blocks, baseRevision, "live-sync", fmt.Sprintf("Live sync (%d blocos)", len(blocks)))
	return revision, err
}

func (s *Service) MarkBlockPreached(ctx context.Context, sermonID, blockID string, preached bool) error {
	return s.store.SetBlockPreached(ctx, sermonID, blockID, preached)
}

func (s *Service) SyncHistory(ctx context.Context, session Session, sermonID string) (map[string]any, error) {
	if _, err := s.ownedSermon(ctx, session, sermonID); err != nil {
		return nil, err
	}
	commits, err := s.history.History(sermonID, 50)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"sermonId": sermonID,
		"commits":  commits,
	}, nil
}

// SnapshotAt reads the canvas as it was at a given commit.
func (s *Service) SnapshotAt(ctx context.Context, session Session, sermonID, hash string) (map[string]any, error) {
	if _, err := s.ownedSermon(ctx, session, sermonID); err != nil {
		return nil, err
	}
	snapshot, err := s.history.SnapshotByHash(sermonID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Snapshot não encontrado", nil)
	}
	return map[string]any{
		"sermonId": sermonID,
		"revision": snapshot.Revision,
		"blocks":   snapshot.Blocks,
		"groups":   canvas.BuildGroups(snapshot.Blocks, canvas.ModeEdit),
	}, nil
}

type MinistryInput struct {
	PreachedAt time.Time `json:"preachedAt"`
	Location   string    `json:"location"`
	Notes      string    `json:"notes"`
}

func (s *Service) AddMinistryRecord(ctx context.Context, session Session, sermonID string, input MinistryInput) (store.MinistryHistoryEntry, error) {
	if _, err := s.ownedSermon(ctx, session, sermonID); err != nil {
		return store.MinistryHistoryEntry{}, err
	}
	if input.PreachedAt.IsZero() {
		input.PreachedAt = time.Now()
	}

	entry := store.MinistryHistoryEntry{
		ID:         util.NewID("min"),
		SermonID:   sermonID,
		PreachedAt: input.PreachedAt,
		Location:   input.Location,
		Notes:      input.Notes,
	}
	if err := s.store.InsertMinistryHistory(ctx, entry); err != nil {
		return store.MinistryHistoryEntry{}, err
	}
	return entry, nil
}

func (s *Service) ListMinistryRecords(ctx context.Context, session Session, sermonID string) ([]store.MinistryHistoryEntry, error) {
	if _, err := s.ownedSermon(ctx, session, sermonID); err != nil {
		return nil, err
	}
	return s.store.ListMinistryHistory(ctx, sermonID)
}

// CreateShareLink issues an anonymous read-only link to the pulpit view.
// A non-empty password locks the link behind bcrypt.
func (s *Service) CreateShareLink(ctx context.Context, session Session, sermonID, password string) (map[string]any, error) {
	if _, err := s.ownedSermon(ctx, session, sermonID); err != nil {
		return nil, err
	}

	link := store.ShareLink{
		Token:     util.NewID("shr") + util.NewID(""),
		SermonID:  sermonID,
		CreatedBy: session.UserID,
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hashed := string(hash)
		link.PasswordHash = &hashed
	}

	if err := s.store.InsertShareLink(ctx, link); err != nil {
		return nil, err
	}
	return map[string]any{
		"token":       link.Token,
		"sermonId":    sermonID,
		"hasPassword": link.PasswordHash != nil,
	}, nil
}

func (s *Service) RevokeShareLinks(ctx context.Context, session Session, sermonID string) error {
	if _, err := s.ownedSermon(ctx, session, sermonID); err != nil {
		return err
	}
	return s.store.RevokeShareLinks(ctx, sermonID)
}

// ResolveShareLink is the unauthenticated pulpit view behind /share/:token.
func (s *Service) ResolveShareLink(ctx context.Context, token, password string) (map[string]any, error) {
	link, err := s.store.GetShareLink(ctx, token)
	if err != nil {
		return nil, err
	}
	if link.RevokedAt != nil {
		return nil, sql.ErrNoRows
	}
	if link.PasswordHash != nil {
		if password == "" {
			return nil, domainError(http.StatusUnauthorized, "SHARE_PASSWORD_REQUIRED", "Este link exige senha", nil)
		}
		if bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)) != nil {
			return nil, domainError(http.StatusUnauthorized, "SHARE_PASSWORD_INVALID", "Senha incorreta", nil)
		}
	}

	sermon, err := s.store.GetSermon(ctx, link.SermonID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.store.ListBlocks(ctx, link.SermonID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"sermon": map[string]any{
			"id":       sermon.ID,
			"title":    sermon.Title,
			"category": sermon.Category,
		},
		"groups": canvas.BuildGroups(blocks, canvas.ModePulpit),
	}, nil
}

// ExportSermon renders the sermon handout as PDF or DOCX.
func (s *Service) ExportSermon(ctx context.Context, session Session, sermonID string, format export.Format) (*export.Result, error) {
	sermon, err := s.ownedSermon(ctx, session, sermonID)
	if err != nil {
		return nil, err
	}
	sources, err := s.store.ListBibleSources(ctx, sermonID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.store.ListBlocks(ctx, sermonID)
	if err != nil {
		return nil, err
	}

	doc := export.SermonDocument{
		Title:     sermon.Title,
		Category:  sermon.Category,
		Status:    sermon.Status,
		Author:    session.UserName,
		UpdatedAt: sermon.UpdatedAt,
	}
	for _, source := range sources {
		doc.Sources = append(doc.Sources, export.SourceSection{
			Reference: source.Reference,
			Text:      source.Text,
		})
	}
	for _, group := range canvas.BuildGroups(blocks, canvas.ModeEdit) {
		section := export.GroupSection{
			AnchorType:    group.Anchor.Type,
			AnchorContent: group.Anchor.Content,
		}
		for _, insight := range group.Insights {
			section.Insights = append(section.Insights, export.InsightSection{
				Type:    insight.Type,
				Content: insight.Content,
			})
		}
		doc.Groups = append(doc.Groups, section)
	}

	return s.export.Export(doc, format)
}

// SearchAll queries sermons, insights and community posts in one shot.
// Posts are scoped to the communities the caller belongs to.
func (s *Service) SearchAll(ctx context.Context, session Session, text string, filterType search.ResultType, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}

	communities, err := s.store.ListCommunitiesForUser(ctx, session.UserID)
	if err != nil {
		return search.Response{}, err
	}
	communityIDs := make([]string, 0, len(communities))
	for _, community := range communities {
		communityIDs = append(communityIDs, community.ID)
	}

	return s.search.Search(search.Query{
		Text:         text,
		FilterType:   filterType,
		UserID:       session.UserID,
		CommunityIDs: communityIDs,
		Limit:        limit,
		Offset:       offset,
	}), nil
}

func (s *Service) indexSermon(sermon store.Sermon) {
	if s.search == nil {
		return
	}
	s.search.IndexSermon(search.SermonRecord{
		ID:       sermon.ID,
		Title:    sermon.Title,
		Category: sermon.Category,
		Status:   sermon.Status,
		OwnerID:  sermon.CreatedBy,
	})
}
