package app

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"pulpito/api/internal/roles"
	"pulpito/api/internal/search"
	"pulpito/api/internal/store"
	"pulpito/api/internal/util"
)

type PostInput struct {
	Content  string  `json:"content"`
	SermonID *string `json:"sermonId"`
	EventID  *string `json:"eventId"`
}

type EventInput struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	StartsAt     time.Time `json:"startsAt"`
	Location     string    `json:"location"`
	NotifyEmails []string  `json:"notifyEmails"`
}

func (s *Service) CreateCommunity(ctx context.Context, session Session, name, description string) (store.Community, error) {
	if name == "" {
		return store.Community{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Nome da comunidade é obrigatório", nil)
	}

	community := store.Community{
		ID:          util.NewID("com"),
		Name:        name,
		Description: description,
		InviteCode:  util.NewInviteCode(),
		CreatedBy:   session.UserID,
	}
	if err := s.store.InsertCommunity(ctx, community); err != nil {
		return store.Community{}, err
	}
	return s.store.GetCommunity(ctx, community.ID)
}

func (s *Service) ListCommunities(ctx context.Context, session Session) ([]store.Community, error) {
	return s.store.ListCommunitiesForUser(ctx, session.UserID)
}

// JoinCommunity adds the caller as MEMBER via invite code. Joining twice
// is a no-op.
func (s *Service) JoinCommunity(ctx context.Context, session Session, inviteCode string) (store.Community, error) {
	community, err := s.store.GetCommunityByInviteCode(ctx, inviteCode)
	if err != nil {
		return store.Community{}, err
	}
	if err := s.store.InsertMembership(ctx, community.ID, session.UserID, store.RoleMember); err != nil {
		return store.Community{}, err
	}
	return community, nil
}

func (s *Service) GetCommunityOverview(ctx context.Context, session Session, communityID string) (map[string]any, error) {
	role, err := s.memberRole(ctx, communityID, session.UserID)
	if err != nil {
		return nil, err
	}
	community, err := s.store.GetCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, communityID)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"community": community,
		"members":   members,
		"role":      string(role),
	}
	// Invite codes are for leaders to hand out.
	if role != roles.RoleLeader {
		payload["community"] = map[string]any{
			"id":          community.ID,
			"name":        community.Name,
			"description": community.Description,
			"createdAt":   community.CreatedAt,
		}
	}
	return payload, nil
}

func (s *Service) CreatePost(ctx context.Context, session Session, communityID string, input PostInput) (store.CommunityPost, error) {
	if _, err := s.requireCommunityAction(ctx, communityID, session.UserID, roles.ActionPost); err != nil {
		return store.CommunityPost{}, err
	}
	if input.Content == "" {
		return store.CommunityPost{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Conteúdo é obrigatório", nil)
	}

	if input.SermonID != nil {
		sermon, err := s.store.GetSermon(ctx, *input.SermonID)
		if err != nil || sermon.CreatedBy != session.UserID {
			return store.CommunityPost{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Sermão referenciado não existe", map[string]any{"sermonId": *input.SermonID})
		}
	}
	if input.EventID != nil {
		if err := s.eventInCommunity(ctx, communityID, *input.EventID); err != nil {
			return store.CommunityPost{}, err
		}
	}

	post := store.CommunityPost{
		ID:          util.NewID("pst"),
		CommunityID: communityID,
		AuthorID:    session.UserID,
		Content:     input.Content,
		SermonID:    input.SermonID,
		EventID:     input.EventID,
	}
	if err := s.store.InsertPost(ctx, post); err != nil {
		return store.CommunityPost{}, err
	}

	if s.search != nil {
		s.search.IndexPost(search.PostRecord{
			ID:          post.ID,
			Content:     post.Content,
			AuthorName:  session.UserName,
			CommunityID: communityID,
		})
	}

	return s.store.GetPost(ctx, communityID, post.ID)
}

func (s *Service) eventInCommunity(ctx context.Context, communityID, eventID string) error {
	events, err := s.store.ListEvents(ctx, communityID)
	if err != nil {
		return err
	}
	for _, event := range events {
		if event.ID == eventID {
			return nil
		}
	}
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Evento referenciado não existe", map[string]any{"eventId": eventID})
}

func (s *Service) Feed(ctx context.Context, session Session, communityID string) ([]store.CommunityPost, error) {
	if _, err := s.memberRole(ctx, communityID, session.UserID); err != nil {
		return nil, err
	}
	return s.store.ListFeed(ctx, communityID)
}

// AcknowledgePost records an "amém" on a post. Acks are append-only; the
// feed deduplicates per user on read.
func (s *Service) AcknowledgePost(ctx context.Context, session Session, communityID, postID string) (store.CommunityPost, error) {
	if _, err := s.requireCommunityAction(ctx, communityID, session.UserID, roles.ActionAcknowledge); err != nil {
		return store.CommunityPost{}, err
	}
	if _, err := s.store.GetPost(ctx, communityID, postID); err != nil {
		return store.CommunityPost{}, err
	}
	if err := s.store.AcknowledgePost(ctx, postID, session.UserID); err != nil {
		return store.CommunityPost{}, err
	}
	return s.store.GetPost(ctx, communityID, postID)
}

func (s *Service) CreateEvent(ctx context.Context, session Session, communityID string, input EventInput) (store.CommunityEvent, error) {
	if _, err := s.requireCommunityAction(ctx, communityID, session.UserID, roles.ActionCreateEvent); err != nil {
		return store.CommunityEvent{}, err
	}
	if input.Title == "" {
		return store.CommunityEvent{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Título do evento é obrigatório", nil)
	}
	if input.StartsAt.IsZero() {
		return store.CommunityEvent{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Data do evento é obrigatória", nil)
	}

	event := store.CommunityEvent{
		ID:          util.NewID("evt"),
		CommunityID: communityID,
		Title:       input.Title,
		Description: input.Description,
		StartsAt:    input.StartsAt,
		Location:    input.Location,
		CreatedBy:   session.UserID,
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return store.CommunityEvent{}, err
	}

	if len(input.NotifyEmails) > 0 && s.email != nil && s.email.IsConfigured() {
		community, err := s.store.GetCommunity(ctx, communityID)
		if err == nil {
			go func() {
				if err := s.email.SendEventInvitation(input.NotifyEmails, community.Name, event.Title, event.Location, event.StartsAt); err != nil {
					log.Printf("email: event invitation event=%s: %v", event.ID, err)
				}
			}()
		}
	}

	return event, nil
}

func (s *Service) ListCommunityEvents(ctx context.Context, session Session, communityID string) ([]store.CommunityEvent, error) {
	if _, err := s.memberRole(ctx, communityID, session.UserID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, communityID)
}

func (s *Service) ListCommunityMembers(ctx context.Context, session Session, communityID string) ([]store.CommunityMember, error) {
	if _, err := s.memberRole(ctx, communityID, session.UserID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, communityID)
}

type InsightInput struct {
	Reference  *string `json:"reference"`
	VerseText  *string `json:"verseText"`
	Revelation *string `json:"revelation"`
	Status     *string `json:"status"`
}

func (s *Service) ListInsights(ctx context.Context, session Session) ([]store.GlobalInsight, error) {
	return s.store.ListInsights(ctx, session.UserID)
}

func (s *Service) CreateInsight(ctx context.Context, session Session, input InsightInput) (store.GlobalInsight, error) {
	insight := store.GlobalInsight{
		ID:     util.NewID("ins"),
		UserID: session.UserID,
		Status: store.InsightPending,
	}
	if input.Reference != nil {
		insight.Reference = *input.Reference
	}
	if input.VerseText != nil {
		insight.VerseText = *input.VerseText
	}
	if input.Revelation != nil {
		insight.Revelation = *input.Revelation
	}
	if insight.Reference == "" && insight.Revelation == "" {
		return store.GlobalInsight{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Insight precisa de uma referência ou revelação", nil)
	}

	if err := s.store.InsertInsight(ctx, insight); err != nil {
		return store.GlobalInsight{}, err
	}
	created, err := s.store.GetInsight(ctx, insight.ID)
	if err != nil {
		return store.GlobalInsight{}, err
	}
	s.indexInsight(created)
	return created, nil
}

// ownedInsight hides other users' insights behind 404.
func (s *Service) ownedInsight(ctx context.Context, session Session, insightID string) (store.GlobalInsight, error) {
	insight, err := s.store.GetInsight(ctx, insightID)
	if err != nil {
		return store.GlobalInsight{}, err
	}
	if insight.UserID != session.UserID {
		return store.GlobalInsight{}, sql.ErrNoRows
	}
	return insight, nil
}

func (s *Service) UpdateInsight(ctx context.Context, session Session, insightID string, input InsightInput) (store.GlobalInsight, error) {
	insight, err := s.ownedInsight(ctx, session, insightID)
	if err != nil {
		return store.GlobalInsight{}, err
	}

	if input.Reference != nil {
		insight.Reference = *input.Reference
	}
	if input.VerseText != nil {
		insight.VerseText = *input.VerseText
	}
	if input.Revelation != nil {
		insight.Revelation = *input.Revelation
	}
	if input.Status != nil {
		if *input.Status != store.InsightPending && *input.Status != store.InsightCompleted {
			return store.GlobalInsight{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Status de insight inválido", map[string]any{"status": *input.Status})
		}
		insight.Status = *input.Status
	}

	if err := s.store.UpdateInsight(ctx, insight); err != nil {
		return store.GlobalInsight{}, err
	}
	updated, err := s.store.GetInsight(ctx, insightID)
	if err != nil {
		return store.GlobalInsight{}, err
	}
	s.indexInsight(updated)
	return updated, nil
}

func (s *Service) DeleteInsight(ctx context.Context, session Session, insightID string) error {
	if _, err := s.ownedInsight(ctx, session, insightID); err != nil {
		return err
	}
	if err := s.store.DeleteInsight(ctx, insightID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteInsight(insightID)
	}
	return nil
}

func (s *Service) indexInsight(insight store.GlobalInsight) {
	if s.search == nil {
		return
	}
	s.search.IndexInsight(search.InsightRecord{
		ID:         insight.ID,
		Reference:  insight.Reference,
		Revelation: insight.Revelation,
		Status:     insight.Status,
		UserID:     insight.UserID,
	})
}
