package search

import "log"

// Service is the facade that tries Meilisearch first and falls back to
// Postgres full-text search.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexSermon indexes a sermon (fire-and-forget to Meilisearch).
func (s *Service) IndexSermon(record SermonRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexSermon(record); err != nil {
			log.Printf("search: index sermon %s: %v", record.ID, err)
		}
	}()
}

// IndexPost indexes a community post (fire-and-forget to Meilisearch).
func (s *Service) IndexPost(record PostRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPost(record); err != nil {
			log.Printf("search: index post %s: %v", record.ID, err)
		}
	}()
}

// IndexInsight indexes a global insight (fire-and-forget to Meilisearch).
func (s *Service) IndexInsight(record InsightRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexInsight(record); err != nil {
			log.Printf("search: index insight %s: %v", record.ID, err)
		}
	}()
}

// DeleteSermon removes a sermon from the search index (fire-and-forget).
func (s *Service) DeleteSermon(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteSermon(id); err != nil {
			log.Printf("search: delete sermon %s: %v", id, err)
		}
	}()
}

// DeleteInsight removes an insight from the search index (fire-and-forget).
func (s *Service) DeleteInsight(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteInsight(id); err != nil {
			log.Printf("search: delete insight %s: %v", id, err)
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
