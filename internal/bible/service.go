// Package bible resolves scripture text through a fixed waterfall of
// external providers. No provider failure is fatal until the whole chain
// is exhausted.
package bible

import (
	"context"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrUnavailable means every provider in the chain failed.
var ErrUnavailable = errors.New("bible service unavailable")

// "<Book> <Chapter>[:<Verse>]", e.g. "Gênesis 1", "1 Coríntios 13:4".
var referencePattern = regexp.MustCompile(`^\s*([0-9]?\s*\p{L}[\p{L}\s.]*?)\s+(\d+)(?::(\d+))?\s*$`)

type Config struct {
	PrimaryURL   string
	PrimaryToken string
	SecondaryURL string
	FallbackURL  string
	Timeout      time.Duration
}

type Service struct {
	log        *log.Logger
	primary    *PrimaryProvider
	secondary  *SecondaryProvider
	lastResort *LastResortProvider
}

func NewService(cfg Config, logger *log.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	client := &http.Client{Timeout: cfg.Timeout}
	return &Service{
		log:        logger,
		primary:    &PrimaryProvider{BaseURL: cfg.PrimaryURL, Token: cfg.PrimaryToken, Client: client},
		secondary:  &SecondaryProvider{BaseURL: cfg.SecondaryURL, Client: client},
		lastResort: &LastResortProvider{BaseURL: cfg.FallbackURL, Client: client},
	}
}

// GetChapter walks the provider waterfall in fixed priority order with no
// retries: primary, secondary, primary again on the other supported
// versions, then the last-resort provider.
func (s *Service) GetChapter(ctx context.Context, version, abbrev string, chapter int) (Chapter, error) {
	result, err := s.primary.GetChapter(ctx, version, abbrev, chapter)
	if err == nil {
		return result, nil
	}
	s.log.Printf("bible: primary provider failed version=%s book=%s chapter=%d err=%v", version, abbrev, chapter, err)

	result, err = s.secondary.GetChapter(ctx, version, abbrev, chapter)
	if err == nil {
		return result, nil
	}
	s.log.Printf("bible: secondary provider failed version=%s book=%s chapter=%d err=%v", version, abbrev, chapter, err)

	for _, v := range versions {
		if v.ID == version {
			continue
		}
		result, err = s.primary.GetChapter(ctx, v.ID, abbrev, chapter)
		if err == nil {
			s.log.Printf("bible: degraded to version=%s for book=%s chapter=%d", v.ID, abbrev, chapter)
			return result, nil
		}
		s.log.Printf("bible: degraded version=%s failed book=%s chapter=%d err=%v", v.ID, abbrev, chapter, err)
	}

	result, err = s.lastResort.GetChapter(ctx, abbrev, chapter)
	if err == nil {
		return result, nil
	}
	s.log.Printf("bible: last-resort provider failed book=%s chapter=%d err=%v", abbrev, chapter, err)

	return Chapter{}, ErrUnavailable
}

// Search resolves "<Book> <Chapter>[:<Verse>]" queries through the chapter
// waterfall plus the local book table; anything else is forwarded to the
// primary provider's free-text search.
func (s *Service) Search(ctx context.Context, version, query string) (SearchResult, error) {
	if match := referencePattern.FindStringSubmatch(query); match != nil {
		if book, ok := LookupBook(match[1]); ok {
			chapter, _ := strconv.Atoi(match[2])
			verse := 0
			if match[3] != "" {
				verse, _ = strconv.Atoi(match[3])
			}
			return s.searchReference(ctx, version, book, chapter, verse)
		}
	}

	result, err := s.primary.SearchVerses(ctx, version, query)
	if err != nil {
		s.log.Printf("bible: free-text search failed query=%q err=%v", query, err)
		return SearchResult{}, ErrUnavailable
	}
	return result, nil
}

func (s *Service) searchReference(ctx context.Context, version string, book Book, chapter, verse int) (SearchResult, error) {
	full, err := s.GetChapter(ctx, version, book.Abbrev, chapter)
	if err != nil {
		return SearchResult{}, err
	}

	result := SearchResult{Verses: []SearchVerse{}}
	for _, v := range full.Verses {
		if verse != 0 && v.Number != verse {
			continue
		}
		result.Verses = append(result.Verses, SearchVerse{
			Book:    full.Book,
			Chapter: full.Chapter,
			Number:  v.Number,
			Text:    v.Text,
		})
	}
	result.Occurrence = len(result.Verses)
	return result, nil
}

// CompareChapter fetches the same chapter in every supported version in
// parallel. A failing version degrades to an empty verse list instead of
// failing the comparison.
func (s *Service) CompareChapter(ctx context.Context, abbrev string, chapter int) (map[string]Chapter, error) {
	results := make([]Chapter, len(versions))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, v := range versions {
		group.Go(func() error {
			result, err := s.GetChapter(groupCtx, v.ID, abbrev, chapter)
			if err != nil {
				s.log.Printf("bible: compare version=%s failed book=%s chapter=%d err=%v", v.ID, abbrev, chapter, err)
				result = Chapter{
					Book:    BookRef{Name: abbrev, Abbrev: abbrev},
					Chapter: chapter,
					Verses:  []Verse{},
				}
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]Chapter, len(versions))
	for i, v := range versions {
		out[v.ID] = results[i]
	}
	return out, nil
}
