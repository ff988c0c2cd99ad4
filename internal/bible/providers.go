package bible

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes markup from a verse and collapses runs of whitespace.
func stripHTML(text string) string {
	return strings.Join(strings.Fields(htmlTagPattern.ReplaceAllString(text, " ")), " ")
}

// PrimaryProvider serves chapters by version and Portuguese abbreviation,
// and also exposes the free-text search endpoint. Requests carry a bearer
// token when one is configured.
type PrimaryProvider struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type primaryChapterResponse struct {
	Book struct {
		Name   string `json:"name"`
		Abbrev struct {
			PT string `json:"pt"`
		} `json:"abbrev"`
	} `json:"book"`
	Chapter struct {
		Number int `json:"number"`
	} `json:"chapter"`
	Verses []struct {
		Number int    `json:"number"`
		Text   string `json:"text"`
	} `json:"verses"`
}

func (p *PrimaryProvider) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

func (p *PrimaryProvider) GetChapter(ctx context.Context, version, abbrev string, chapter int) (Chapter, error) {
	var decoded primaryChapterResponse
	path := fmt.Sprintf("/verses/%s/%s/%d", url.PathEscape(version), url.PathEscape(abbrev), chapter)
	if err := p.do(ctx, http.MethodGet, path, nil, &decoded); err != nil {
		return Chapter{}, err
	}
	if len(decoded.Verses) == 0 {
		return Chapter{}, fmt.Errorf("empty chapter from primary provider")
	}

	out := Chapter{
		Book:    BookRef{Name: decoded.Book.Name, Abbrev: decoded.Book.Abbrev.PT},
		Chapter: decoded.Chapter.Number,
	}
	if out.Chapter == 0 {
		out.Chapter = chapter
	}
	if out.Book.Abbrev == "" {
		out.Book.Abbrev = abbrev
	}
	for _, v := range decoded.Verses {
		out.Verses = append(out.Verses, Verse{Number: v.Number, Text: stripHTML(v.Text)})
	}
	return out, nil
}

type primarySearchResponse struct {
	Occurrence int `json:"occurrence"`
	Verses     []struct {
		Book struct {
			Name   string `json:"name"`
			Abbrev struct {
				PT string `json:"pt"`
			} `json:"abbrev"`
		} `json:"book"`
		Chapter int    `json:"chapter"`
		Number  int    `json:"number"`
		Text    string `json:"text"`
	} `json:"verses"`
}

func (p *PrimaryProvider) SearchVerses(ctx context.Context, version, query string) (SearchResult, error) {
	var decoded primarySearchResponse
	body := map[string]string{"version": version, "search": query}
	if err := p.do(ctx, http.MethodPost, "/verses/search", body, &decoded); err != nil {
		return SearchResult{}, err
	}

	out := SearchResult{Occurrence: decoded.Occurrence, Verses: []SearchVerse{}}
	for _, v := range decoded.Verses {
		out.Verses = append(out.Verses, SearchVerse{
			Book:    BookRef{Name: v.Book.Name, Abbrev: v.Book.Abbrev.PT},
			Chapter: v.Chapter,
			Number:  v.Number,
			Text:    stripHTML(v.Text),
		})
	}
	return out, nil
}

// SecondaryProvider addresses chapters directly in the URL path. Its verse
// payload is passed through untouched.
type SecondaryProvider struct {
	BaseURL string
	Client  *http.Client
}

type secondaryChapterResponse struct {
	Verses []struct {
		Number int    `json:"number"`
		Verse  int    `json:"verse"`
		Text   string `json:"text"`
	} `json:"verses"`
}

func (p *SecondaryProvider) GetChapter(ctx context.Context, version, abbrev string, chapter int) (Chapter, error) {
	path := fmt.Sprintf("%s/read/%s/%s/%d", p.BaseURL, url.PathEscape(version), url.PathEscape(abbrev), chapter)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Chapter{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return Chapter{}, fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Chapter{}, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var decoded secondaryChapterResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Chapter{}, fmt.Errorf("decode provider response: %w", err)
	}
	if decoded.Verses == nil {
		return Chapter{}, fmt.Errorf("secondary provider returned no verses field")
	}

	out := Chapter{Book: BookRef{Abbrev: abbrev}, Chapter: chapter}
	if book, ok := LookupBook(abbrev); ok {
		out.Book.Name = book.Name
	} else {
		out.Book.Name = abbrev
	}
	for _, v := range decoded.Verses {
		number := v.Number
		if number == 0 {
			number = v.Verse
		}
		out.Verses = append(out.Verses, Verse{Number: number, Text: v.Text})
	}
	return out, nil
}

// LastResortProvider is an English-source API that only serves a single
// Portuguese translation, addressed by English book name.
type LastResortProvider struct {
	BaseURL string
	Client  *http.Client
}

type lastResortResponse struct {
	Verses []struct {
		Verse int    `json:"verse"`
		Text  string `json:"text"`
	} `json:"verses"`
}

func (p *LastResortProvider) GetChapter(ctx context.Context, abbrev string, chapter int) (Chapter, error) {
	book, ok := LookupBook(abbrev)
	if !ok {
		return Chapter{}, fmt.Errorf("unknown book %q", abbrev)
	}

	path := fmt.Sprintf("%s/%s+%d?translation=almeida", p.BaseURL, url.PathEscape(book.English), chapter)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Chapter{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return Chapter{}, fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Chapter{}, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var decoded lastResortResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Chapter{}, fmt.Errorf("decode provider response: %w", err)
	}
	if len(decoded.Verses) == 0 {
		return Chapter{}, fmt.Errorf("empty chapter from last-resort provider")
	}

	out := Chapter{Book: BookRef{Name: book.Name, Abbrev: book.Abbrev}, Chapter: chapter}
	for _, v := range decoded.Verses {
		out.Verses = append(out.Verses, Verse{Number: v.Verse, Text: stripHTML(v.Text)})
	}
	return out, nil
}
