package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a
// fallback. The vectors are computed inline with the Portuguese config;
// this path only runs while Meilisearch is down.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('portuguese', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultSermon {
		vector := "to_tsvector('portuguese', s.title || ' ' || s.category)"
		where := vector + " @@ " + tsQuery
		if q.UserID != "" {
			where += fmt.Sprintf(" AND s.created_by = $%d", argN)
			args = append(args, q.UserID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'sermon'::text AS type, s.id, s.title,
				ts_headline('portuguese', s.category, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS community_id,
				ts_rank(%s, %s) AS rank
			FROM sermons s
			WHERE %s`, tsQuery, vector, tsQuery, where))
	}

	if q.FilterType == "" || q.FilterType == ResultPost {
		if len(q.CommunityIDs) > 0 {
			vector := "to_tsvector('portuguese', p.content)"
			where := vector + " @@ " + tsQuery
			placeholders := make([]string, len(q.CommunityIDs))
			for i, id := range q.CommunityIDs {
				placeholders[i] = fmt.Sprintf("$%d", argN)
				args = append(args, id)
				argN++
			}
			where += fmt.Sprintf(" AND p.community_id IN (%s)", strings.Join(placeholders, ", "))
			subQueries = append(subQueries, fmt.Sprintf(`
				SELECT 'post'::text AS type, p.id, u.display_name AS title,
					ts_headline('portuguese', p.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
					p.community_id,
					ts_rank(%s, %s) AS rank
				FROM community_posts p
				JOIN users u ON u.id = p.author_id
				WHERE %s`, tsQuery, vector, tsQuery, where))
		}
	}

	if q.FilterType == "" || q.FilterType == ResultInsight {
		vector := "to_tsvector('portuguese', gi.reference || ' ' || gi.revelation)"
		where := vector + " @@ " + tsQuery
		if q.UserID != "" {
			where += fmt.Sprintf(" AND gi.user_id = $%d", argN)
			args = append(args, q.UserID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'insight'::text AS type, gi.id, gi.reference AS title,
				ts_headline('portuguese', gi.revelation, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS community_id,
				ts_rank(%s, %s) AS rank
			FROM global_insights gi
			WHERE %s`, tsQuery, vector, tsQuery, where))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, community_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.CommunityID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}
