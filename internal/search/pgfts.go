package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs a ranked full-text query over content_records, with
// ts_headline for snippets.
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

	const tsQuery = "plainto_tsquery('english', $1)"
	where := "to_tsvector('english', cr.title || ' ' || cr.body) @@ " + tsQuery +
		" AND cr.owner_id = $2"
	args := []any{q.Text, q.OwnerID}
	if q.FilterContentType != "" {
		where += " AND cr.content_type = $3"
		args = append(args, q.FilterContentType)
	}

	countSQL := fmt.Sprintf(`SELECT count(*) FROM content_records cr WHERE %s`, where)

	dataSQL := fmt.Sprintf(`
		SELECT cr.id, cr.session_id, cr.content_type, cr.title,
			ts_headline('english', coalesce(cr.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			cr.version
		FROM content_records cr
		WHERE %s
		ORDER BY ts_rank(to_tsvector('english', cr.title || ' ' || cr.body), %s) DESC
		LIMIT %d OFFSET %d`, tsQuery, where, tsQuery, limit, offset)

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
		if err := rows.Scan(&r.ID, &r.SessionID, &r.ContentType, &r.Title, &r.Snippet, &r.Version); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllContent returns all content records for full reindexing.
func (p *PgFTS) LoadAllContent(ctx context.Context) ([]ContentDoc, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, session_id, owner_id, content_type, title, body, version
		FROM content_records
	`)
	if err != nil {
		return nil, fmt.Errorf("load content records: %w", err)
	}
	defer rows.Close()

	docs := make([]ContentDoc, 0)
	for rows.Next() {
		var d ContentDoc
		if err := rows.Scan(&d.ID, &d.SessionID, &d.OwnerID, &d.ContentType, &d.Title, &d.Body, &d.Version); err != nil {
			return nil, fmt.Errorf("scan content record: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content records: %w", err)
	}
	return docs, nil
}
