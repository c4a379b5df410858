package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch implements Searcher with PostgreSQL pattern matching as a
// fallback when Meilisearch is unavailable.
type PgSearch struct {
	db *sql.DB
}

func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

func likePattern(text string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(text))
	return "%" + escaped + "%"
}

const accessibleResumes = `
	FROM resumes r
	WHERE (r.owner = $1 OR EXISTS (
		SELECT 1 FROM resume_collaborators rc WHERE rc.resume_id = r.id AND rc.email = $1
	))
	AND (r.title ILIKE $2 OR r.description ILIKE $2)`

func (p *PgSearch) Search(q Query) ([]Result, int, error) {
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
	args := []any{q.Identity, likePattern(q.Text)}

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*)`+accessibleResumes, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgsearch count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT r.id, r.title, r.description, r.owner
		%s
		ORDER BY r.updated_at DESC
		LIMIT %d OFFSET %d`, accessibleResumes, limit, offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgsearch query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r     Result
			owner string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &owner); err != nil {
			return nil, 0, fmt.Errorf("pgsearch scan: %w", err)
		}
		r.Snippet = r.Description
		r.Type = resultType(owner, q.Identity)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every resume for full reindexing.
func (p *PgSearch) LoadAllRecords(ctx context.Context) ([]ResumeRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT r.id, r.title, r.description, r.owner, r.selected_template,
			COALESCE(string_agg(rc.email, ',' ORDER BY rc.email), '')
		FROM resumes r
		LEFT JOIN resume_collaborators rc ON rc.resume_id = r.id
		GROUP BY r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("load resumes: %w", err)
	}
	defer rows.Close()

	records := make([]ResumeRecord, 0)
	for rows.Next() {
		var (
			rec           ResumeRecord
			collaborators string
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.Owner, &rec.Template, &collaborators); err != nil {
			return nil, fmt.Errorf("scan resume: %w", err)
		}
		rec.Collaborators = []string{}
		if collaborators != "" {
			rec.Collaborators = strings.Split(collaborators, ",")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resumes: %w", err)
	}
	return records, nil
}
