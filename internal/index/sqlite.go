// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/pkg/types"
)

// maxCandidates bounds how many keyword matches are scored in Go.
const maxCandidates = 500

// SQLite is a Store in a local database file. Keyword matching runs in
// SQL; vector similarity is computed over the keyword candidates, or over
// the most credible documents when no keyword matches.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite opens or creates the database at cfg.Path and its schema.
func NewSQLite(cfg types.IndexConfig, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite index path is empty")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{db: db, logger: logger.With(zap.String("component", "sqlite-index"))}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT,
			url TEXT,
			source TEXT,
			publish_date TEXT,
			credibility REAL,
			tags TEXT,
			claim TEXT,
			verdict TEXT,
			factchecker TEXT,
			embedding TEXT,
			UNIQUE(kind, url, title)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_credibility ON documents(credibility)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Index upserts docs in one transaction. Documents are unique per kind,
// URL and title.
func (s *SQLite) Index(ctx context.Context, docs []Document) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (kind, title, content, url, source, publish_date, credibility,
			tags, claim, verdict, factchecker, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, url, title) DO UPDATE SET
			content = excluded.content,
			source = excluded.source,
			publish_date = excluded.publish_date,
			credibility = excluded.credibility,
			tags = excluded.tags,
			claim = excluded.claim,
			verdict = excluded.verdict,
			factchecker = excluded.factchecker,
			embedding = excluded.embedding`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		tags, _ := json.Marshal(d.Tags)
		var embedding []byte
		if len(d.Embedding) > 0 {
			embedding, _ = json.Marshal(d.Embedding)
		}
		if _, err := stmt.ExecContext(ctx,
			string(d.Kind), d.Title, d.Content, d.URL, d.Source,
			formatDate(d.PublishDate), d.CredibilityScore,
			string(tags), d.Claim, d.Verdict, d.FactChecker, nullable(embedding),
		); err != nil {
			return 0, fmt.Errorf("inserting %q: %w", d.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return len(docs), nil
}

type scoredDocument struct {
	doc   Document
	score float64
}

// HybridSearch returns documents whose title, content or claim contains
// any query term, ranked by credibility, then by cosine similarity to the
// embedding, then by recency. The second return value counts all keyword
// matches.
func (s *SQLite) HybridSearch(ctx context.Context, query string, embedding []float32, size int) ([]types.SearchResult, int, error) {
	if size <= 0 {
		size = 10
	}

	terms := strings.Fields(strings.ToLower(query))
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT kind, title, content, url, source, publish_date, credibility,
		tags, claim, verdict, factchecker, embedding FROM documents`)
	if len(terms) > 0 {
		qb.WriteString(" WHERE ")
		for i, term := range terms {
			if i > 0 {
				qb.WriteString(" OR ")
			}
			qb.WriteString("(lower(title) LIKE ? OR lower(content) LIKE ? OR lower(claim) LIKE ?)")
			like := "%" + term + "%"
			args = append(args, like, like, like)
		}
	}
	qb.WriteString(" ORDER BY credibility DESC LIMIT ?")
	args = append(args, maxCandidates)

	candidates, err := s.query(ctx, qb.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	total := len(candidates)

	if total == 0 && len(embedding) > 0 {
		candidates, err = s.query(ctx, `SELECT kind, title, content, url, source, publish_date, credibility,
			tags, claim, verdict, factchecker, embedding FROM documents
			WHERE embedding IS NOT NULL ORDER BY credibility DESC LIMIT ?`, maxCandidates)
		if err != nil {
			return nil, 0, err
		}
	}

	scored := make([]scoredDocument, len(candidates))
	for i, d := range candidates {
		scored[i] = scoredDocument{doc: d, score: cosine(embedding, d.Embedding)}
	}
	if total == 0 {
		// Vector-only matches must be at least somewhat similar.
		kept := scored[:0]
		for _, sd := range scored {
			if sd.score > 0 {
				kept = append(kept, sd)
			}
		}
		scored = kept
		total = len(scored)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.doc.CredibilityScore != b.doc.CredibilityScore {
			return a.doc.CredibilityScore > b.doc.CredibilityScore
		}
		if a.score != b.score {
			return a.score > b.score
		}
		return a.doc.PublishDate.After(b.doc.PublishDate)
	})
	if len(scored) > size {
		scored = scored[:size]
	}

	out := make([]types.SearchResult, len(scored))
	for i, sd := range scored {
		out[i] = sd.doc.Result()
		out[i].Highlights = highlight(sd.doc, terms)
	}
	return out, total, nil
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d                                 Document
			kind, date                        string
			content, url, source              sql.NullString
			tags, claim, verdict, factchecker sql.NullString
			embedding                         sql.NullString
			credibility                       sql.NullFloat64
		)
		if err := rows.Scan(&kind, &d.Title, &content, &url, &source, &date, &credibility,
			&tags, &claim, &verdict, &factchecker, &embedding); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.Kind = Kind(kind)
		d.Content, d.URL, d.Source = content.String, url.String, source.String
		d.Claim, d.Verdict, d.FactChecker = claim.String, verdict.String, factchecker.String
		d.CredibilityScore = credibility.Float64
		d.PublishDate = parseDate(date)
		if tags.Valid && tags.String != "" {
			_ = json.Unmarshal([]byte(tags.String), &d.Tags)
		}
		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &d.Embedding); err != nil {
				s.logger.Warn("ignoring unreadable embedding", zap.String("title", d.Title), zap.Error(err))
			}
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SourceStats returns per-kind counts, top sources and average credibility.
func (s *SQLite) SourceStats(ctx context.Context) ([]KindStats, error) {
	stats := make([]KindStats, 0, len(Kinds))
	for _, k := range Kinds {
		ks := KindStats{Kind: k, Sources: map[string]int{}}
		var avg sql.NullFloat64
		if err := s.db.QueryRowContext(ctx,
			`SELECT count(*), avg(credibility) FROM documents WHERE kind = ?`, string(k),
		).Scan(&ks.Total, &avg); err != nil {
			return nil, fmt.Errorf("counting %s: %w", k, err)
		}
		ks.AvgCredibility = avg.Float64

		rows, err := s.db.QueryContext(ctx,
			`SELECT source, count(*) FROM documents WHERE kind = ?
			GROUP BY source ORDER BY count(*) DESC LIMIT ?`, string(k), statsSourceBucket)
		if err != nil {
			return nil, fmt.Errorf("grouping %s sources: %w", k, err)
		}
		for rows.Next() {
			var (
				source sql.NullString
				n      int
			)
			if err := rows.Scan(&source, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning %s sources: %w", k, err)
			}
			ks.Sources[source.String] = n
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
		stats = append(stats, ks)
	}
	return stats, nil
}

// highlight returns the title and a content fragment when they contain a
// query term.
func highlight(d Document, terms []string) types.Highlights {
	var h types.Highlights
	lowerTitle := strings.ToLower(d.Title)
	lowerContent := strings.ToLower(d.Content)
	for _, t := range terms {
		if strings.Contains(lowerTitle, t) {
			h.Title = []string{d.Title}
			break
		}
	}
	for _, t := range terms {
		if i := strings.Index(lowerContent, t); i >= 0 {
			h.Content = []string{fragment(d.Content, i, 150)}
			break
		}
	}
	return h
}

// fragment returns about width bytes of s around byte offset at, widened
// to rune boundaries.
func fragment(s string, at, width int) string {
	start := max(0, at-width/2)
	end := min(len(s), start+width)
	for start > 0 && !isRuneStart(s[start]) {
		start--
	}
	for end < len(s) && !isRuneStart(s[end]) {
		end++
	}
	return strings.TrimSpace(s[start:end])
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseDate(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
