package search

import (
	"context"
	"log"
)

// Index is the write side of a search backend.
type Index interface {
	Healthy() bool
	IndexResumes(records []ResumeRecord) error
	DeleteResume(id string) error
}

type indexSearcher interface {
	Searcher
	Index
}

// RecordLoader reads every searchable record from the database.
type RecordLoader interface {
	LoadAllRecords(ctx context.Context) ([]ResumeRecord, error)
}

// Service is the facade that tries Meilisearch first and falls back to
// Postgres.
type Service struct {
	primary  indexSearcher
	fallback Searcher
	loader   RecordLoader
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, pg *PgSearch) *Service {
	s := &Service{}
	if meili != nil {
		s.primary = meili
	}
	if pg != nil {
		s.fallback = pg
		s.loader = pg
	}
	return s
}

func (s *Service) primaryHealthy() bool {
	return s.primary != nil && s.primary.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(q Query) Response {
	if s.primaryHealthy() {
		results, total, err := s.primary.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: postgres error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexResume indexes a resume (fire-and-forget to Meilisearch).
func (s *Service) IndexResume(rec ResumeRecord) {
	if !s.primaryHealthy() {
		return
	}
	go func() {
		if err := s.primary.IndexResumes([]ResumeRecord{rec}); err != nil {
			log.Printf("search: index resume %s: %v", rec.ID, err)
		}
	}()
}

// DeleteResume removes a resume from the search index (fire-and-forget).
func (s *Service) DeleteResume(id string) {
	if !s.primaryHealthy() {
		return
	}
	go func() {
		if err := s.primary.DeleteResume(id); err != nil {
			log.Printf("search: delete resume %s: %v", id, err)
		}
	}()
}

// ReindexAll reads every resume from Postgres and pushes it to Meilisearch.
func (s *Service) ReindexAll(ctx context.Context) {
	if !s.primaryHealthy() || s.loader == nil {
		return
	}
	records, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.primary.IndexResumes(records); err != nil {
		log.Printf("search: reindex resumes: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
