package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG
// FTS. meili may be nil when Meilisearch is not configured.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// backends returns the query backends in preference order. Meilisearch comes
// first when configured; PG FTS always answers.
func (s *Service) backends() []Searcher {
	backends := make([]Searcher, 0, 2)
	if s.meili != nil {
		backends = append(backends, s.meili)
	}
	if s.pgfts != nil {
		backends = append(backends, s.pgfts)
	}
	return backends
}

// Search asks the first healthy backend and falls through to the next on
// error.
func (s *Service) Search(q Query) Response {
	for _, backend := range s.backends() {
		if !backend.Healthy() {
			continue
		}
		results, total, err := backend.Search(q)
		if err != nil {
			log.Printf("search: backend error, trying next: %v", err)
			continue
		}
		return Response{Results: nonNil(results), Total: total, Query: q.Text}
	}
	return Response{Results: []Result{}, Total: 0, Query: q.Text}
}

// IndexContent indexes a saved content record, fire-and-forget. Postgres is
// the source of truth; a missed index write is repaired by the next reindex.
func (s *Service) IndexContent(doc ContentDoc) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexContent(doc); err != nil {
			log.Printf("search: index content %s: %v", doc.ID, err)
		}
	}()
}

// DeleteContent removes a content record from the search index.
func (s *Service) DeleteContent(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteContent(id); err != nil {
			log.Printf("search: delete content %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reads every content record from Postgres and pushes them
// to Meilisearch. Called at boot when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	docs, err := s.pgfts.LoadAllContent(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(docs) == 0 {
		return
	}
	if err := s.meili.IndexContents(docs); err != nil {
		log.Printf("search: reindex content: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
