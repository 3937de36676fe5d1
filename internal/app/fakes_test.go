package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"studio/api/internal/drafthist"
	"studio/api/internal/pipeline"
	"studio/api/internal/search"
	"studio/api/internal/session"
	"studio/api/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]store.User
	sessions map[string]store.AuthoringSession
	content  map[string]store.ContentRecord

	insertErr  error
	reorderErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]store.User),
		sessions: make(map[string]store.AuthoringSession),
		content:  make(map[string]store.ContentRecord),
	}
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) CreateUser(_ context.Context, user store.User) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) UpsertAuthoringSession(_ context.Context, sess store.AuthoringSession) (store.AuthoringSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.sessions[sess.ID]
	if ok {
		sess.CreatedAt = existing.CreatedAt
	} else {
		sess.CreatedAt = time.Now()
	}
	sess.UpdatedAt = time.Now()
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeStore) InsertContentRecord(_ context.Context, record store.ContentRecord) (store.ContentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return store.ContentRecord{}, f.insertErr
	}
	for _, existing := range f.content {
		if existing.SessionID == record.SessionID && existing.Version >= record.Version {
			record.Version = existing.Version + 1
		}
		if existing.OwnerID == record.OwnerID && existing.DisplayOrder >= record.DisplayOrder {
			record.DisplayOrder = existing.DisplayOrder + 1
		}
	}
	if record.Version == 0 {
		record.Version = 1
	}
	if record.DisplayOrder == 0 {
		record.DisplayOrder = 1
	}
	record.CreatedAt = time.Now()
	f.content[record.ID] = record
	return record, nil
}

func (f *fakeStore) GetContentRecord(_ context.Context, id string) (store.ContentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.content[id]
	if !ok {
		return store.ContentRecord{}, store.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) DeleteContentRecord(_ context.Context, ownerID, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.content[recordID]
	if !ok || record.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(f.content, recordID)
	return nil
}

func (f *fakeStore) ListContentByOwner(_ context.Context, ownerID string) ([]store.ContentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records []store.ContentRecord
	for _, record := range f.content {
		if record.OwnerID == ownerID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DisplayOrder < records[j].DisplayOrder
	})
	return records, nil
}

func (f *fakeStore) ListSessionVersions(_ context.Context, sessionID string) ([]store.ContentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records []store.ContentRecord
	for _, record := range f.content {
		if record.SessionID == sessionID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Version > records[j].Version
	})
	return records, nil
}

func (f *fakeStore) UpdateSavedOrder(_ context.Context, ownerID string, orderedIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reorderErr != nil {
		return f.reorderErr
	}
	owned := 0
	for _, record := range f.content {
		if record.OwnerID == ownerID {
			owned++
		}
	}
	if owned != len(orderedIDs) {
		return fmt.Errorf("expected %d ids, got %d", owned, len(orderedIDs))
	}
	for position, id := range orderedIDs {
		record, ok := f.content[id]
		if !ok || record.OwnerID != ownerID {
			return fmt.Errorf("record %s does not belong to %s", id, ownerID)
		}
		record.DisplayOrder = position + 1
		f.content[id] = record
	}
	return nil
}

type fakeSnapshots struct {
	mu    sync.Mutex
	snaps map[string]pipeline.Snapshot
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{snaps: make(map[string]pipeline.Snapshot)}
}

func (f *fakeSnapshots) Save(_ context.Context, id string, snap pipeline.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[id] = snap.Clone()
	return nil
}

func (f *fakeSnapshots) Load(_ context.Context, id string) (pipeline.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snaps[id]
	if !ok {
		return pipeline.Snapshot{}, session.ErrNotFound
	}
	return snap.Clone(), nil
}

func (f *fakeSnapshots) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snaps, id)
	return nil
}

func (f *fakeSnapshots) Touch(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snaps[id]; !ok {
		return session.ErrNotFound
	}
	return nil
}

type fakeGenerator struct {
	hooks     bool
	draftBody string
}

func (g *fakeGenerator) GenerateAngles(_ context.Context, req pipeline.AngleRequest) (pipeline.AngleResult, error) {
	return pipeline.AngleResult{
		AngleCandidates: []pipeline.Angle{
			{ID: "ang_1", Title: "The contrarian take on " + req.RawInput},
			{ID: "ang_2", Title: "A field story"},
		},
		Context: pipeline.ContextBundle{
			Insights: []pipeline.Insight{
				{ID: "ins_1", Text: "Most teams over-invest here", Selected: true},
				{ID: "ins_2", Text: "The market moved last quarter"},
			},
		},
	}, nil
}

func (g *fakeGenerator) GenerateOutline(_ context.Context, req pipeline.OutlineRequest) (pipeline.OutlineResult, error) {
	outline := pipeline.Outline{
		Title: req.SelectedAngle.Title,
		Sections: []pipeline.Section{
			{Heading: "Opening", KeyPoints: []string{"set the scene"}},
			{Heading: "The argument", KeyPoints: []string{"main claim", "supporting data"}},
		},
		TemplateRecommendations: []string{"listicle"},
	}
	if g.hooks {
		outline.Hooks = []pipeline.Hook{
			{ID: "hk_1", Text: "Nobody talks about this"},
			{ID: "hk_2", Text: "I was wrong for years"},
		}
	}
	return pipeline.OutlineResult{Outline: outline}, nil
}

func (g *fakeGenerator) GenerateDraft(_ context.Context, req pipeline.DraftRequest) (pipeline.DraftResult, error) {
	body := g.draftBody
	if body == "" {
		body = "Generated draft for " + req.Outline.Title
	}
	return pipeline.DraftResult{DraftBody: body, ImagePrompts: []string{"a lighthouse at dusk"}}, nil
}

type fakeDrafts struct {
	mu      sync.Mutex
	commits map[string][]drafthist.CommitInfo
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{commits: make(map[string][]drafthist.CommitInfo)}
}

func (f *fakeDrafts) EnsureSessionRepo(string) error { return nil }

func (f *fakeDrafts) CommitDraft(sessionID, draft, outlineJSON, author, message string) (drafthist.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := drafthist.CommitInfo{
		Hash:      fmt.Sprintf("%07d", len(f.commits[sessionID])+1),
		Message:   message,
		Author:    author,
		CreatedAt: time.Now(),
	}
	f.commits[sessionID] = append([]drafthist.CommitInfo{info}, f.commits[sessionID]...)
	return info, nil
}

func (f *fakeDrafts) History(sessionID string, limit int) ([]drafthist.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	commits := f.commits[sessionID]
	if limit > 0 && len(commits) > limit {
		commits = commits[:limit]
	}
	return append([]drafthist.CommitInfo(nil), commits...), nil
}

func (f *fakeDrafts) GetVersion(sessionID, hash string) (drafthist.Version, error) {
	return drafthist.Version{}, fmt.Errorf("not implemented")
}

type fakeSearcher struct {
	mu   sync.Mutex
	docs []search.ContentDoc
}

func (f *fakeSearcher) IndexContent(doc search.ContentDoc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
}

func (f *fakeSearcher) DeleteContent(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.docs[:0]
	for _, doc := range f.docs {
		if doc.ID != id {
			kept = append(kept, doc)
		}
	}
	f.docs = kept
}

func (f *fakeSearcher) Search(q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := []search.Result{}
	for _, doc := range f.docs {
		if doc.OwnerID != q.OwnerID {
			continue
		}
		results = append(results, search.Result{
			ID:          doc.ID,
			SessionID:   doc.SessionID,
			ContentType: doc.ContentType,
			Title:       doc.Title,
			Snippet:     doc.Body,
			Version:     doc.Version,
		})
	}
	return search.Response{Results: results, Total: len(results), Query: q.Text}
}
