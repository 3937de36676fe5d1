package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"studio/api/internal/auth"
	"studio/api/internal/config"
	"studio/api/internal/drafthist"
	"studio/api/internal/export"
	"studio/api/internal/pipeline"
	"studio/api/internal/search"
	"studio/api/internal/store"
	"studio/api/internal/templates"
	"studio/api/internal/util"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	JTI       string
	ExpiresAt time.Time
}

// OutlineEditInput is one structured outline editor operation. Fields beyond
// Op are read per operation; unused ones are ignored.
type OutlineEditInput struct {
	Op        string `json:"op"`
	Section   int    `json:"section"`
	Point     int    `json:"point"`
	Direction int    `json:"direction"`
	Heading   string `json:"heading"`
	Text      string `json:"text"`
}

type dataStore interface {
	CreateUser(context.Context, store.User) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	UpsertAuthoringSession(context.Context, store.AuthoringSession) (store.AuthoringSession, error)
	InsertContentRecord(context.Context, store.ContentRecord) (store.ContentRecord, error)
	GetContentRecord(context.Context, string) (store.ContentRecord, error)
	ListContentByOwner(context.Context, string) ([]store.ContentRecord, error)
	ListSessionVersions(context.Context, string) ([]store.ContentRecord, error)
	DeleteContentRecord(ctx context.Context, ownerID, recordID string) error
	UpdateSavedOrder(context.Context, string, []string) error
	Ping(ctx context.Context) error
}

type snapshotStore interface {
	Save(context.Context, string, pipeline.Snapshot) error
	Load(context.Context, string) (pipeline.Snapshot, error)
	Delete(context.Context, string) error
	Touch(context.Context, string) error
}

type draftHistory interface {
	EnsureSessionRepo(string) error
	CommitDraft(sessionID, draft, outlineJSON, author, message string) (drafthist.CommitInfo, error)
	History(sessionID string, limit int) ([]drafthist.CommitInfo, error)
	GetVersion(sessionID, hash string) (drafthist.Version, error)
}

type contentSearcher interface {
	Search(search.Query) search.Response
	IndexContent(search.ContentDoc)
	DeleteContent(id string)
}

type exporter interface {
	Export(export.Request) (*export.Result, error)
}

type blobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
}

type Deps struct {
	Store     dataStore
	Snapshots snapshotStore
	Generator pipeline.Generator
	Drafts    draftHistory
	Search    contentSearcher
	Exporter  exporter
	Blobs     blobStore // nil disables artifact storage
	Catalog   *templates.Catalog
}

type Service struct {
	cfg       config.Config
	store     dataStore
	snapshots snapshotStore
	gen       pipeline.Generator
	drafts    draftHistory
	search    contentSearcher
	exporter  exporter
	blobs     blobStore
	catalog   *templates.Catalog

	busyMu sync.Mutex
	busy   map[string]bool

	reorderMu  sync.Mutex
	reorderers map[string]*pipeline.Reorderer[string]
}

func New(cfg config.Config, deps Deps) *Service {
	return &Service{
		cfg:        cfg,
		store:      deps.Store,
		snapshots:  deps.Snapshots,
		gen:        deps.Generator,
		drafts:     deps.Drafts,
		search:     deps.Search,
		exporter:   deps.Exporter,
		blobs:      deps.Blobs,
		catalog:    deps.Catalog,
		busy:       make(map[string]bool),
		reorderers: make(map[string]*pipeline.Reorderer[string]),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ── Auth ──

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (map[string]any, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	displayName = strings.TrimSpace(displayName)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a valid email is required", nil)
	}
	if displayName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "displayName is required", nil)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	user, err := s.store.CreateUser(ctx, store.User{
		ID:           util.NewID("usr"),
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	sess, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}
	return sessionPayload(sess), nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (map[string]any, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	sess, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}
	return sessionPayload(sess), nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) issueSession(user store.User) (Session, error) {
	expires := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  util.NewID("jti"),
		Exp:  expires.Unix(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		ExpiresAt: expires,
	}, nil
}

func sessionPayload(sess Session) map[string]any {
	return map[string]any{
		"accessToken": sess.Token,
		"userId":      sess.UserID,
		"userName":    sess.UserName,
		"expiresAt":   sess.ExpiresAt.Unix(),
	}
}

// ── Pipeline sessions ──

// acquire claims the per-session mutation slot without blocking. Operations
// on one authoring session are strictly sequential; a request arriving while
// another holds the slot is rejected, not queued.
func (s *Service) acquire(sessionID string) bool {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	if s.busy[sessionID] {
		return false
	}
	s.busy[sessionID] = true
	return true
}

func (s *Service) release(sessionID string) {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	delete(s.busy, sessionID)
}

// withPipeline hydrates the snapshot for one authoring session, runs the
// transition, and writes the snapshot back only when the transition
// succeeded. Failed transitions leave the stored snapshot untouched so retry
// is safe.
func (s *Service) withPipeline(ctx context.Context, sessionID string, fn func(*pipeline.Controller) (pipeline.Snapshot, error)) (map[string]any, error) {
	if !s.acquire(sessionID) {
		return nil, domainError(http.StatusConflict, "SESSION_BUSY", "Another operation on this session is in progress", nil)
	}
	defer s.release(sessionID)

	snap, err := s.snapshots.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ctrl := pipeline.NewController(pipeline.NewStore(snap), s.gen)
	next, err := fn(ctrl)
	if err != nil {
		return nil, err
	}
	if err := s.snapshots.Save(ctx, sessionID, next); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return snapshotView(sessionID, next), nil
}

func (s *Service) StartPipeline(ctx context.Context, sess Session, contentType, strategy, rawInput string) (map[string]any, error) {
	ct := pipeline.ContentType(contentType)
	if !ct.Valid() {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown content type %q", contentType), nil)
	}
	sessionID := util.NewID("pl")
	snap := pipeline.Snapshot{
		Phase:       pipeline.PhaseInput,
		ContentType: ct,
		Strategy:    strings.TrimSpace(strategy),
		RawInput:    rawInput,
	}
	if err := s.snapshots.Save(ctx, sessionID, snap); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return snapshotView(sessionID, snap), nil
}

func (s *Service) GetPipeline(ctx context.Context, sessionID string) (map[string]any, error) {
	snap, err := s.snapshots.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// Reading a session keeps it alive.
	_ = s.snapshots.Touch(ctx, sessionID)
	return snapshotView(sessionID, snap), nil
}

func (s *Service) GenerateAngles(ctx context.Context, sessionID string, sess Session, rawInput, strategy string) (map[string]any, error) {
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		patch := pipeline.Patch{}
		if trimmed := strings.TrimSpace(rawInput); trimmed != "" {
			patch.RawInput = &rawInput
		}
		if trimmed := strings.TrimSpace(strategy); trimmed != "" {
			patch.Strategy = &trimmed
		}
		if patch.RawInput != nil || patch.Strategy != nil {
			ctrl.Store().Commit(patch)
		}
		return ctrl.GenerateAngles(ctx, sess.UserID)
	})
}

func (s *Service) SelectAngle(ctx context.Context, sessionID, angleID string) (map[string]any, error) {
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		return ctrl.SelectAngle(angleID)
	})
}

func (s *Service) ToggleInsight(ctx context.Context, sessionID, insightID string, selected bool) (map[string]any, error) {
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		return ctrl.ToggleInsight(insightID, selected)
	})
}

func (s *Service) ApproveContext(ctx context.Context, sessionID string) (map[string]any, error) {
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		return ctrl.ApproveContext(ctx)
	})
}

func (s *Service) EditOutline(ctx context.Context, sessionID string, edits []OutlineEditInput) (map[string]any, error) {
	if len(edits) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at least one edit operation is required", nil)
	}
	ops := make([]func(pipeline.Outline) pipeline.Outline, 0, len(edits))
	for _, edit := range edits {
		op, err := outlineOp(edit)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		return ctrl.EditOutline(func(outline pipeline.Outline) pipeline.Outline {
			for _, op := range ops {
				outline = op(outline)
			}
			return outline
		})
	})
}

func outlineOp(edit OutlineEditInput) (func(pipeline.Outline) pipeline.Outline, error) {
	switch edit.Op {
	case "rename_section":
		return func(o pipeline.Outline) pipeline.Outline {
			return pipeline.RenameSection(o, edit.Section, edit.Heading)
		}, nil
	case "move_section":
		return func(o pipeline.Outline) pipeline.Outline {
			return pipeline.MoveSection(o, edit.Section, edit.Direction)
		}, nil
	case "add_section":
		return pipeline.AddSection, nil
	case "remove_section":
		return func(o pipeline.Outline) pipeline.Outline {
			return pipeline.RemoveSection(o, edit.Section)
		}, nil
	case "add_key_point":
		return func(o pipeline.Outline) pipeline.Outline {
			return pipeline.AddKeyPoint(o, edit.Section)
		}, nil
	case "update_key_point":
		return func(o pipeline.Outline) pipeline.Outline {
			return pipeline.UpdateKeyPoint(o, edit.Section, edit.Point, edit.Text)
		}, nil
	case "remove_key_point":
		return func(o pipeline.Outline) pipeline.Outline {
			return pipeline.RemoveKeyPoint(o, edit.Section, edit.Point)
		}, nil
	}
	return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown outline operation %q", edit.Op), nil)
}

func (s *Service) ResetOutline(ctx context.Context, sessionID string) (map[string]any, error) {
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		return ctrl.ResetOutline(), nil
	})
}

func (s *Service) SelectHook(ctx context.Context, sessionID, hookID string) (map[string]any, error) {
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		return ctrl.SelectHook(hookID)
	})
}

// SelectTemplate records the template choice. A valid template is either an
// entry in the loaded catalog or one the generated outline recommends.
func (s *Service) SelectTemplate(ctx context.Context, sessionID, name string) (map[string]any, error) {
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		if s.catalog != nil {
			if _, ok := s.catalog.Get(name); ok {
				snap := ctrl.Store().Snapshot()
				if snap.Phase != pipeline.PhaseHookSelection {
					return snap, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("template selection is only valid in the hook_selection phase (current: %s)", snap.Phase), nil)
				}
				return ctrl.Store().Commit(pipeline.Patch{SelectedTemplate: &name}), nil
			}
		}
		return ctrl.SelectTemplate(name)
	})
}

// AdvanceDraft drives the pipeline into the writing phase. From the outline
// phase the hook step may be skipped; from hook selection the draft is
// generated directly.
func (s *Service) AdvanceDraft(ctx context.Context, sessionID string) (map[string]any, error) {
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		if ctrl.Store().Snapshot().Phase == pipeline.PhaseOutline {
			return ctrl.AdvanceFromOutline(ctx)
		}
		return ctrl.GenerateDraft(ctx)
	})
}

func (s *Service) SetDraftOverlay(ctx context.Context, sessionID, text string) (map[string]any, error) {
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		return ctrl.SetDraftOverlay(text)
	})
}

func (s *Service) ResetDraft(ctx context.Context, sessionID string) (map[string]any, error) {
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		return ctrl.ResetDraft(), nil
	})
}

func (s *Service) ReviseOutline(ctx context.Context, sessionID string) (map[string]any, error) {
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		return ctrl.ReviseOutline()
	})
}

// SavePipeline is the persistence gateway: overlays are resolved to effective
// values, the authoring-session record is upserted (created on first save,
// reused after), and a new content record version is always appended. The
// snapshot only advances to saved after every durable write has succeeded, so
// a failed save can be retried without losing state.
func (s *Service) SavePipeline(ctx context.Context, sessionID string, sess Session) (map[string]any, error) {
	return s.withPipeline(ctx, sessionID, func(ctrl *pipeline.Controller) (pipeline.Snapshot, error) {
		snap := ctrl.Store().Snapshot()
		if snap.Phase != pipeline.PhaseWriting && snap.Phase != pipeline.PhaseSaved {
			return snap, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("saving is only valid from the writing phase (current: %s)", snap.Phase), nil)
		}

		outline := snap.EffectiveOutline()
		draft := snap.EffectiveDraft()
		if strings.TrimSpace(draft.Effective) == "" {
			return snap, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "the draft is empty; nothing to save", nil)
		}
		outlineJSON, err := json.Marshal(outline.Effective)
		if err != nil {
			return snap, fmt.Errorf("marshal outline: %w", err)
		}

		// The record ID is derived from the pipeline session, so a retry
		// after a partially failed first save upserts the same row instead
		// of creating an orphan.
		recordID := snap.SessionRecordID
		if recordID == "" {
			recordID = "as_" + strings.TrimPrefix(sessionID, "pl_")
		}
		title := saveTitle(snap)

		record, err := s.store.UpsertAuthoringSession(ctx, store.AuthoringSession{
			ID:          recordID,
			OwnerID:     sess.UserID,
			ContentType: string(snap.ContentType),
			Strategy:    snap.Strategy,
			Phase:       string(pipeline.PhaseSaved),
			AngleTitle:  title,
		})
		if err != nil {
			return snap, fmt.Errorf("upsert authoring session: %w", err)
		}

		content, err := s.store.InsertContentRecord(ctx, store.ContentRecord{
			ID:            util.NewID("cr"),
			SessionID:     record.ID,
			OwnerID:       sess.UserID,
			ContentType:   string(snap.ContentType),
			Title:         title,
			Body:          draft.Effective,
			OutlineJSON:   string(outlineJSON),
			OutlineEdited: outline.Edited,
			DraftEdited:   draft.Edited,
		})
		if err != nil {
			return snap, fmt.Errorf("insert content record: %w", err)
		}

		if err := s.drafts.EnsureSessionRepo(record.ID); err != nil {
			return snap, fmt.Errorf("ensure draft history: %w", err)
		}
		if _, err := s.drafts.CommitDraft(record.ID, draft.Effective, string(outlineJSON), sess.UserName, fmt.Sprintf("save version %d", content.Version)); err != nil {
			return snap, fmt.Errorf("commit draft version: %w", err)
		}

		s.search.IndexContent(search.ContentDoc{
			ID:          content.ID,
			SessionID:   record.ID,
			OwnerID:     sess.UserID,
			ContentType: content.ContentType,
			Title:       content.Title,
			Body:        content.Body,
			Version:     content.Version,
		})

		return ctrl.MarkSaved(record.ID)
	})
}

func saveTitle(snap pipeline.Snapshot) string {
	if angle, ok := snap.SelectedAngle(); ok && strings.TrimSpace(angle.Title) != "" {
		return angle.Title
	}
	outline := snap.EffectiveOutline().Effective
	if len(outline.Sections) > 0 && strings.TrimSpace(outline.Sections[0].Heading) != "" {
		return outline.Sections[0].Heading
	}
	return "Untitled"
}

func snapshotView(sessionID string, snap pipeline.Snapshot) map[string]any {
	outline := snap.EffectiveOutline()
	draft := snap.EffectiveDraft()
	view := map[string]any{
		"id":              sessionID,
		"phase":           snap.Phase,
		"contentType":     snap.ContentType,
		"rawInput":        snap.RawInput,
		"strategy":        snap.Strategy,
		"angleCandidates": snap.AngleCandidates,
		"selectedAngleId": snap.SelectedAngleID,
		"context":         snap.Context,
		"contextApproved": snap.ContextApproved,
		"outline":         outline.Effective,
		"outlineEdited":   outline.Edited,
		"selectedHookId":  snap.SelectedHookID,
		"template":        snap.SelectedTemplate,
		"draft":           draft.Effective,
		"draftEdited":     draft.Edited,
		"imagePrompts":    snap.ImagePrompts,
		"version":         snap.Version,
	}
	if snap.SessionRecordID != "" {
		view["sessionRecordId"] = snap.SessionRecordID
	}
	return view
}

// ── Saved content ──

func (s *Service) ListContent(ctx context.Context, ownerID string) (map[string]any, error) {
	records, err := s.store.ListContentByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	items := make([]map[string]any, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, record := range records {
		items = append(items, contentView(record))
		ids = append(ids, record.ID)
	}
	s.reordererFor(ownerID, ids).Sync(ids)
	return map[string]any{"content": items}, nil
}

// ReorderContent runs the optimistic reorder protocol for one owner's saved
// list: the new order is applied immediately and confirmed against the
// relational store; a rejected write rolls the list back to server truth.
func (s *Service) ReorderContent(ctx context.Context, ownerID string, orderedIDs []string) (map[string]any, error) {
	if len(orderedIDs) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "orderedIds is required", nil)
	}
	records, err := s.store.ListContentByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	confirmed := make([]string, 0, len(records))
	for _, record := range records {
		confirmed = append(confirmed, record.ID)
	}

	reorderer := s.reordererFor(ownerID, confirmed)
	reorderer.Sync(confirmed)
	display, err := reorderer.Reorder(ctx, orderedIDs)
	if err != nil {
		return nil, domainError(http.StatusConflict, "REORDER_REJECTED", "The reorder was rejected; the saved list was restored",
			map[string]any{"order": display})
	}
	return map[string]any{"order": display}, nil
}

func (s *Service) reordererFor(ownerID string, confirmed []string) *pipeline.Reorderer[string] {
	s.reorderMu.Lock()
	defer s.reorderMu.Unlock()
	if existing, ok := s.reorderers[ownerID]; ok {
		return existing
	}
	created := pipeline.NewReorderer(confirmed, func(ctx context.Context, order []string) error {
		return s.store.UpdateSavedOrder(ctx, ownerID, order)
	})
	s.reorderers[ownerID] = created
	return created
}

// DeleteContent removes one saved version and drops it from the search
// index. The owner's reorder state resyncs to the shrunken list so a pending
// reorder cannot resurrect the deleted id.
func (s *Service) DeleteContent(ctx context.Context, ownerID, recordID string) (map[string]any, error) {
	record, err := s.ownedRecord(ctx, ownerID, recordID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteContentRecord(ctx, ownerID, record.ID); err != nil {
		return nil, fmt.Errorf("delete content record: %w", err)
	}
	s.search.DeleteContent(record.ID)

	remaining, err := s.store.ListContentByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	ids := make([]string, 0, len(remaining))
	for _, rec := range remaining {
		ids = append(ids, rec.ID)
	}
	s.reordererFor(ownerID, ids).Sync(ids)
	return map[string]any{"deleted": record.ID, "order": ids}, nil
}

func (s *Service) ContentHistory(ctx context.Context, ownerID, recordID string) (map[string]any, error) {
	record, err := s.ownedRecord(ctx, ownerID, recordID)
	if err != nil {
		return nil, err
	}
	versions, err := s.store.ListSessionVersions(ctx, record.SessionID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	commits, err := s.drafts.History(record.SessionID, 50)
	if err != nil {
		return nil, fmt.Errorf("draft history: %w", err)
	}
	versionViews := make([]map[string]any, 0, len(versions))
	for _, version := range versions {
		versionViews = append(versionViews, contentView(version))
	}
	return map[string]any{
		"versions": versionViews,
		"commits":  commits,
	}, nil
}

func (s *Service) ExportContent(ctx context.Context, ownerID string, sess Session, recordID, format string) (*export.Result, map[string]any, error) {
	record, err := s.ownedRecord(ctx, ownerID, recordID)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.exporter.Export(export.Request{
		Title:       record.Title,
		Body:        record.Body,
		ContentType: record.ContentType,
		Author:      sess.UserName,
		SavedAt:     record.CreatedAt,
		Format:      export.Format(format),
	})
	if err != nil {
		return nil, nil, err
	}

	if s.blobs == nil {
		return result, nil, nil
	}
	key := fmt.Sprintf("exports/%s/v%d/%s", record.ID, record.Version, result.Filename)
	if err := s.blobs.Put(ctx, key, result.Data, result.MimeType); err != nil {
		return nil, nil, fmt.Errorf("store export artifact: %w", err)
	}
	url, err := s.blobs.PresignedURL(ctx, key, result.Filename, 15*time.Minute)
	if err != nil {
		return nil, nil, fmt.Errorf("presign export artifact: %w", err)
	}
	return nil, map[string]any{
		"url":      url,
		"filename": result.Filename,
		"mimeType": result.MimeType,
	}, nil
}

func (s *Service) ownedRecord(ctx context.Context, ownerID, recordID string) (store.ContentRecord, error) {
	record, err := s.store.GetContentRecord(ctx, recordID)
	if err != nil {
		return store.ContentRecord{}, err
	}
	if record.OwnerID != ownerID {
		return store.ContentRecord{}, store.ErrNotFound
	}
	return record, nil
}

func contentView(record store.ContentRecord) map[string]any {
	return map[string]any{
		"id":            record.ID,
		"sessionId":     record.SessionID,
		"contentType":   record.ContentType,
		"title":         record.Title,
		"body":          record.Body,
		"outlineEdited": record.OutlineEdited,
		"draftEdited":   record.DraftEdited,
		"version":       record.Version,
		"displayOrder":  record.DisplayOrder,
		"createdAt":     record.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ── Search and templates ──

func (s *Service) Search(ctx context.Context, ownerID, q, filterType string, limit, offset int) (map[string]any, error) {
	if strings.TrimSpace(q) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "q is required", nil)
	}
	response := s.search.Search(search.Query{
		Text:              q,
		OwnerID:           ownerID,
		FilterContentType: filterType,
		Limit:             limit,
		Offset:            offset,
	})
	return map[string]any{
		"results": response.Results,
		"total":   response.Total,
		"query":   response.Query,
	}, nil
}

func (s *Service) Templates(contentType string) map[string]any {
	if s.catalog == nil {
		return map[string]any{"templates": []templates.Template{}}
	}
	if strings.TrimSpace(contentType) != "" {
		return map[string]any{"templates": s.catalog.ForContentType(contentType)}
	}
	return map[string]any{"templates": s.catalog.All()}
}
