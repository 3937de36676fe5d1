// Package pipeline holds the authoring pipeline state: the snapshot store,
// overlay resolution, the structured outline editor, the phase transition
// controller and the optimistic reorder protocol.
package pipeline

import "sync"

type Phase string

const (
	PhaseInput         Phase = "input"
	PhaseAngles        Phase = "angles"
	PhaseContext       Phase = "context"
	PhaseOutline       Phase = "outline"
	PhaseHookSelection Phase = "hook_selection"
	PhaseWriting       Phase = "writing"
	PhaseSaved         Phase = "saved"
)

var phaseRank = map[Phase]int{
	PhaseInput:         0,
	PhaseAngles:        1,
	PhaseContext:       2,
	PhaseOutline:       3,
	PhaseHookSelection: 4,
	PhaseWriting:       5,
	PhaseSaved:         6,
}

func (p Phase) Valid() bool {
	_, ok := phaseRank[p]
	return ok
}

func (p Phase) Rank() int {
	return phaseRank[p]
}

type ContentType string

const (
	ContentTypePost            ContentType = "post"
	ContentTypeLinkedInArticle ContentType = "linkedin_article"
	ContentTypeSEOArticle      ContentType = "seo_article"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentTypePost, ContentTypeLinkedInArticle, ContentTypeSEOArticle:
		return true
	}
	return false
}

type Angle struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Rationale string `json:"rationale,omitempty"`
}

type Insight struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

type Story struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Framework struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Quote struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type ICPProfile struct {
	Segment    string   `json:"segment,omitempty"`
	PainPoints []string `json:"painPoints,omitempty"`
}

// ContextBundle is the curated supporting material gathered between angle
// selection and outline generation. Insight selection flags are mutable only
// while the pipeline is in the context phase.
type ContextBundle struct {
	Insights   []Insight   `json:"insights,omitempty"`
	Stories    []Story     `json:"stories,omitempty"`
	Frameworks []Framework `json:"frameworks,omitempty"`
	Quotes     []Quote     `json:"quotes,omitempty"`
	ICP        ICPProfile  `json:"icp,omitempty"`
}

func (b ContextBundle) clone() ContextBundle {
	out := b
	out.Insights = append([]Insight(nil), b.Insights...)
	out.Stories = append([]Story(nil), b.Stories...)
	out.Frameworks = append([]Framework(nil), b.Frameworks...)
	out.Quotes = append([]Quote(nil), b.Quotes...)
	out.ICP.PainPoints = append([]string(nil), b.ICP.PainPoints...)
	return out
}

// SelectedInsights returns the insights whose selection flag is set, in order.
func (b ContextBundle) SelectedInsights() []Insight {
	selected := make([]Insight, 0, len(b.Insights))
	for _, insight := range b.Insights {
		if insight.Selected {
			selected = append(selected, insight)
		}
	}
	return selected
}

// Snapshot is the canonical last-known-good state of one authoring session.
// Canonical artifacts are only replaced by successful generation commits;
// user edits live in the overlay fields so revert and edited-detection stay
// well defined.
type Snapshot struct {
	Phase           Phase       `json:"phase"`
	ContentType     ContentType `json:"contentType"`
	RawInput        string      `json:"rawInput"`
	Strategy        string      `json:"strategy,omitempty"`
	AngleCandidates []Angle     `json:"angleCandidates,omitempty"`
	SelectedAngleID string      `json:"selectedAngleId,omitempty"`

	Context         ContextBundle `json:"context"`
	ContextApproved bool          `json:"contextApproved"`

	CanonicalOutline *Outline `json:"canonicalOutline,omitempty"`
	OutlineOverlay   *Outline `json:"outlineOverlay,omitempty"`

	SelectedHookID   string `json:"selectedHookId,omitempty"`
	SelectedTemplate string `json:"selectedTemplate,omitempty"`

	CanonicalDraft string  `json:"canonicalDraft,omitempty"`
	DraftOverlay   *string `json:"draftOverlay,omitempty"`

	ImagePrompts []string `json:"imagePrompts,omitempty"`

	SessionRecordID string `json:"sessionRecordId,omitempty"`

	// Version increments on every commit and tags generation requests so
	// late responses for superseded state can be detected.
	Version uint64 `json:"version"`
}

func (s Snapshot) Clone() Snapshot {
	out := s
	out.AngleCandidates = append([]Angle(nil), s.AngleCandidates...)
	out.Context = s.Context.clone()
	if s.CanonicalOutline != nil {
		cloned := s.CanonicalOutline.Clone()
		out.CanonicalOutline = &cloned
	}
	if s.OutlineOverlay != nil {
		cloned := s.OutlineOverlay.Clone()
		out.OutlineOverlay = &cloned
	}
	if s.DraftOverlay != nil {
		draft := *s.DraftOverlay
		out.DraftOverlay = &draft
	}
	out.ImagePrompts = append([]string(nil), s.ImagePrompts...)
	return out
}

// SelectedAngle resolves the selected angle against the candidate list.
// A selection that no longer matches a candidate reads as none selected.
func (s Snapshot) SelectedAngle() (Angle, bool) {
	if s.SelectedAngleID == "" {
		return Angle{}, false
	}
	for _, candidate := range s.AngleCandidates {
		if candidate.ID == s.SelectedAngleID {
			return candidate, true
		}
	}
	return Angle{}, false
}

// EffectiveOutline resolves the outline overlay against the canonical value.
func (s Snapshot) EffectiveOutline() Resolution[Outline] {
	var canonical Outline
	if s.CanonicalOutline != nil {
		canonical = *s.CanonicalOutline
	}
	return Resolve(canonical, s.OutlineOverlay)
}

// EffectiveDraft resolves the draft overlay against the canonical draft.
func (s Snapshot) EffectiveDraft() Resolution[string] {
	return Resolve(s.CanonicalDraft, s.DraftOverlay)
}

// Patch is a partial snapshot update. Nil fields are left unchanged; the
// Clear flags distinguish "reset the overlay" from "leave it alone".
type Patch struct {
	Phase           *Phase
	ContentType     *ContentType
	RawInput        *string
	Strategy        *string
	AngleCandidates []Angle
	SelectedAngleID *string
	Context         *ContextBundle
	ContextApproved *bool

	CanonicalOutline    *Outline
	OutlineOverlay      *Outline
	ClearOutlineOverlay bool

	SelectedHookID   *string
	SelectedTemplate *string

	CanonicalDraft    *string
	DraftOverlay      *string
	ClearDraftOverlay bool

	ImagePrompts []string

	SessionRecordID *string
}

// Store owns one Snapshot. It is an injected container, not a singleton:
// readers subscribe for change notification and every mutation goes through
// Commit, which is total and never rejects a patch.
type Store struct {
	mu   sync.Mutex
	snap Snapshot
	subs []func(Snapshot)
}

func NewStore(initial Snapshot) *Store {
	if !initial.Phase.Valid() {
		initial.Phase = PhaseInput
	}
	return &Store{snap: initial}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Subscribe registers a reader notified after every commit.
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Commit applies a partial update and returns the new snapshot. Selections
// that no longer reference a live candidate are cleared rather than kept:
// replacing the canonical outline always drops the hook/template selection
// and any stale outline overlay, and angle selections are pruned against the
// candidate list.
func (s *Store) Commit(patch Patch) Snapshot {
	s.mu.Lock()
	next := s.snap.Clone()

	if patch.Phase != nil && patch.Phase.Valid() {
		next.Phase = *patch.Phase
	}
	if patch.ContentType != nil {
		next.ContentType = *patch.ContentType
	}
	if patch.RawInput != nil {
		next.RawInput = *patch.RawInput
	}
	if patch.Strategy != nil {
		next.Strategy = *patch.Strategy
	}
	if patch.AngleCandidates != nil {
		next.AngleCandidates = append([]Angle(nil), patch.AngleCandidates...)
	}
	if patch.SelectedAngleID != nil {
		next.SelectedAngleID = *patch.SelectedAngleID
	}
	if patch.Context != nil {
		next.Context = patch.Context.clone()
	}
	if patch.ContextApproved != nil {
		next.ContextApproved = *patch.ContextApproved
	}
	if patch.CanonicalOutline != nil {
		cloned := patch.CanonicalOutline.Clone()
		next.CanonicalOutline = &cloned
		next.OutlineOverlay = nil
		next.SelectedHookID = ""
		next.SelectedTemplate = ""
	}
	if patch.OutlineOverlay != nil {
		cloned := patch.OutlineOverlay.Clone()
		next.OutlineOverlay = &cloned
	}
	if patch.ClearOutlineOverlay {
		next.OutlineOverlay = nil
	}
	if patch.SelectedHookID != nil {
		next.SelectedHookID = *patch.SelectedHookID
	}
	if patch.SelectedTemplate != nil {
		next.SelectedTemplate = *patch.SelectedTemplate
	}
	if patch.CanonicalDraft != nil {
		next.CanonicalDraft = *patch.CanonicalDraft
		next.DraftOverlay = nil
	}
	if patch.DraftOverlay != nil {
		draft := *patch.DraftOverlay
		next.DraftOverlay = &draft
	}
	if patch.ClearDraftOverlay {
		next.DraftOverlay = nil
	}
	if patch.ImagePrompts != nil {
		next.ImagePrompts = append([]string(nil), patch.ImagePrompts...)
	}
	if patch.SessionRecordID != nil {
		next.SessionRecordID = *patch.SessionRecordID
	}

	pruneStaleSelections(&next)
	next.Version = s.snap.Version + 1
	s.snap = next

	published := next.Clone()
	subs := append([]func(Snapshot){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(published)
	}
	return published
}

func pruneStaleSelections(snap *Snapshot) {
	if snap.SelectedAngleID != "" {
		if _, ok := snap.SelectedAngle(); !ok {
			snap.SelectedAngleID = ""
		}
	}
	if snap.SelectedHookID != "" {
		if snap.CanonicalOutline == nil || !snap.CanonicalOutline.HasHook(snap.SelectedHookID) {
			snap.SelectedHookID = ""
		}
	}
}
