package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Generator is the boundary to the remote generation service. The pipeline
// never inspects how artifacts are produced; it only commits results.
type Generator interface {
	GenerateAngles(ctx context.Context, req AngleRequest) (AngleResult, error)
	GenerateOutline(ctx context.Context, req OutlineRequest) (OutlineResult, error)
	GenerateDraft(ctx context.Context, req DraftRequest) (DraftResult, error)
}

type AngleRequest struct {
	RawInput    string      `json:"rawInput"`
	Strategy    string      `json:"strategy,omitempty"`
	ContentType ContentType `json:"contentType"`
	AuthorID    string      `json:"authorId"`
}

type AngleResult struct {
	AngleCandidates []Angle       `json:"angleCandidates"`
	Context         ContextBundle `json:"contextBundle"`
	SessionRecordID string        `json:"sessionRecordId,omitempty"`
}

type OutlineRequest struct {
	SelectedAngle Angle         `json:"selectedAngle"`
	Context       ContextBundle `json:"approvedContextBundle"`
}

type OutlineResult struct {
	Outline Outline `json:"outline"`
}

type DraftRequest struct {
	Outline          Outline     `json:"effectiveOutline"`
	ContentType      ContentType `json:"contentType"`
	SelectedHook     *Hook       `json:"selectedHook,omitempty"`
	SelectedTemplate string      `json:"selectedTemplate,omitempty"`
}

type DraftResult struct {
	DraftBody    string            `json:"draftBody"`
	ImagePrompts []string          `json:"imagePrompts,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ValidationError rejects a transition locally, before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ErrGenerationInFlight rejects a second transition while a generation call
// for the same session is outstanding.
var ErrGenerationInFlight = errors.New("a generation call is already in flight for this session")

type generationSlot string

const (
	slotAngles  generationSlot = "angles"
	slotOutline generationSlot = "outline"
	slotDraft   generationSlot = "draft"
)

// Controller validates phase transitions, invokes the generation boundary
// and commits results into the snapshot store. Transitions are strictly
// sequential per session; each outstanding request is tagged with the slot
// and snapshot version it targets, and responses arriving for superseded
// state are discarded.
type Controller struct {
	store *Store
	gen   Generator
	logf  func(format string, args ...any)

	mu       sync.Mutex
	inflight generationSlot
	seq      uint64
	active   uint64
}

func NewController(store *Store, gen Generator) *Controller {
	return &Controller{store: store, gen: gen, logf: log.Printf}
}

func (c *Controller) Store() *Store {
	return c.store
}

// begin claims the single generation slot. The returned sequence number
// identifies this request when the response comes back.
func (c *Controller) begin(slot generationSlot) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight != "" {
		return 0, ErrGenerationInFlight
	}
	c.seq++
	c.inflight = slot
	c.active = c.seq
	return c.seq, nil
}

func (c *Controller) end(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == seq {
		c.inflight = ""
	}
}

// current reports whether a response for the given request sequence may
// still be committed: the request must not have been superseded by a newer
// one and the snapshot must still sit in the phase the request targeted.
func (c *Controller) current(seq uint64, phase Phase) bool {
	c.mu.Lock()
	active := c.active == seq
	c.mu.Unlock()
	if !active {
		return false
	}
	return c.store.Snapshot().Phase == phase
}

// GenerateAngles drives input → angles. Requires a non-empty raw input; on
// success commits the candidate list, the context bundle, and the session
// record ID when the service issued a new one.
func (c *Controller) GenerateAngles(ctx context.Context, authorID string) (Snapshot, error) {
	snap := c.store.Snapshot()
	if snap.Phase != PhaseInput {
		return snap, invalid("angle generation is only valid in the input phase (current: %s)", snap.Phase)
	}
	if strings.TrimSpace(snap.RawInput) == "" {
		return snap, invalid("raw input is required before requesting angles")
	}

	seq, err := c.begin(slotAngles)
	if err != nil {
		return snap, err
	}
	defer c.end(seq)

	result, err := c.gen.GenerateAngles(ctx, AngleRequest{
		RawInput:    snap.RawInput,
		Strategy:    snap.Strategy,
		ContentType: snap.ContentType,
		AuthorID:    authorID,
	})
	if err != nil {
		return snap, fmt.Errorf("angle generation: %w", err)
	}
	if !c.current(seq, snap.Phase) {
		c.logf("pipeline: discarding stale angle response (seq %d)", seq)
		return c.store.Snapshot(), nil
	}

	phase := PhaseAngles
	patch := Patch{
		Phase:           &phase,
		AngleCandidates: result.AngleCandidates,
		Context:         &result.Context,
	}
	if result.SessionRecordID != "" && snap.SessionRecordID == "" {
		patch.SessionRecordID = &result.SessionRecordID
	}
	return c.store.Commit(patch), nil
}

// SelectAngle drives angles → context. Pure local transition.
func (c *Controller) SelectAngle(angleID string) (Snapshot, error) {
	snap := c.store.Snapshot()
	if snap.Phase != PhaseAngles {
		return snap, invalid("angle selection is only valid in the angles phase (current: %s)", snap.Phase)
	}
	found := false
	for _, candidate := range snap.AngleCandidates {
		if candidate.ID == angleID {
			found = true
			break
		}
	}
	if !found {
		return snap, invalid("angle %q is not among the generated candidates", angleID)
	}
	phase := PhaseContext
	return c.store.Commit(Patch{Phase: &phase, SelectedAngleID: &angleID}), nil
}

// ToggleInsight flips an insight's selection flag. The context bundle is
// mutable only while the pipeline sits in the context phase.
func (c *Controller) ToggleInsight(insightID string, selected bool) (Snapshot, error) {
	snap := c.store.Snapshot()
	if snap.Phase != PhaseContext {
		return snap, invalid("insights can only be curated in the context phase (current: %s)", snap.Phase)
	}
	bundle := snap.Context
	found := false
	for i := range bundle.Insights {
		if bundle.Insights[i].ID == insightID {
			bundle.Insights[i].Selected = selected
			found = true
			break
		}
	}
	if !found {
		return snap, invalid("insight %q is not part of the context bundle", insightID)
	}
	return c.store.Commit(Patch{Context: &bundle}), nil
}

// ApproveContext drives context → outline. The approval freezes the insight
// selection flags into the outline request; on success the generated outline
// becomes canonical and any stale overlay is dropped.
func (c *Controller) ApproveContext(ctx context.Context) (Snapshot, error) {
	snap := c.store.Snapshot()
	if snap.Phase != PhaseContext {
		return snap, invalid("context approval is only valid in the context phase (current: %s)", snap.Phase)
	}
	angle, ok := snap.SelectedAngle()
	if !ok {
		return snap, invalid("an angle must be selected before approving context")
	}

	seq, err := c.begin(slotOutline)
	if err != nil {
		return snap, err
	}
	defer c.end(seq)

	approved := snap.Context.clone()
	approved.Insights = snap.Context.SelectedInsights()
	result, err := c.gen.GenerateOutline(ctx, OutlineRequest{
		SelectedAngle: angle,
		Context:       approved,
	})
	if err != nil {
		return snap, fmt.Errorf("outline generation: %w", err)
	}
	if !c.current(seq, snap.Phase) {
		c.logf("pipeline: discarding stale outline response (seq %d)", seq)
		return c.store.Snapshot(), nil
	}

	phase := PhaseOutline
	approvedFlag := true
	return c.store.Commit(Patch{
		Phase:               &phase,
		ContextApproved:     &approvedFlag,
		CanonicalOutline:    &result.Outline,
		ClearOutlineOverlay: true,
	}), nil
}

// AdvanceFromOutline leaves the outline phase. When the effective outline
// carries hook candidates the pipeline stops at hook selection (local, no
// network); otherwise the hook step is skipped and the draft is generated
// immediately.
func (c *Controller) AdvanceFromOutline(ctx context.Context) (Snapshot, error) {
	snap := c.store.Snapshot()
	if snap.Phase != PhaseOutline {
		return snap, invalid("cannot advance to writing from phase %s", snap.Phase)
	}
	if snap.CanonicalOutline == nil {
		return snap, invalid("an outline must be generated before advancing")
	}
	if len(snap.EffectiveOutline().Effective.Hooks) > 0 {
		phase := PhaseHookSelection
		return c.store.Commit(Patch{Phase: &phase}), nil
	}
	return c.generateDraft(ctx, snap)
}

// SelectHook records the hook choice during hook selection.
func (c *Controller) SelectHook(hookID string) (Snapshot, error) {
	snap := c.store.Snapshot()
	if snap.Phase != PhaseHookSelection {
		return snap, invalid("hook selection is only valid in the hook_selection phase (current: %s)", snap.Phase)
	}
	if snap.CanonicalOutline == nil || !snap.CanonicalOutline.HasHook(hookID) {
		return snap, invalid("hook %q is not present in the outline", hookID)
	}
	return c.store.Commit(Patch{SelectedHookID: &hookID}), nil
}

// SelectTemplate records the template choice during hook selection. The
// template must be recommended by the outline; catalog-level validation is
// the caller's concern.
func (c *Controller) SelectTemplate(name string) (Snapshot, error) {
	snap := c.store.Snapshot()
	if snap.Phase != PhaseHookSelection {
		return snap, invalid("template selection is only valid in the hook_selection phase (current: %s)", snap.Phase)
	}
	if snap.CanonicalOutline == nil || !snap.CanonicalOutline.RecommendsTemplate(name) {
		return snap, invalid("template %q is not recommended by the outline", name)
	}
	return c.store.Commit(Patch{SelectedTemplate: &name}), nil
}

// GenerateDraft drives hook_selection → writing.
func (c *Controller) GenerateDraft(ctx context.Context) (Snapshot, error) {
	snap := c.store.Snapshot()
	if snap.Phase != PhaseHookSelection {
		return snap, invalid("draft generation is only valid after the outline phase (current: %s)", snap.Phase)
	}
	return c.generateDraft(ctx, snap)
}

func (c *Controller) generateDraft(ctx context.Context, snap Snapshot) (Snapshot, error) {
	seq, err := c.begin(slotDraft)
	if err != nil {
		return snap, err
	}
	defer c.end(seq)

	req := DraftRequest{
		Outline:          snap.EffectiveOutline().Effective,
		ContentType:      snap.ContentType,
		SelectedTemplate: snap.SelectedTemplate,
	}
	if snap.SelectedHookID != "" && snap.CanonicalOutline != nil {
		for _, hook := range snap.CanonicalOutline.Hooks {
			if hook.ID == snap.SelectedHookID {
				selected := hook
				req.SelectedHook = &selected
				break
			}
		}
	}
	result, err := c.gen.GenerateDraft(ctx, req)
	if err != nil {
		return snap, fmt.Errorf("draft generation: %w", err)
	}
	if !c.current(seq, snap.Phase) {
		c.logf("pipeline: discarding stale draft response (seq %d)", seq)
		return c.store.Snapshot(), nil
	}

	phase := PhaseWriting
	return c.store.Commit(Patch{
		Phase:             &phase,
		CanonicalDraft:    &result.DraftBody,
		ClearDraftOverlay: true,
		ImagePrompts:      result.ImagePrompts,
	}), nil
}

// ReviseOutline is the writing → outline revision loop: the user returns to
// outline editing without losing the selected angle or context bundle. The
// canonical draft is discarded so re-entry to writing regenerates it.
func (c *Controller) ReviseOutline() (Snapshot, error) {
	snap := c.store.Snapshot()
	if snap.Phase != PhaseWriting {
		return snap, invalid("outline revision is only valid in the writing phase (current: %s)", snap.Phase)
	}
	phase := PhaseOutline
	empty := ""
	return c.store.Commit(Patch{
		Phase:             &phase,
		CanonicalDraft:    &empty,
		ClearDraftOverlay: true,
	}), nil
}

// EditOutline applies a structured editor operation to the overlay, creating
// the overlay from the canonical outline on first edit.
func (c *Controller) EditOutline(op func(Outline) Outline) (Snapshot, error) {
	snap := c.store.Snapshot()
	if snap.Phase.Rank() < PhaseOutline.Rank() || snap.Phase == PhaseSaved {
		return snap, invalid("outline edits require an outline phase or later (current: %s)", snap.Phase)
	}
	base := snap.EffectiveOutline().Effective
	edited := op(base)
	return c.store.Commit(Patch{OutlineOverlay: &edited}), nil
}

// ResetOutline clears the overlay, reverting to the canonical outline.
func (c *Controller) ResetOutline() Snapshot {
	return c.store.Commit(Patch{ClearOutlineOverlay: true})
}

// SetDraftOverlay records a local draft edit.
func (c *Controller) SetDraftOverlay(text string) (Snapshot, error) {
	snap := c.store.Snapshot()
	if snap.Phase != PhaseWriting && snap.Phase != PhaseSaved {
		return snap, invalid("draft edits require the writing phase (current: %s)", snap.Phase)
	}
	return c.store.Commit(Patch{DraftOverlay: &text}), nil
}

// ResetDraft clears the draft overlay, reverting to the canonical draft.
func (c *Controller) ResetDraft() Snapshot {
	return c.store.Commit(Patch{ClearDraftOverlay: true})
}

// MarkSaved drives writing → saved after a successful persistence call.
// Saving again from the saved phase is allowed and idempotent.
func (c *Controller) MarkSaved(sessionRecordID string) (Snapshot, error) {
	snap := c.store.Snapshot()
	if snap.Phase != PhaseWriting && snap.Phase != PhaseSaved {
		return snap, invalid("saving is only valid from the writing phase (current: %s)", snap.Phase)
	}
	phase := PhaseSaved
	return c.store.Commit(Patch{Phase: &phase, SessionRecordID: &sessionRecordID}), nil
}
