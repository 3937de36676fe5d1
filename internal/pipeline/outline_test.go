package pipeline

import (
	"encoding/json"
	"strings"
	"testing"
)

func threeSectionOutline() Outline {
	return Outline{
		Title: "Five tips for B2B founders",
		Sections: []Section{
			{Heading: "Intro", KeyPoints: []string{"hook the reader"}},
			{Heading: "Body", KeyPoints: []string{"tip one", "tip two"}},
			{Heading: "Close", KeyPoints: []string{"call to action"}},
		},
	}
}

func TestMoveSectionClampsAtBounds(t *testing.T) {
	outline := threeSectionOutline()

	up := MoveSection(outline, 0, -1)
	if up.Sections[0].Heading != "Intro" {
		t.Errorf("first section moved up, got %q at index 0", up.Sections[0].Heading)
	}
	down := MoveSection(outline, 2, 1)
	if down.Sections[2].Heading != "Close" {
		t.Errorf("last section moved down, got %q at index 2", down.Sections[2].Heading)
	}
}

func TestMoveSectionSwapsNeighbors(t *testing.T) {
	outline := threeSectionOutline()
	moved := MoveSection(outline, 1, -1)
	if moved.Sections[0].Heading != "Body" || moved.Sections[1].Heading != "Intro" {
		t.Fatalf("unexpected order after move: %q, %q", moved.Sections[0].Heading, moved.Sections[1].Heading)
	}
	if outline.Sections[0].Heading != "Intro" {
		t.Errorf("input outline was mutated")
	}
}

func TestAddSectionThenMoveTwice(t *testing.T) {
	canonical := threeSectionOutline()
	store := NewStore(Snapshot{Phase: PhaseOutline, CanonicalOutline: &canonical})

	overlay := AddSection(canonical)
	overlay = MoveSection(overlay, 3, -1)
	overlay = MoveSection(overlay, 2, -1)
	snap := store.Commit(Patch{OutlineOverlay: &overlay})

	res := snap.EffectiveOutline()
	if len(res.Effective.Sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(res.Effective.Sections))
	}
	if res.Effective.Sections[1].Heading != placeholderHeading {
		t.Errorf("expected new section at index 1, got %q", res.Effective.Sections[1].Heading)
	}
	if !res.Edited {
		t.Errorf("expected Edited to be true")
	}
	if len(snap.CanonicalOutline.Sections) != 3 {
		t.Errorf("canonical outline changed: %d sections", len(snap.CanonicalOutline.Sections))
	}
}

func TestRemoveAndKeyPointOps(t *testing.T) {
	outline := threeSectionOutline()

	outline = AddKeyPoint(outline, 0)
	if got := outline.Sections[0].KeyPoints; len(got) != 2 || got[1] != placeholderKeyPoint {
		t.Fatalf("unexpected key points after add: %v", got)
	}
	outline = UpdateKeyPoint(outline, 0, 1, "state the problem")
	if outline.Sections[0].KeyPoints[1] != "state the problem" {
		t.Fatalf("key point not updated: %v", outline.Sections[0].KeyPoints)
	}
	outline = RemoveKeyPoint(outline, 0, 0)
	if got := outline.Sections[0].KeyPoints; len(got) != 1 || got[0] != "state the problem" {
		t.Fatalf("unexpected key points after remove: %v", got)
	}
	outline = RemoveSection(outline, 1)
	if len(outline.Sections) != 2 || outline.Sections[1].Heading != "Close" {
		t.Fatalf("unexpected sections after remove: %+v", outline.Sections)
	}

	// Out-of-range indexes are silent no-ops.
	outline = RemoveSection(outline, 9)
	outline = UpdateKeyPoint(outline, 0, 9, "x")
	outline = RemoveKeyPoint(outline, 9, 0)
	if len(outline.Sections) != 2 {
		t.Errorf("out-of-range operation changed the outline")
	}
}

func TestOutlineLegacySectionKey(t *testing.T) {
	payload := `{
		"title": "Legacy outline",
		"hooks": [{"id": "h1", "text": "Did you know?"}],
		"outline_sections": [
			{"heading": "One", "keyPoints": ["a"]},
			{"heading": "Two", "keyPoints": ["b"]}
		]
	}`
	var outline Outline
	if err := json.Unmarshal([]byte(payload), &outline); err != nil {
		t.Fatalf("unmarshal legacy outline: %v", err)
	}
	if len(outline.Sections) != 2 || outline.Sections[0].Heading != "One" {
		t.Fatalf("legacy sections not normalized: %+v", outline.Sections)
	}

	// Operations work on the normalized shape without data loss.
	edited := MoveSection(outline, 1, -1)
	if edited.Sections[0].Heading != "Two" {
		t.Fatalf("move failed on legacy-sourced outline: %+v", edited.Sections)
	}

	// Write-back preserves the legacy key the source used.
	data, err := json.Marshal(edited)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"outline_sections"`) {
		t.Errorf("legacy key not preserved on write-back: %s", data)
	}
	if strings.Contains(string(data), `"sections"`) && !strings.Contains(string(data), `"outline_sections"`) {
		t.Errorf("unexpected current key for legacy source: %s", data)
	}
}

func TestOutlineCurrentSectionKeyRoundTrip(t *testing.T) {
	outline := threeSectionOutline()
	data, err := json.Marshal(outline)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "outline_sections") {
		t.Fatalf("current-shape outline marshalled with legacy key: %s", data)
	}
	var decoded Outline
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Sections) != 3 {
		t.Errorf("sections lost in round trip: %+v", decoded.Sections)
	}
}
