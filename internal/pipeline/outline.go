package pipeline

import "encoding/json"

type Hook struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Section struct {
	Heading   string   `json:"heading"`
	KeyPoints []string `json:"keyPoints"`
}

const (
	placeholderHeading  = "New section"
	placeholderKeyPoint = "Add a key point"
)

// Outline is the structured artifact returned by outline generation. Older
// generation payloads carry the section list under "outline_sections"
// instead of "sections"; normalization happens once at the JSON boundary so
// editing operations never see the legacy shape, and the legacy key is
// preserved on write-back.
type Outline struct {
	Title                   string   `json:"-"`
	Hooks                   []Hook   `json:"-"`
	Sections                []Section `json:"-"`
	SupportingEvidence      []string `json:"-"`
	CTA                     string   `json:"-"`
	TemplateRecommendations []string `json:"-"`

	legacySections bool
}

type outlineJSON struct {
	Title                   string    `json:"title"`
	Hooks                   []Hook    `json:"hooks,omitempty"`
	Sections                []Section `json:"sections,omitempty"`
	LegacySections          []Section `json:"outline_sections,omitempty"`
	SupportingEvidence      []string  `json:"supportingEvidence,omitempty"`
	CTA                     string    `json:"cta,omitempty"`
	TemplateRecommendations []string  `json:"templateRecommendations,omitempty"`
}

func (o *Outline) UnmarshalJSON(data []byte) error {
	var raw outlineJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Title = raw.Title
	o.Hooks = raw.Hooks
	o.SupportingEvidence = raw.SupportingEvidence
	o.CTA = raw.CTA
	o.TemplateRecommendations = raw.TemplateRecommendations
	o.Sections = raw.Sections
	o.legacySections = false
	if len(raw.Sections) == 0 && raw.LegacySections != nil {
		o.Sections = raw.LegacySections
		o.legacySections = true
	}
	return nil
}

func (o Outline) MarshalJSON() ([]byte, error) {
	raw := outlineJSON{
		Title:                   o.Title,
		Hooks:                   o.Hooks,
		SupportingEvidence:      o.SupportingEvidence,
		CTA:                     o.CTA,
		TemplateRecommendations: o.TemplateRecommendations,
	}
	if o.legacySections {
		raw.LegacySections = o.Sections
	} else {
		raw.Sections = o.Sections
	}
	return json.Marshal(raw)
}

func (o Outline) Clone() Outline {
	out := o
	out.Hooks = append([]Hook(nil), o.Hooks...)
	if o.Sections != nil {
		out.Sections = make([]Section, len(o.Sections))
		for i, section := range o.Sections {
			out.Sections[i] = Section{
				Heading:   section.Heading,
				KeyPoints: append([]string(nil), section.KeyPoints...),
			}
		}
	}
	out.SupportingEvidence = append([]string(nil), o.SupportingEvidence...)
	out.TemplateRecommendations = append([]string(nil), o.TemplateRecommendations...)
	return out
}

func (o Outline) HasHook(id string) bool {
	for _, hook := range o.Hooks {
		if hook.ID == id {
			return true
		}
	}
	return false
}

func (o Outline) RecommendsTemplate(name string) bool {
	for _, rec := range o.TemplateRecommendations {
		if rec == name {
			return true
		}
	}
	return false
}

// Editing operations return a new outline value and never mutate the input.
// Out-of-range indexes are silent no-ops so a caller racing a concurrent
// structural change cannot crash the session.

func RenameSection(o Outline, index int, heading string) Outline {
	next := o.Clone()
	if index < 0 || index >= len(next.Sections) {
		return next
	}
	next.Sections[index].Heading = heading
	return next
}

// MoveSection swaps a section with its neighbor. Moves past either end are
// clamped: the first section cannot move up, the last cannot move down.
func MoveSection(o Outline, index, direction int) Outline {
	next := o.Clone()
	if direction != -1 && direction != 1 {
		return next
	}
	target := index + direction
	if index < 0 || index >= len(next.Sections) || target < 0 || target >= len(next.Sections) {
		return next
	}
	next.Sections[index], next.Sections[target] = next.Sections[target], next.Sections[index]
	return next
}

func AddSection(o Outline) Outline {
	next := o.Clone()
	next.Sections = append(next.Sections, Section{
		Heading:   placeholderHeading,
		KeyPoints: []string{placeholderKeyPoint},
	})
	return next
}

func RemoveSection(o Outline, index int) Outline {
	next := o.Clone()
	if index < 0 || index >= len(next.Sections) {
		return next
	}
	next.Sections = append(next.Sections[:index], next.Sections[index+1:]...)
	return next
}

func AddKeyPoint(o Outline, section int) Outline {
	next := o.Clone()
	if section < 0 || section >= len(next.Sections) {
		return next
	}
	next.Sections[section].KeyPoints = append(next.Sections[section].KeyPoints, placeholderKeyPoint)
	return next
}

func UpdateKeyPoint(o Outline, section, point int, text string) Outline {
	next := o.Clone()
	if section < 0 || section >= len(next.Sections) {
		return next
	}
	points := next.Sections[section].KeyPoints
	if point < 0 || point >= len(points) {
		return next
	}
	points[point] = text
	return next
}

func RemoveKeyPoint(o Outline, section, point int) Outline {
	next := o.Clone()
	if section < 0 || section >= len(next.Sections) {
		return next
	}
	points := next.Sections[section].KeyPoints
	if point < 0 || point >= len(points) {
		return next
	}
	next.Sections[section].KeyPoints = append(points[:point], points[point+1:]...)
	return next
}
