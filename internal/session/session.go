// Package session holds the editor's working state for one product form:
// the document being edited, the snippet staged for application, the
// current selection and whether there are unsaved changes.
//
// The state is explicit and serializable so an editor can be resumed from
// a stored State instead of living in UI globals.
package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/patch"
)

// State is the serializable part of an editor session.
type State struct {
	ID                string                        `json:"id"`
	ProductID         string                        `json:"productId"`
	Document          *formschema.FormConfiguration `json:"document"`
	BaseVersion       int                           `json:"baseVersion"`
	PendingPatch      *patch.Snippet                `json:"pendingPatch,omitempty"`
	SelectedSectionID string                        `json:"selectedSectionId,omitempty"`
	SelectedFieldIDs  []string                      `json:"selectedFieldIds,omitempty"`
	Dirty             bool                          `json:"dirty"`
	CreatedAt         time.Time                     `json:"createdAt"`
	LastUsed          time.Time                     `json:"lastUsed"`
}

func (s State) clone() State {
	out := s
	out.Document = s.Document.Clone()
	if s.PendingPatch != nil {
		p := *s.PendingPatch
		p.Fragment = append(json.RawMessage(nil), s.PendingPatch.Fragment...)
		out.PendingPatch = &p
	}
	out.SelectedFieldIDs = append([]string(nil), s.SelectedFieldIDs...)
	return out
}

// EditorSession guards a State. All edits go through the patch engine, so
// a rejected edit leaves the session's document untouched.
type EditorSession struct {
	mu    sync.RWMutex
	state State
	now   func() time.Time
}

// NewEditorSession starts editing doc, which was loaded at baseVersion.
func NewEditorSession(productID string, doc *formschema.FormConfiguration, baseVersion int) *EditorSession {
	now := time.Now().UTC()
	return &EditorSession{
		state: State{
			ID:          uuid.New().String(),
			ProductID:   productID,
			Document:    doc.Clone(),
			BaseVersion: baseVersion,
			CreatedAt:   now,
			LastUsed:    now,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Resume rebuilds a session from a stored State.
func Resume(st State) (*EditorSession, error) {
	if st.ID == "" || st.ProductID == "" {
		return nil, fmt.Errorf("cannot resume session without id and product id")
	}
	return &EditorSession{state: st.clone(), now: func() time.Time { return time.Now().UTC() }}, nil
}

// ID returns the session id.
func (s *EditorSession) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ID
}

// State returns a deep copy of the session state.
func (s *EditorSession) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Document returns a copy of the working document.
func (s *EditorSession) Document() *formschema.FormConfiguration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Document.Clone()
}

func (s *EditorSession) touch() {
	s.state.LastUsed = s.now()
}

// Stage holds a snippet for review without applying it.
func (s *EditorSession) Stage(snippet patch.Snippet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := snippet
	p.Fragment = append(json.RawMessage(nil), snippet.Fragment...)
	s.state.PendingPatch = &p
	s.touch()
}

// ApplyPending applies the staged snippet. A rejected snippet stays staged
// so it can be corrected.
func (s *EditorSession) ApplyPending() (patch.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.PendingPatch == nil {
		return patch.Outcome{}, fmt.Errorf("no pending snippet in session %s", s.state.ID)
	}
	next, outcome, err := patch.ApplySnippet(s.state.Document, *s.state.PendingPatch)
	if err != nil {
		return outcome, err
	}
	s.state.Document = next
	s.state.PendingPatch = nil
	s.state.Dirty = true
	s.touch()
	return outcome, nil
}

// Discard drops the staged snippet.
func (s *EditorSession) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PendingPatch = nil
	s.touch()
}

// Replace swaps in a whole document, e.g. from an import or a template.
func (s *EditorSession) Replace(next *formschema.FormConfiguration) (formschema.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, report, err := patch.ReplaceWholeDocument(s.state.Document, next)
	if err != nil {
		return report, err
	}
	s.state.Document = doc
	s.state.PendingPatch = nil
	s.state.Dirty = true
	s.touch()
	return report, nil
}

// Reorder moves one item inside a collection of the working document.
func (s *EditorSession) Reorder(c patch.Collection, from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := patch.Reorder(s.state.Document, c, from, to)
	if err != nil {
		return err
	}
	s.state.Document = next
	s.state.Dirty = true
	s.touch()
	return nil
}

// Select records the editor's current selection. Unknown ids are an error.
func (s *EditorSession) Select(sectionID string, fieldIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sectionID != "" && s.state.Document.SectionByID(sectionID) < 0 {
		return fmt.Errorf("unknown section %q", sectionID)
	}
	for _, id := range fieldIDs {
		if _, ok := s.state.Document.FieldByID(id); !ok {
			return fmt.Errorf("unknown field %q", id)
		}
	}
	s.state.SelectedSectionID = sectionID
	s.state.SelectedFieldIDs = append([]string(nil), fieldIDs...)
	s.touch()
	return nil
}

// MarkSaved records that the working document was persisted as version.
func (s *EditorSession) MarkSaved(version int, saved *formschema.FormConfiguration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.BaseVersion = version
	s.state.Document = saved.Clone()
	s.state.Dirty = false
	s.touch()
}

func (s *EditorSession) lastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LastUsed
}
