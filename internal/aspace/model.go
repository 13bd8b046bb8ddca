package aspace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// JSONModel discriminants used by the repository API.
const (
	ModelArchivalObject     = "archival_object"
	ModelDate               = "date"
	ModelExtent             = "extent"
	ModelInstance           = "instance"
	ModelSubContainer       = "sub_container"
	ModelTopContainer       = "top_container"
	ModelNoteMultipart      = "note_multipart"
	ModelNoteSinglepart     = "note_singlepart"
	ModelNoteText           = "note_text"
	ModelNoteDefinedList    = "note_definedlist"
	ModelNoteDefinedListItm = "note_definedlist_item"
)

// Ref is a link to another repository record.
type Ref struct {
	Ref string `json:"ref"`
}

// Date is a single date sub-record.
type Date struct {
	DateType   string `json:"date_type"`
	Label      string `json:"label"`
	Begin      string `json:"begin,omitempty"`
	End        string `json:"end,omitempty"`
	Expression string `json:"expression,omitempty"`
}

func (d Date) MarshalJSON() ([]byte, error) {
	type alias Date
	return json.Marshal(struct {
		JSONModelType string `json:"jsonmodel_type"`
		alias
	}{ModelDate, alias(d)})
}

// Extent describes the physical measure of an item.
type Extent struct {
	Portion         string `json:"portion"`
	Number          string `json:"number"`
	ExtentType      string `json:"extent_type"`
	PhysicalDetails string `json:"physical_details,omitempty"`
}

func (e Extent) MarshalJSON() ([]byte, error) {
	type alias Extent
	return json.Marshal(struct {
		JSONModelType string `json:"jsonmodel_type"`
		alias
	}{ModelExtent, alias(e)})
}

// SubContainer links an instance to its top container.
type SubContainer struct {
	TopContainer Ref `json:"top_container"`
}

func (s SubContainer) MarshalJSON() ([]byte, error) {
	type alias SubContainer
	return json.Marshal(struct {
		JSONModelType string `json:"jsonmodel_type"`
		alias
	}{ModelSubContainer, alias(s)})
}

// Instance places an archival object in a container.
type Instance struct {
	InstanceType string        `json:"instance_type"`
	SubContainer *SubContainer `json:"sub_container,omitempty"`
}

func (i Instance) MarshalJSON() ([]byte, error) {
	type alias Instance
	return json.Marshal(struct {
		JSONModelType string `json:"jsonmodel_type"`
		alias
	}{ModelInstance, alias(i)})
}

// TopContainer is the payload for minting a new container.
type TopContainer struct {
	Indicator  string `json:"indicator"`
	Type       string `json:"type"`
	Repository Ref    `json:"repository"`
}

func (t TopContainer) MarshalJSON() ([]byte, error) {
	type alias TopContainer
	return json.Marshal(struct {
		JSONModelType string `json:"jsonmodel_type"`
		alias
	}{ModelTopContainer, alias(t)})
}

// ArchivalObject is the typed view of an archival object record. Fields the
// importer never touches are left in Record.Raw.
type ArchivalObject struct {
	URI         string     `json:"uri,omitempty"`
	RefID       string     `json:"ref_id,omitempty"`
	Title       string     `json:"title,omitempty"`
	ComponentID string     `json:"component_id,omitempty"`
	Level       string     `json:"level,omitempty"`
	Publish     bool       `json:"publish"`
	Resource    *Ref       `json:"resource,omitempty"`
	Parent      *Ref       `json:"parent,omitempty"`
	Dates       []Date     `json:"dates,omitempty"`
	Extents     []Extent   `json:"extents,omitempty"`
	Notes       Notes      `json:"notes,omitempty"`
	Instances   []Instance `json:"instances,omitempty"`
	LockVersion *int       `json:"lock_version,omitempty"`
}

func (a ArchivalObject) MarshalJSON() ([]byte, error) {
	type alias ArchivalObject
	return json.Marshal(struct {
		JSONModelType string `json:"jsonmodel_type"`
		alias
	}{ModelArchivalObject, alias(a)})
}

// Record pairs the typed object with the JSON the repository returned.
type Record struct {
	Object ArchivalObject
	Raw    json.RawMessage
}

// WriteResult is the repository response to a create or update.
type WriteResult struct {
	Status      string   `json:"status"`
	ID          int      `json:"id"`
	URI         string   `json:"uri"`
	LockVersion int      `json:"lock_version"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Note is one entry of a record's notes list. The concrete type is chosen by
// the jsonmodel_type discriminant.
type Note interface {
	Model() string
	NoteType() string
}

// MultipartNote holds structured subnotes (scope and contents, odd, phystech).
type MultipartNote struct {
	Type     string   `json:"type"`
	Label    string   `json:"label"`
	Publish  bool     `json:"publish"`
	Subnotes Subnotes `json:"subnotes"`

	raw json.RawMessage
}

func (n MultipartNote) Model() string    { return ModelNoteMultipart }
func (n MultipartNote) NoteType() string { return n.Type }

// Text joins the content of the note's text subnotes.
func (n MultipartNote) Text() string {
	parts := make([]string, 0, len(n.Subnotes))
	for _, sub := range n.Subnotes {
		if text, ok := sub.(TextSubnote); ok {
			if content := strings.TrimSpace(text.Content); content != "" {
				parts = append(parts, content)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// DefinedListValue returns the value of the first defined-list item with the
// given label.
func (n MultipartNote) DefinedListValue(label string) (string, bool) {
	for _, sub := range n.Subnotes {
		list, ok := sub.(DefinedListSubnote)
		if !ok {
			continue
		}
		for _, item := range list.Items {
			if strings.EqualFold(strings.TrimSpace(item.Label), label) {
				return item.Value, true
			}
		}
	}
	return "", false
}

func (n MultipartNote) MarshalJSON() ([]byte, error) {
	if len(n.raw) > 0 {
		return n.raw, nil
	}
	type alias MultipartNote
	subnotes := n.Subnotes
	if subnotes == nil {
		subnotes = Subnotes{}
	}
	out := alias(n)
	out.Subnotes = subnotes
	return json.Marshal(struct {
		JSONModelType string `json:"jsonmodel_type"`
		alias
	}{ModelNoteMultipart, out})
}

// SinglepartNote holds plain content paragraphs.
type SinglepartNote struct {
	Type    string   `json:"type"`
	Label   string   `json:"label,omitempty"`
	Publish bool     `json:"publish"`
	Content []string `json:"content"`

	raw json.RawMessage
}

func (n SinglepartNote) Model() string    { return ModelNoteSinglepart }
func (n SinglepartNote) NoteType() string { return n.Type }

func (n SinglepartNote) MarshalJSON() ([]byte, error) {
	if len(n.raw) > 0 {
		return n.raw, nil
	}
	type alias SinglepartNote
	return json.Marshal(struct {
		JSONModelType string `json:"jsonmodel_type"`
		alias
	}{ModelNoteSinglepart, alias(n)})
}

// OtherNote preserves note kinds this tool does not model (bibliography,
// index, chronology and similar).
type OtherNote struct {
	JSONModelType string
	Type          string

	raw json.RawMessage
}

func (n OtherNote) Model() string    { return n.JSONModelType }
func (n OtherNote) NoteType() string { return n.Type }

func (n OtherNote) MarshalJSON() ([]byte, error) {
	if len(n.raw) == 0 {
		return []byte("null"), nil
	}
	return n.raw, nil
}

// Notes is a heterogeneous note list. Notes decoded from the repository
// re-encode their original JSON unchanged.
type Notes []Note

// FirstMultipart returns the first multipart note of the given type.
func (ns Notes) FirstMultipart(noteType string) (MultipartNote, bool) {
	for _, note := range ns {
		if mp, ok := note.(MultipartNote); ok && mp.Type == noteType {
			return mp, true
		}
	}
	return MultipartNote{}, false
}

// Without returns the notes whose type is not listed.
func (ns Notes) Without(noteTypes ...string) Notes {
	drop := make(map[string]struct{}, len(noteTypes))
	for _, t := range noteTypes {
		drop[t] = struct{}{}
	}
	kept := make(Notes, 0, len(ns))
	for _, note := range ns {
		if _, ok := drop[note.NoteType()]; ok {
			continue
		}
		kept = append(kept, note)
	}
	return kept
}

// Types lists the distinct note types in order of first appearance.
func (ns Notes) Types() []string {
	seen := make(map[string]struct{}, len(ns))
	var types []string
	for _, note := range ns {
		t := note.NoteType()
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	return types
}

func (ns Notes) MarshalJSON() ([]byte, error) {
	if ns == nil {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, note := range ns {
		if i > 0 {
			buf.WriteByte(',')
		}
		encoded, err := json.Marshal(note)
		if err != nil {
			return nil, fmt.Errorf("encode note %d: %w", i, err)
		}
		buf.Write(encoded)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (ns *Notes) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(Notes, 0, len(items))
	for i, item := range items {
		note, err := decodeNote(item)
		if err != nil {
			return fmt.Errorf("decode note %d: %w", i, err)
		}
		out = append(out, note)
	}
	*ns = out
	return nil
}

func decodeNote(data json.RawMessage) (Note, error) {
	var head struct {
		JSONModelType string `json:"jsonmodel_type"`
		Type          string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	raw := append(json.RawMessage(nil), data...)
	switch head.JSONModelType {
	case ModelNoteMultipart:
		var note MultipartNote
		if err := json.Unmarshal(data, &note); err != nil {
			return nil, err
		}
		note.raw = raw
		return note, nil
	case ModelNoteSinglepart:
		var note SinglepartNote
		if err := json.Unmarshal(data, &note); err != nil {
			return nil, err
		}
		note.raw = raw
		return note, nil
	default:
		return OtherNote{JSONModelType: head.JSONModelType, Type: head.Type, raw: raw}, nil
	}
}

// Subnote is one element of a multipart note.
type Subnote interface {
	Model() string
}

// TextSubnote is a free-text paragraph.
type TextSubnote struct {
	Content string `json:"content"`
	Publish *bool  `json:"publish,omitempty"`
}

func (TextSubnote) Model() string { return ModelNoteText }

func (s TextSubnote) MarshalJSON() ([]byte, error) {
	type alias TextSubnote
	return json.Marshal(struct {
		JSONModelType string `json:"jsonmodel_type"`
		alias
	}{ModelNoteText, alias(s)})
}

// DefinedListItem is one label/value pair of a defined list.
type DefinedListItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

func (i DefinedListItem) MarshalJSON() ([]byte, error) {
	type alias DefinedListItem
	return json.Marshal(struct {
		JSONModelType string `json:"jsonmodel_type"`
		alias
	}{ModelNoteDefinedListItm, alias(i)})
}

// DefinedListSubnote is a list of label/value pairs.
type DefinedListSubnote struct {
	Title string            `json:"title,omitempty"`
	Items []DefinedListItem `json:"items"`
}

func (DefinedListSubnote) Model() string { return ModelNoteDefinedList }

func (s DefinedListSubnote) MarshalJSON() ([]byte, error) {
	type alias DefinedListSubnote
	out := alias(s)
	if out.Items == nil {
		out.Items = []DefinedListItem{}
	}
	return json.Marshal(struct {
		JSONModelType string `json:"jsonmodel_type"`
		alias
	}{ModelNoteDefinedList, out})
}

// OtherSubnote preserves subnote kinds this tool does not model.
type OtherSubnote struct {
	JSONModelType string

	raw json.RawMessage
}

func (s OtherSubnote) Model() string { return s.JSONModelType }

func (s OtherSubnote) MarshalJSON() ([]byte, error) {
	if len(s.raw) == 0 {
		return []byte("null"), nil
	}
	return s.raw, nil
}

// Subnotes is a heterogeneous subnote list.
type Subnotes []Subnote

func (ss *Subnotes) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(Subnotes, 0, len(items))
	for i, item := range items {
		var head struct {
			JSONModelType string `json:"jsonmodel_type"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return fmt.Errorf("decode subnote %d: %w", i, err)
		}
		switch head.JSONModelType {
		case ModelNoteText:
			var sub TextSubnote
			if err := json.Unmarshal(item, &sub); err != nil {
				return fmt.Errorf("decode subnote %d: %w", i, err)
			}
			out = append(out, sub)
		case ModelNoteDefinedList:
			var sub DefinedListSubnote
			if err := json.Unmarshal(item, &sub); err != nil {
				return fmt.Errorf("decode subnote %d: %w", i, err)
			}
			out = append(out, sub)
		default:
			out = append(out, OtherSubnote{JSONModelType: head.JSONModelType, raw: append(json.RawMessage(nil), item...)})
		}
	}
	*ss = out
	return nil
}
