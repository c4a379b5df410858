package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Patch is a partial resume update keyed by JSON field name. Values replace
// the stored field wholesale.
type Patch map[string]json.RawMessage

type patchColumn struct {
	field  string
	column string
	text   bool
}

// Fields outside this list (id, owner, shared, deployment, timestamps) are
// ignored when a patch is applied.
var patchColumns = []patchColumn{
	{field: "title", column: "title", text: true},
	{field: "description", column: "description", text: true},
	{field: "selectedTemplate", column: "selected_template", text: true},
	{field: "globalStyles", column: "global_styles"},
	{field: "resumeData", column: "resume_data"},
}

// ParsePatch decodes a JSON object into a Patch.
func ParsePatch(raw json.RawMessage) (Patch, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: updates must be an object", ErrInvalidPatch)
	}
	var patch Patch
	if err := json.Unmarshal(trimmed, &patch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return patch, nil
}

// Applied returns the JSON object of the fields Apply would write, so
// ignored fields never reach other editors.
func (p Patch) Applied() json.RawMessage {
	kept := make(map[string]json.RawMessage, len(p))
	for _, col := range patchColumns {
		if raw, ok := p[col.field]; ok {
			kept[col.field] = raw
		}
	}
	out, err := json.Marshal(kept)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return out
}

// assignments turns the patch into ordered SET clauses starting at
// placeholder $start.
func (p Patch) assignments(start int) ([]string, []any, error) {
	var sets []string
	var args []any
	for _, col := range patchColumns {
		raw, ok := p[col.field]
		if !ok {
			continue
		}
		var value any
		if col.text {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, nil, fmt.Errorf("%w: %s must be a string", ErrInvalidPatch, col.field)
			}
			if col.field == "title" && strings.TrimSpace(s) == "" {
				return nil, nil, fmt.Errorf("%w: title is required", ErrInvalidPatch)
			}
			value = s
		} else {
			if !json.Valid(raw) {
				return nil, nil, fmt.Errorf("%w: %s is not valid JSON", ErrInvalidPatch, col.field)
			}
			value = string(raw)
		}
		sets = append(sets, fmt.Sprintf("%s=$%d", col.column, start+len(args)))
		args = append(args, value)
	}
	return sets, args, nil
}

// Apply merges the patch into an in-memory resume with the same rules the
// database update uses.
func (p Patch) Apply(r *Resume) error {
	if _, _, err := p.assignments(1); err != nil {
		return err
	}
	for _, col := range patchColumns {
		raw, ok := p[col.field]
		if !ok {
			continue
		}
		switch col.field {
		case "title":
			_ = json.Unmarshal(raw, &r.Title)
		case "description":
			_ = json.Unmarshal(raw, &r.Description)
		case "selectedTemplate":
			_ = json.Unmarshal(raw, &r.SelectedTemplate)
		case "globalStyles":
			r.GlobalStyles = append(json.RawMessage(nil), raw...)
		case "resumeData":
			r.ResumeData = append(json.RawMessage(nil), raw...)
		}
	}
	return nil
}
