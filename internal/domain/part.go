package domain

import (
	"encoding/json"
	"fmt"
)

// PartType constants for JSON serialization
const (
	PartTypeText     = "text"
	PartTypeImage    = "image"
	PartTypeImageRef = "image_ref"
	PartTypeVideoRef = "video_ref"
)

// PartWrapper handles JSON serialization of Part interface
type PartWrapper struct {
	Type string `json:"type"`
	Part Part   `json:"-"`
}

// MarshalJSON serializes a Part with its type
func (w PartWrapper) MarshalJSON() ([]byte, error) {
	switch p := w.Part.(type) {
	case TextPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			TextPart
		}{PartTypeText, p})
	case ImagePart:
		return json.Marshal(struct {
			Type string `json:"type"`
			ImagePart
		}{PartTypeImage, p})
	case ImageRefPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			ImageRefPart
		}{PartTypeImageRef, p})
	case VideoRefPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			VideoRefPart
		}{PartTypeVideoRef, p})
	default:
		return nil, fmt.Errorf("unknown part type: %T", w.Part)
	}
}

// UnmarshalPart deserializes JSON into the appropriate Part type.
// Unknown types return nil without error so old logs stay readable.
func UnmarshalPart(data []byte) (Part, error) {
	var typeCheck struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &typeCheck); err != nil {
		return nil, err
	}

	switch typeCheck.Type {
	case PartTypeText, "":
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeImage:
		var p ImagePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeImageRef:
		var p ImageRefPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeVideoRef:
		var p VideoRefPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, nil
	}
}

// MarshalParts serializes parts with type information
func MarshalParts(parts []Part) ([]byte, error) {
	wrappers := make([]PartWrapper, len(parts))
	for i, p := range parts {
		wrappers[i] = PartWrapper{Part: p}
	}
	return json.Marshal(wrappers)
}

// UnmarshalParts deserializes a JSON array of parts, skipping unknowns
func UnmarshalParts(data []byte) ([]Part, error) {
	var rawParts []json.RawMessage
	if err := json.Unmarshal(data, &rawParts); err != nil {
		return nil, err
	}

	parts := make([]Part, 0, len(rawParts))
	for _, raw := range rawParts {
		part, err := UnmarshalPart(raw)
		if err != nil {
			return nil, err
		}
		if part != nil {
			parts = append(parts, part)
		}
	}
	return parts, nil
}
