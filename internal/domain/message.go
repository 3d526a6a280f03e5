package domain

// Message is a single conversational turn sent to or received from a model.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part represents content within a message. Adapters translate each
// variant to its vendor wire shape and skip variants they do not support.
type Part interface {
	PartType() string
}

type TextPart struct {
	Text string `json:"text"`
}

func (p TextPart) PartType() string { return "text" }

// ImagePart carries inline image bytes, already base64 encoded.
type ImagePart struct {
	Base64    string `json:"base64"`
	MediaType string `json:"mediaType"` // image/png, image/jpeg, etc
}

func (p ImagePart) PartType() string { return "image" }

// ImageRefPart references an image on disk. Adapters that need inline
// data read and encode it at request time.
type ImageRefPart struct {
	Path      string `json:"path"`
	MediaType string `json:"mediaType"`
}

func (p ImageRefPart) PartType() string { return "image_ref" }

// VideoRefPart references a video on disk. Only providers with a file
// upload API can carry it; others drop the part with a warning.
type VideoRefPart struct {
	Path      string `json:"path"`
	MediaType string `json:"mediaType"`
}

func (p VideoRefPart) PartType() string { return "video_ref" }

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var out string
	for _, part := range m.Parts {
		if tp, ok := part.(TextPart); ok {
			if out != "" {
				out += "\n"
			}
			out += tp.Text
		}
	}
	return out
}
