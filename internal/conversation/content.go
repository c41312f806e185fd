package conversation

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PartType identifies the kind of a multipart content entry.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image_url"
)

// DefaultImageDetail is the vision detail level requested for attached images.
const DefaultImageDetail = "high"

// Image is an inline image reference, usually a base64 data URI.
type Image struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// Part is one entry of a multipart message.
type Part struct {
	Type  PartType `json:"type"`
	Text  string   `json:"text,omitempty"`
	Image *Image   `json:"image_url,omitempty"`
}

// TextPart returns a text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ImagePart encodes png as a data URI image part.
func ImagePart(png []byte, detail string) Part {
	if detail == "" {
		detail = DefaultImageDetail
	}
	return Part{
		Type: PartImage,
		Image: &Image{
			URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
			Detail: detail,
		},
	}
}

// Content is either plain text or an ordered list of parts.
// The zero value is empty text.
type Content struct {
	text  string
	parts []Part
	multi bool
}

// Text returns plain text content.
func Text(s string) Content {
	return Content{text: s}
}

// Multipart returns content made of the given parts, in order.
func Multipart(parts ...Part) Content {
	cp := make([]Part, len(parts))
	copy(cp, parts)
	return Content{parts: cp, multi: true}
}

// IsMultipart reports whether c holds parts rather than plain text.
func (c Content) IsMultipart() bool {
	return c.multi
}

// Parts returns a copy of the parts of multipart content, nil for text.
func (c Content) Parts() []Part {
	if !c.multi {
		return nil
	}
	cp := make([]Part, len(c.parts))
	copy(cp, c.parts)
	return cp
}

// String returns the textual view of c. For multipart content the text parts
// are joined with newlines and images are skipped.
func (c Content) String() string {
	if !c.multi {
		return c.text
	}
	var texts []string
	for _, p := range c.parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// IsEmpty reports whether c carries nothing to send.
func (c Content) IsEmpty() bool {
	if c.multi {
		return len(c.parts) == 0
	}
	return c.text == ""
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.multi {
		return json.Marshal(c.parts)
	}
	return json.Marshal(c.text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty content")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Text(s)
		return nil
	case '[':
		var parts []Part
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		for i, p := range parts {
			if err := p.validate(); err != nil {
				return fmt.Errorf("part %d: %w", i, err)
			}
		}
		*c = Content{parts: parts, multi: true}
		return nil
	default:
		return fmt.Errorf("content must be a string or an array of parts, got %s", string(data[:1]))
	}
}

func (p Part) validate() error {
	switch p.Type {
	case PartText:
		return nil
	case PartImage:
		if p.Image == nil || p.Image.URL == "" {
			return errors.New("image part without url")
		}
		return nil
	default:
		return fmt.Errorf("unknown part type %q", p.Type)
	}
}
