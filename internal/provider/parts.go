package provider

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joss/gamepilot/internal/domain"
)

// hoistSystem splits system messages out of the conversation. Multiple
// system texts are joined with a blank line, preserving order.
func hoistSystem(msgs []domain.Message) (string, []domain.Message) {
	var system []string
	rest := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == domain.RoleSystem {
			if text := m.Text(); text != "" {
				system = append(system, text)
			}
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// inlineImage resolves an image reference to base64 data.
func inlineImage(ref domain.ImageRefPart) (domain.ImagePart, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return domain.ImagePart{}, fmt.Errorf("read image %s: %w", ref.Path, err)
	}
	mediaType := ref.MediaType
	if mediaType == "" {
		mediaType = mediaTypeForPath(ref.Path)
	}
	return domain.ImagePart{
		Base64:    base64.StdEncoding.EncodeToString(data),
		MediaType: mediaType,
	}, nil
}

func mediaTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}
