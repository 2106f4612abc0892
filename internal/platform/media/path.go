package media

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/gosimple/slug"
)

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ObjectPath composes the object key prefix/<slug>/<id><ext> for an uploaded image. The slug
// comes from the file name without its extension.
func ObjectPath(prefix, fileName, id, contentType string) (string, error) {
	id, err := validateSegment("id", id)
	if err != nil {
		return "", err
	}
	ext, err := extension(contentType)
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(fileName, "\\", "/")), path.Ext(fileName))
	name := slug.Make(base)
	if name == "" {
		name = "image"
	}

	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s%s", name, id, ext), nil
	}
	if strings.Contains(prefix, "..") {
		return "", fmt.Errorf("media: prefix contains invalid traversal sequence")
	}
	return fmt.Sprintf("%s/%s/%s%s", prefix, name, id, ext), nil
}

// NormalizeContentType strips parameters and lower-cases the media type.
func NormalizeContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// extension maps an allowed content type to its object extension.
func extension(contentType string) (string, error) {
	ext, ok := allowedContentTypes[NormalizeContentType(contentType)]
	if !ok {
		return "", fmt.Errorf("media: content type %q not allowed", contentType)
	}
	return ext, nil
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("media: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("media: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("media: %s contains invalid traversal sequence", name)
	}
	return value, nil
}
