package firestore

import (
	"encoding/base64"
	"time"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
)

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// sliceWindow returns the slice of items covered by page.
func sliceWindow[T any](items []T, page domain.PageRequest) []T {
	offset := page.Offset()
	if offset >= len(items) {
		return nil
	}
	end := offset + page.Normalize().Limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// reservationKey encodes a natural key into a valid document id. Product names may contain
// "/" which Firestore treats as a path separator.
func reservationKey(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}
