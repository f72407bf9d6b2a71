package pagination

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
)

// Listings are keyset-paginated on (created_at, id), newest first.
const (
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxCursorLen bounds the opaque cursor accepted from query strings.
	MaxCursorLen = 128
)

const keySeparator = "~"

type Params struct {
	Limit  int
	Cursor string
}

// Key is the position of the last row handed out on a page.
type Key struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// Window returns the normalized page size and the key to continue after.
// A nil key means the first page.
func (p Params) Window() (int, *Key, error) {
	after, err := Decode(p.Cursor)
	if err != nil {
		return 0, nil, err
	}
	return NormalizeLimit(p.Limit), after, nil
}

// Encode renders the key as a URL-safe cursor.
func (k Key) Encode() string {
	raw := k.CreatedAt.UTC().Format(time.RFC3339Nano) + keySeparator + k.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a cursor produced by Encode. Blank input yields a nil key.
func Decode(cursor string) (*Key, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return nil, nil
	}
	if len(cursor) > MaxCursorLen {
		return nil, invalidCursor(nil)
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, invalidCursor(err)
	}
	at, id, ok := strings.Cut(string(raw), keySeparator)
	if !ok {
		return nil, invalidCursor(nil)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, invalidCursor(err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalidCursor(err)
	}
	return &Key{CreatedAt: createdAt, ID: parsedID}, nil
}

// Trim cuts rows fetched with limit+1 down to one page and returns the
// cursor of the next page, or "" when rows was the last page.
func Trim[T any](rows []T, limit int, key func(T) Key) ([]T, string) {
	if limit <= 0 || len(rows) <= limit {
		return rows, ""
	}
	page := rows[:limit]
	return page, key(page[limit-1]).Encode()
}

func invalidCursor(cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "invalid cursor")
}
