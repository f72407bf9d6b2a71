package validators

import (
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
)

// IntRange bounds a numeric query parameter, inclusive.
type IntRange struct {
	Min int
	Max int
}

// QueryInt reads an optional integer query parameter, returning def when it is absent.
func QueryInt(r *http.Request, key string, def int, bounds IntRange) (int, error) {
	raw, ok := queryValue(r, key)
	if !ok {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "must be a whole number", nil)
	}
	if value < bounds.Min || value > bounds.Max {
		return 0, queryError(key, "is out of range", map[string]any{"min": bounds.Min, "max": bounds.Max})
	}
	return value, nil
}

// QueryToken reads an optional opaque value such as a page cursor.
func QueryToken(r *http.Request, key string, maxLen int) (string, error) {
	raw, ok := queryValue(r, key)
	if !ok {
		return "", nil
	}
	if len(raw) > maxLen {
		return "", queryError(key, "is too long", map[string]any{"max": maxLen})
	}
	return raw, nil
}

func queryValue(r *http.Request, key string) (string, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	return raw, raw != ""
}

func queryError(key, problem string, extra map[string]any) error {
	details := map[string]any{"field": key}
	maps.Copy(details, extra)
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("query parameter %s %s", key, problem)).
		WithDetails(details)
}
