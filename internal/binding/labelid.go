package binding

import (
	"fmt"
	"strings"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

// LabelIDPrefix starts every label id dragged onto the canvas.
const LabelIDPrefix = "label-"

// legacyEdgeLabelID predates every other encoding and is matched literally.
const legacyEdgeLabelID = "label-location-group:edge"

// EncodeLabelID returns the canonical id for a label. Kubernetes label keys and values
// never contain ':', so the first colon after the prefix separates them.
func EncodeLabelID(label models.LabelRef) string {
	return LabelIDPrefix + label.Key + ":" + label.Value
}

// ParseLabelID decodes a canonical label id.
func ParseLabelID(id string) (models.LabelRef, error) {
	rest, ok := strings.CutPrefix(id, LabelIDPrefix)
	if !ok {
		return models.LabelRef{}, fmt.Errorf("%w: %q lacks prefix %q", ErrInvalidLabelID, id, LabelIDPrefix)
	}
	key, value, found := strings.Cut(rest, ":")
	if !found {
		return models.LabelRef{}, fmt.Errorf("%w: %q has no key/value separator", ErrInvalidLabelID, id)
	}
	if key == "" {
		return models.LabelRef{}, fmt.Errorf("%w: %q has an empty key", ErrInvalidLabelID, id)
	}
	return models.LabelRef{Key: key, Value: value}, nil
}

// LabelParser decodes label ids, optionally falling back to the older encodings still
// emitted by saved canvases.
type LabelParser struct {
	legacy bool
}

// NewLabelParser creates a parser. With legacy set, ids that are not canonical go
// through the equals, last-dash and positional fallbacks.
func NewLabelParser(legacy bool) *LabelParser {
	return &LabelParser{legacy: legacy}
}

// Legacy reports whether the fallback encodings are accepted.
func (p *LabelParser) Legacy() bool {
	return p.legacy
}

// Parse decodes id into a label.
func (p *LabelParser) Parse(id string) (models.LabelRef, error) {
	label, err := ParseLabelID(id)
	if err == nil || !p.legacy {
		return label, err
	}
	if !strings.HasPrefix(id, LabelIDPrefix) {
		return models.LabelRef{}, err
	}
	label, ok := parseLegacy(id)
	if !ok || label.Key == "" {
		return models.LabelRef{}, fmt.Errorf("%w: unable to parse %q", ErrInvalidLabelID, id)
	}
	return label, nil
}

func parseLegacy(id string) (models.LabelRef, bool) {
	if id == legacyEdgeLabelID {
		return models.LabelRef{Key: "location-group", Value: "edge"}, true
	}
	rest := strings.TrimPrefix(id, LabelIDPrefix)
	if key, value, ok := strings.Cut(rest, ":"); ok {
		return models.LabelRef{Key: key, Value: value}, true
	}
	if key, value, ok := strings.Cut(rest, "="); ok {
		return models.LabelRef{Key: key, Value: value}, true
	}
	if i := strings.LastIndex(rest, "-"); i > 0 {
		return models.LabelRef{Key: rest[:i], Value: rest[i+1:]}, true
	}
	// Positional form label-<key>-<value...>; only reachable when the key is empty.
	parts := strings.Split(id, "-")
	if len(parts) >= 3 {
		return models.LabelRef{Key: parts[1], Value: strings.Join(parts[2:], "-")}, true
	}
	return models.LabelRef{}, false
}
