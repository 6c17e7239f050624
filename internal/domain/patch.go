package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Patch is a set of dot-addressed field updates, e.g.
// "participants.u1.scores.q1" -> 100. Intermediate objects are created as needed.
type Patch map[string]any

// Path joins document keys into a dot-addressed path.
func Path(keys ...string) string {
	return strings.Join(keys, ".")
}

// Top-level fields a patch may write. Questions are immutable once live, and
// responses/version are owned by the store.
var patchableRoots = map[string]struct{}{
	"title":                {},
	"currentQuestionIndex": {},
	"isActive":             {},
	"showResults":          {},
	"isComplete":           {},
	"participants":         {},
}

// ApplyPatch merges p into a copy of s and returns the normalized result.
func ApplyPatch(s Session, p Patch) (Session, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}

	paths := make([]string, 0, len(p))
	for path := range p {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := setPath(doc, path, p[path]); err != nil {
			return Session{}, err
		}
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	var out Session
	if err := json.Unmarshal(merged, &out); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	out.Normalize()
	return out, nil
}

func setPath(doc map[string]any, path string, value any) error {
	keys := strings.Split(path, ".")
	for _, k := range keys {
		if k == "" {
			return fmt.Errorf("%w: empty segment in %q", ErrInvalidPatch, path)
		}
	}
	if _, ok := patchableRoots[keys[0]]; !ok {
		return fmt.Errorf("%w: field %q is not writable", ErrInvalidPatch, keys[0])
	}

	node := doc
	for _, k := range keys[:len(keys)-1] {
		next, exists := node[k]
		if !exists || next == nil {
			child := map[string]any{}
			node[k] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q traverses a non-object at %q", ErrInvalidPatch, path, k)
		}
		node = child
	}
	node[keys[len(keys)-1]] = value
	return nil
}
