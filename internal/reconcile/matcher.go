package reconcile

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Match modes accepted by MatcherFor.
const (
	MatchModePrefix = "prefix"
	MatchModeStrict = "strict"
)

// Matcher picks a relocation target for a record key that has no exact blob.
// listing is in the blob store's listing order.
type Matcher interface {
	Name() string
	Relocate(key string, listing []string) (string, bool)
}

// MatcherFor returns the matcher for a configured mode. An empty mode selects
// the prefix matcher.
func MatcherFor(mode string) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", MatchModePrefix:
		return PrefixMatcher{}, nil
	case MatchModeStrict:
		return StrictMatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown match mode %q (want %s or %s)", mode, MatchModePrefix, MatchModeStrict)
	}
}

// PrefixMatcher treats a blob as a candidate when its name starts with the
// key or shares the key's stem (the part before the first dot). It can pair
// unrelated files that happen to share a short prefix.
type PrefixMatcher struct{}

// Name implements Matcher.
func (PrefixMatcher) Name() string { return MatchModePrefix }

// Relocate implements Matcher.
func (PrefixMatcher) Relocate(key string, listing []string) (string, bool) {
	if key == "" {
		return "", false
	}
	keyStem := stem(key)
	return pickCandidate(listing, func(name string) bool {
		return strings.HasPrefix(name, key) || (keyStem != "" && stem(name) == keyStem)
	})
}

// StrictMatcher only relocates keys whose stem is a UUID, and only to blobs
// whose stem is the same UUID. Any other key can only match exactly.
type StrictMatcher struct{}

// Name implements Matcher.
func (StrictMatcher) Name() string { return MatchModeStrict }

// Relocate implements Matcher.
func (StrictMatcher) Relocate(key string, listing []string) (string, bool) {
	want, err := uuid.Parse(stem(key))
	if err != nil {
		return "", false
	}
	return pickCandidate(listing, func(name string) bool {
		got, err := uuid.Parse(stem(name))
		return err == nil && got == want
	})
}

// pickCandidate returns the first matching name that carries an extension,
// else the first matching name.
func pickCandidate(listing []string, match func(string) bool) (string, bool) {
	first := ""
	for _, name := range listing {
		if !match(name) {
			continue
		}
		if strings.Contains(name, ".") {
			return name, true
		}
		if first == "" {
			first = name
		}
	}
	return first, first != ""
}

func stem(name string) string {
	before, _, _ := strings.Cut(name, ".")
	return before
}
