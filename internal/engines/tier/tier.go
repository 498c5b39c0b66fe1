// Package tier steps a workload between ordered quality tiers, each tier being
// an image tag of the same image. Tiers are ordered from the lowest to the
// highest quality.
package tier

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedTier is returned when the current tag is not a known tier.
	ErrUnrecognizedTier = errors.New("unrecognized tier")
	// ErrNoAdjacentTier is returned when the current tier is at the end of the
	// list in the requested direction.
	ErrNoAdjacentTier = errors.New("no adjacent tier")
)

// DefaultTiers are the image tags published for the znn workload.
var DefaultTiers = Tiers{"20k", "100k", "200k", "400k", "600k", "800k"}

// Tiers is an ordered list of image tags.
type Tiers []string

// Index returns the position of tag, or -1.
func (t Tiers) Index(tag string) int {
	for i, candidate := range t {
		if candidate == tag {
			return i
		}
	}
	return -1
}

// Contains reports whether tag is a known tier.
func (t Tiers) Contains(tag string) bool {
	return t.Index(tag) >= 0
}

// Adjacent returns the next tier above (up) or below the current one.
func (t Tiers) Adjacent(current string, up bool) (string, error) {
	idx := t.Index(current)
	if idx < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedTier, current)
	}
	next := idx - 1
	if up {
		next = idx + 1
	}
	if next < 0 || next >= len(t) {
		return "", fmt.Errorf("%w: %q is the %s tier", ErrNoAdjacentTier, current, edgeName(up))
	}
	return t[next], nil
}

// StepUpAllowed reports whether current may move up given the baseline tag
// recorded when the workload was first seen. A workload never moves above its
// baseline; an unknown baseline imposes no ceiling.
func (t Tiers) StepUpAllowed(current, baseline string) bool {
	ceiling := t.Index(baseline)
	if ceiling < 0 {
		return true
	}
	return t.Index(current) < ceiling
}

// Validate checks that the list is usable for stepping.
func (t Tiers) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("tier list is empty")
	}
	seen := make(map[string]struct{}, len(t))
	for _, tag := range t {
		if tag == "" {
			return fmt.Errorf("tier list contains an empty tag")
		}
		if !tagPattern.MatchString(tag) {
			return fmt.Errorf("tier %q is not a valid image tag", tag)
		}
		if _, dup := seen[tag]; dup {
			return fmt.Errorf("tier %q is listed more than once", tag)
		}
		seen[tag] = struct{}{}
	}
	return nil
}

func edgeName(up bool) string {
	if up {
		return "highest"
	}
	return "lowest"
}
