package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrEmptySubscriptionSet is returned when no subscription matches the requested prefix.
var ErrEmptySubscriptionSet = errors.New("no subscriptions match prefix")

// Subscription identifies one billing scope.
type Subscription struct {
	Name string
	ID   string
}

// Lister enumerates the subscriptions visible to the caller.
type Lister interface {
	List(ctx context.Context) ([]Subscription, error)
}

// FilterByPrefix keeps subscriptions whose name starts with prefix, preserving order.
func FilterByPrefix(subs []Subscription, prefix string) []Subscription {
	out := make([]Subscription, 0, len(subs))
	for _, sub := range subs {
		if strings.HasPrefix(sub.Name, prefix) {
			out = append(out, sub)
		}
	}
	return out
}

// Discover lists and filters subscriptions, failing with ErrEmptySubscriptionSet when none match.
func Discover(ctx context.Context, lister Lister, prefix string, logger zerolog.Logger) ([]Subscription, error) {
	all, err := lister.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := FilterByPrefix(all, prefix)
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w %q", ErrEmptySubscriptionSet, prefix)
	}

	logger.Info().
		Str("prefix", prefix).
		Int("visible", len(all)).
		Int("matched", len(matched)).
		Msg("subscriptions discovered")
	return matched, nil
}

// CommonPrefix returns the longest prefix shared by every name.
func CommonPrefix(subs []Subscription) string {
	if len(subs) == 0 {
		return ""
	}
	prefix := subs[0].Name
	for _, sub := range subs[1:] {
		for !strings.HasPrefix(sub.Name, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}

// ShortName strips the common prefix from name, keeping the full name when nothing is left.
func ShortName(name, prefix string) string {
	short := strings.TrimSpace(strings.Replace(name, prefix, "", 1))
	short = strings.Trim(short, "-_ ")
	if short == "" {
		return name
	}
	return short
}
