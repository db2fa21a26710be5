// Package kv defines the key-value primitives the notification core is built
// on and the notification repository that sits on top of them.
package kv

import "context"

// Store is the subset of a Redis-style key-value service the core relies on.
// List indexes follow Redis semantics: negative values count from the tail
// and stop is inclusive.
type Store interface {
	// Get returns the string at key; found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error

	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	LPush(ctx context.Context, key, value string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
}

// Drainer is implemented by backends that can read and clear a list in one
// atomic step. Head-first order, as LRange returns it.
type Drainer interface {
	LDrain(ctx context.Context, key string) ([]string, error)
}

// Span converts Redis-style start/stop indexes into a half-open [lo, hi)
// slice window over a list of length n. ok is false when the window is empty.
func Span(n int, start, stop int64) (lo, hi int, ok bool) {
	size := int64(n)
	if start < 0 {
		start += size
	}
	if stop < 0 {
		stop += size
	}
	if start < 0 {
		start = 0
	}
	if stop >= size {
		stop = size - 1
	}
	if start > stop || start >= size {
		return 0, 0, false
	}
	return int(start), int(stop) + 1, true
}

// Window returns the elements of list selected by start/stop.
func Window(list []string, start, stop int64) []string {
	lo, hi, ok := Span(len(list), start, stop)
	if !ok {
		return []string{}
	}
	out := make([]string, hi-lo)
	copy(out, list[lo:hi])
	return out
}
