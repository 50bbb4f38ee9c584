// Package time contains time related helpers
package time

import "time"

// Ptr returns a pointer to t in UTC or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// Deref returns the zero time for nil, else *p
func Deref(p *time.Time) time.Time {
	if p == nil {
		return time.Time{}
	}
	return *p
}
