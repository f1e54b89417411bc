// Package utils holds small generic helpers for optional fields.
package utils

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// Value dereferences p, returning the zero value when p is nil.
func Value[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// Clone returns a pointer to a copy of *p so the caller's value cannot be
// changed through it. A nil p yields nil.
func Clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return Ptr(*p)
}
