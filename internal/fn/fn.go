// Package fn holds small generic helpers for CLI output.
package fn

// T returns trueVal when condition holds, falseVal otherwise.
func T[V any](condition bool, trueVal, falseVal V) V {
	if condition {
		return trueVal
	}
	return falseVal
}

// Or returns v unless it is the zero value, in which case it returns fallback.
func Or[V comparable](v, fallback V) V {
	var zero V
	if v == zero {
		return fallback
	}
	return v
}
