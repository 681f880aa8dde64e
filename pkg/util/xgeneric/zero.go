// Package xgeneric provides small generic helpers.
package xgeneric

// ZeroValue returns the zero value of V, useful where a typed zero is needed
// in a generic return position.
func ZeroValue[V any]() V {
	var zero V
	return zero
}
