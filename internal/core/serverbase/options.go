// SPDX-License-Identifier: MPL-2.0

package serverbase

// Option configures a Base at construction time.
type Option func(*Base)

// WithErrorChannel replaces the Err channel with one buffering size
// errors before SendError starts dropping.
func WithErrorChannel(size int) Option {
	return func(b *Base) {
		b.errs = make(chan error, size)
	}
}
