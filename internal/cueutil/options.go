// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize is the largest CUE document Compile accepts (1MB).
const DefaultMaxFileSize int64 = 1024 * 1024

type (
	compileOptions struct {
		maxFileSize int64
		concrete    bool
		filename    string
	}

	// Option configures Compile.
	Option func(*compileOptions)
)

func defaultOptions() compileOptions {
	return compileOptions{
		maxFileSize: DefaultMaxFileSize,
		concrete:    true,
		filename:    "<input>",
	}
}

// WithMaxFileSize sets the maximum allowed document size.
func WithMaxFileSize(size int64) Option {
	return func(o *compileOptions) { o.maxFileSize = size }
}

// WithConcrete sets whether every value must be concrete after unification.
// Config files leave optional fields unset, so they pass false.
func WithConcrete(concrete bool) Option {
	return func(o *compileOptions) { o.concrete = concrete }
}

// WithFilename sets the file name used in error messages.
func WithFilename(name string) Option {
	return func(o *compileOptions) {
		if name != "" {
			o.filename = name
		}
	}
}
