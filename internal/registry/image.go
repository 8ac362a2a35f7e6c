// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultImageTag is applied to image references that carry no tag.
const DefaultImageTag = "latest"

// ErrInvalidImageRef is the sentinel error wrapped by InvalidImageRefError.
var ErrInvalidImageRef = errors.New("invalid image reference")

type (
	// ImageRef identifies a container image. Two references are the same image
	// when their String forms are equal.
	ImageRef struct {
		Repository string
		Tag        string
	}

	// InvalidImageRefError is returned when an image reference cannot be parsed.
	InvalidImageRefError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidImageRefError) Error() string {
	return fmt.Sprintf("invalid image reference %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidImageRef for errors.Is() compatibility.
func (e *InvalidImageRefError) Unwrap() error { return ErrInvalidImageRef }

// ParseImageRef parses "repository[:tag]". The tag separator is the last colon
// after the last slash, so registry ports ("localhost:5000/app") are kept in
// the repository. Digest references ("app@sha256:...") keep the digest in the
// repository and get no tag.
func ParseImageRef(s string) (ImageRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ImageRef{}, &InvalidImageRefError{Value: s, Reason: "empty"}
	}
	if strings.ContainsAny(s, " \t\n") {
		return ImageRef{}, &InvalidImageRefError{Value: s, Reason: "contains whitespace"}
	}

	if strings.Contains(s, "@") {
		return ImageRef{Repository: s}, nil
	}

	slash := strings.LastIndex(s, "/")
	colon := strings.LastIndex(s, ":")
	if colon > slash {
		repo, tag := s[:colon], s[colon+1:]
		if repo == "" {
			return ImageRef{}, &InvalidImageRefError{Value: s, Reason: "missing repository"}
		}
		if tag == "" {
			return ImageRef{}, &InvalidImageRefError{Value: s, Reason: "empty tag"}
		}
		return ImageRef{Repository: repo, Tag: tag}, nil
	}

	return ImageRef{Repository: s, Tag: DefaultImageTag}, nil
}

// MustParseImageRef is ParseImageRef for static tables. It panics on error.
func MustParseImageRef(s string) ImageRef {
	ref, err := ParseImageRef(s)
	if err != nil {
		panic(err)
	}
	return ref
}

// String returns the normalized "repository:tag" form.
func (r ImageRef) String() string {
	if r.Tag == "" {
		return r.Repository
	}
	return r.Repository + ":" + r.Tag
}

// IsZero reports whether the reference is unset.
func (r ImageRef) IsZero() bool {
	return r.Repository == ""
}
