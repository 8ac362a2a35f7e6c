// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// Compile unifies data with the schema definition named by definition
// (e.g. "#Config") and validates the result.
func Compile(schema, data []byte, definition string, opts ...Option) (cue.Value, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return cue.Value{}, err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}
	root := schemaValue.LookupPath(cue.ParsePath(definition))
	if root.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s not found: %w", definition, root.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(o.filename))
	if userValue.Err() != nil {
		return cue.Value{}, FormatError(userValue.Err(), o.filename)
	}

	unified := root.Unify(userValue)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return cue.Value{}, FormatError(err, o.filename)
	}
	return unified, nil
}

// FormatError prefixes every CUE error with its JSON path.
//
//	config.cue: images.python: conflicting values ...
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	cueErrors := errors.Errors(err)
	if len(cueErrors) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	lines := make([]string, 0, len(cueErrors))
	for _, e := range cueErrors {
		pathStr := formatPath(errors.Path(e))
		msg := e.Error()
		if pathStr != "" && strings.HasPrefix(msg, pathStr) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, pathStr), ":"))
		}
		if pathStr != "" {
			lines = append(lines, pathStr+": "+msg)
		} else {
			lines = append(lines, msg)
		}
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filePath, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filePath, strings.Join(lines, "\n  "))
}

// formatPath turns ["env", "0"] into "env[0]".
func formatPath(path []string) string {
	var sb strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			sb.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize rejects documents larger than maxSize bytes.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", filename, len(data), maxSize)
	}
	return nil
}
