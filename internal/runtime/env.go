// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

// EnvVar is a single KEY=VALUE pair.
type EnvVar struct {
	Key   string
	Value string
}

// String returns the KEY=VALUE form.
func (e EnvVar) String() string {
	return e.Key + "=" + e.Value
}

// ParseEnv parses KEY=VALUE entries. The first '=' splits key from value,
// so values may contain '='. Entries without '=' or with an empty key are
// rejected.
func ParseEnv(entries []string) ([]EnvVar, error) {
	vars := make([]EnvVar, 0, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, &InvalidEnvError{Entry: entry}
		}
		vars = append(vars, EnvVar{Key: key, Value: value})
	}
	return vars, nil
}

// LoadEnvFiles reads dotenv files in order; later files override earlier
// ones. A path suffixed with '?' is optional and skipped when missing.
// The result is sorted by key.
func LoadEnvFiles(paths []string) ([]EnvVar, error) {
	merged := make(map[string]string)
	for _, path := range paths {
		optional := strings.HasSuffix(path, "?")
		path = strings.TrimSuffix(path, "?")

		values, err := godotenv.Read(path)
		if err != nil {
			if optional && os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read env file '%s': %w", path, err)
		}
		for k, v := range values {
			merged[k] = v
		}
	}

	vars := make([]EnvVar, 0, len(merged))
	for k, v := range merged {
		vars = append(vars, EnvVar{Key: k, Value: v})
	}
	slices.SortFunc(vars, func(a, b EnvVar) int { return strings.Compare(a.Key, b.Key) })
	return vars, nil
}

// mergeEnv appends vars to base. exec.Cmd keeps the last value of a
// duplicated key, so vars override inherited values.
func mergeEnv(base []string, vars []EnvVar) []string {
	if len(vars) == 0 {
		return base
	}
	if base == nil {
		base = os.Environ()
	}
	out := slices.Clip(base)
	for _, v := range vars {
		out = append(out, v.String())
	}
	return out
}
