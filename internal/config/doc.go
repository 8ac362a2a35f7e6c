// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/runner/config.cue on Linux,
// ~/Library/Application Support/runner/config.cue on macOS and
// %APPDATA%\runner\config.cue on Windows, falling back to ./config.cue.
// Files are validated against the embedded config_schema.cue before being
// merged over the defaults.
package config
