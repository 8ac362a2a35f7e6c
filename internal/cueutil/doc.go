// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema and
// reports failures as "<file>: <json-path>: <message>".
package cueutil
