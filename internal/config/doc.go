// SPDX-License-Identifier: MPL-2.0

// Package config loads kiln's user configuration.
//
// Configuration lives in a CUE file (config.cue) under the platform config
// directory, validated against an embedded #Config schema and merged into
// Viper on top of defaults and KILN_* environment variables. A missing config
// file is not an error: defaults apply.
package config
