// Package version holds the release version and the version of the enrichment rules.
package version

// Current is the release version, without a "v" prefix.
const Current = "0.3.0"

// Rules identifies the prompt, classification and normalization rules. Bumping it invalidates
// every cached enrichment.
const Rules = "2026.10"
