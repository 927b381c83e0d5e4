// Package ir provides the wire and normalized representations of a recorded
// test run.
//
// Wire records (RunExport and friends) mirror the run detail payload served by
// the dashboard API. TimelineItem is the normalized form every other package
// works with. ir imports nothing internal, which keeps it the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - All JSON tags use snake_case
//   - Optional numbers are pointers; absence is never defaulted to zero
//   - TimelineItem values are never mutated after normalization
//   - Wall-clock timestamps are carried verbatim (RawTime) until the
//     normalizer coerces them to UTC
package ir
