// Package compression removes conversational noise from transcripts before they
// are archived.
//
// Two pieces live here:
//   - NoiseFilter classifies one message's content as informative (possibly
//     trimmed) or entirely noise.
//   - MessageCompressor applies the filter across an ordered batch and reports
//     token-volume estimates for observability.
//
// # Classification Order
//
// NoiseFilter.Filter always runs the same steps:
//  1. Strip boilerplate wrappers (environment context blocks, system reminders,
//     the empty tool output sentinel) wherever they occur.
//  2. Trim surrounding whitespace.
//  3. Drop the message if the whole remainder is a pleasantry or a bare
//     acknowledgement ("thanks", "ok", "let me ...", "noted").
//  4. Drop the message if fewer than MinContentLength characters remain.
//
// Partial noise is cleaned, total noise is deleted: a system reminder followed
// by a real question keeps the question, a lone "Thanks!" disappears.
//
// # Ruleset
//
// Patterns are data, not code. DefaultRules returns the versioned table
// (RulesetVersion) and NewNoiseFilter compiles it once. The ruleset is not
// configurable at runtime; change the table and bump the version instead.
//
// # Token Estimates
//
// Token counts use the 4 characters per token heuristic with a fixed 5 token
// overhead per message for role framing. They are for reporting only and never
// influence classification.
//
// # Concurrency Safety
//
// NoiseFilter and MessageCompressor hold only compiled patterns and are safe for
// concurrent use.
package compression
