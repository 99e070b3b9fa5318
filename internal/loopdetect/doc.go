// Package loopdetect flags message batches whose shape suggests an automation
// loop: an assistant (or a script driving it) repeating itself rather than
// making progress.
//
// Detector.Analyze runs three independent passes over a complete, ordered
// batch and returns every finding:
//
//   - Volume: the batch is simply very long.
//   - Content: one message body (whitespace-normalized, speaker ignored) recurs.
//   - Pattern: a window of consecutive (role, content) pairs recurs. Window
//     sizes are scanned smallest first and scanning stops at the first size
//     that qualifies.
//
// A repetition count at or above MinRepetitions is a Warning, at or above twice
// that it is Critical.
//
// The content pass ignores roles while the pattern pass includes them. The two
// have always behaved this way and callers rely on the counts; keep the
// asymmetry unless product asks otherwise.
//
// Analysis is pure and allocation-bounded: no I/O, no errors, safe for
// concurrent use.
package loopdetect
