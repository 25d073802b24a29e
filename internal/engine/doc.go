// Package engine implements the model resource lifecycle for the speech
// synthesis daemon: lazy per-variant loading with a load-once guarantee,
// process-wide device/precision selection with a single permanent fallback
// to CPU on device resource exhaustion, and a content-addressed cache of
// reusable voice-clone prompts.
//
// The engine is fully synchronous: generation calls block until the backend
// returns. Hosts that need non-blocking handling run it on their own worker
// pool.
package engine
