// Package artifacts owns finished clips on disk.
//
// A clip's life in the store is:
//
//	Reserve  -> a unique name and path are handed to the encoder
//	Register -> the encoded file becomes downloadable
//	Claim    -> the first download takes ownership; later claims get ErrNotFound
//	Release  -> the file is deleted once it was delivered in full
//
// Encodes that fail are dropped with Discard. Anything left behind, such as
// clips nobody downloaded or transfers that broke off, is removed by Sweep
// once it is older than the retention age. A Reaper runs Sweep on a ticker.
package artifacts
