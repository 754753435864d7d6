// Package pipeline turns an accepted clip request into a downloadable clip.
//
// Each job walks a fixed state machine:
//
//	Queued -> Acquiring -> Staged -> Transforming -> Encoding -> Finalized
//
// and may move to Failed from any non-terminal state. Acquiring fetches
// metadata, enforces the input ceiling and copies the source into a private
// staging file. Transforming waits for an encode slot and reserves an output
// name. Encoding runs the engine. Finalized registers the output with the
// artifact store. The staging file is removed on every exit path.
//
// Jobs run on the caller's goroutine. Their context is detached from the
// caller, bounded by the job timeout and cancelled when the pipeline shuts
// down.
package pipeline
