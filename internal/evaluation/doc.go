// Package evaluation drives evaluation trees over event streams.
//
// Three entry points share the same per-tree loop:
//
//   - Evaluate runs one tree over a stream synchronously.
//   - Engine is a single-writer loop fed through Enqueue, for callers that
//     push events from several goroutines.
//   - RunPatterns evaluates many trees over one stream, each tree in its
//     own goroutine.
//
// Every tree is still driven by exactly one goroutine. Trees never share
// state, so running them side by side needs no locking beyond the sink.
package evaluation
