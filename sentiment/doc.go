// Package sentiment classifies text as POSITIVE or NEGATIVE.
//
// Inference is delegated to a remote text-classification server through
// [HTTPClassifier], which wraps each call in a bulkhead, circuit breaker,
// retry and timeout. [Analyzer] trims and truncates input, maps raw model
// labels (LABEL_0/1/2 or their names) to [Label] values and caches results.
//
// # Neutral collapse
//
// Three-class models may predict NEUTRAL. The service reports only two
// labels, so a neutral winner is replaced by whichever of the positive and
// negative raw scores is larger, and that raw score becomes the
// confidence. Ties resolve to NEGATIVE. See [Postprocess].
//
// # Batches
//
// [Analyzer.AnalyzeMany] processes items sequentially. An item that fails
// does not fail the batch; it yields NEGATIVE with zero confidence and
// [Result.Failed] reports true.
package sentiment
