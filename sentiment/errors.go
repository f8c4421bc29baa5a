package sentiment

import "errors"

var (
	// ErrModelNotLoaded indicates the model is not loaded or not healthy.
	ErrModelNotLoaded = errors.New("sentiment: model not loaded")

	// ErrEmptyText indicates the input was empty after trimming.
	ErrEmptyText = errors.New("sentiment: text cannot be empty")

	// ErrBatchTooLarge indicates a batch exceeded the configured limit.
	ErrBatchTooLarge = errors.New("sentiment: batch size exceeds limit")

	// ErrEmptyPrediction indicates the model returned no scores.
	ErrEmptyPrediction = errors.New("sentiment: empty prediction")

	// ErrUnknownLabel indicates a label outside the reported set.
	ErrUnknownLabel = errors.New("sentiment: unknown label")

	// ErrModelRequest indicates the model server failed to answer.
	ErrModelRequest = errors.New("sentiment: model request failed")

	// ErrModelRejected indicates the model server refused the input.
	ErrModelRejected = errors.New("sentiment: model rejected request")
)
