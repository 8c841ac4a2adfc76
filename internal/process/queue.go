package process

import "slices"

// resultQueue holds canned results per command key, consumed in FIFO order
type resultQueue struct {
	results map[string][]Result
}

func newResultQueue() *resultQueue {
	return &resultQueue{results: make(map[string][]Result)}
}

// register replaces every queued result
func (q *resultQueue) register(results map[string][]Result) {
	q.results = make(map[string][]Result, len(results))
	for key, rs := range results {
		q.results[key] = slices.Clone(rs)
	}
}

// pop removes and returns the next result for key
func (q *resultQueue) pop(key string) (Result, error) {
	rs, exists := q.results[key]
	if !exists {
		return Result{}, &ConfigurationError{Key: key, Err: ErrCommandNotRegistered}
	}
	if len(rs) == 0 {
		return Result{}, &ConfigurationError{Key: key, Err: ErrResultsExhausted}
	}

	q.results[key] = rs[1:]
	return rs[0], nil
}

func (q *resultQueue) remaining(key string) int {
	return len(q.results[key])
}

// pending returns the keys that still have results queued
func (q *resultQueue) pending() map[string]int {
	out := make(map[string]int)
	for key, rs := range q.results {
		if len(rs) > 0 {
			out[key] = len(rs)
		}
	}
	return out
}

// stdoutResults turns stdout texts into successful results
func stdoutResults(outputs map[string][]string) map[string][]Result {
	results := make(map[string][]Result, len(outputs))
	for key, texts := range outputs {
		rs := make([]Result, 0, len(texts))
		for _, text := range texts {
			rs = append(rs, Result{ExitCode: 0, Stdout: text})
		}
		results[key] = rs
	}
	return results
}
