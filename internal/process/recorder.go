package process

import (
	"maps"
	"slices"
)

// recorder is the append-only log of calls made to a FakeManager
type recorder struct {
	invocations []Invocation
}

func (r *recorder) record(inv Invocation) {
	r.invocations = append(r.invocations, inv)
}

func (r *recorder) all() []Invocation {
	out := make([]Invocation, len(r.invocations))
	for i, inv := range r.invocations {
		out[i] = inv
		out[i].Args = slices.Clone(inv.Args)
		out[i].Environment = maps.Clone(inv.Environment)
	}
	return out
}

func (r *recorder) commandLines() []string {
	lines := make([]string, len(r.invocations))
	for i, inv := range r.invocations {
		lines[i] = inv.CommandLine()
	}
	return lines
}

// verify checks the recorded positional arguments against expected command lines.
// Named options are not compared.
func (r *recorder) verify(expected []string) error {
	return VerifyInvocations(r.invocations, expected)
}

// VerifyInvocations reports whether invocations match expected, in order and in count
func VerifyInvocations(invocations []Invocation, expected []string) error {
	recorded := make([]string, len(invocations))
	for i, inv := range invocations {
		recorded[i] = inv.CommandLine()
	}

	if len(invocations) != len(expected) {
		return &VerificationError{Expected: slices.Clone(expected), Recorded: recorded, Index: -1}
	}

	for i, line := range expected {
		if !slices.Equal(SplitCommandLine(line), invocations[i].Args) {
			return &VerificationError{Expected: slices.Clone(expected), Recorded: recorded, Index: i}
		}
	}
	return nil
}
