package process

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestResultQueue_Pop(t *testing.T) {
	q := newResultQueue()
	q.register(map[string][]Result{
		"git log": {{Stdout: "first"}, {Stdout: "second", ExitCode: 1}},
	})

	r, err := q.pop("git log")
	require.NoError(t, err)
	assert.Equal(t, "first", r.Stdout)
	assert.Equal(t, 1, q.remaining("git log"))

	r, err = q.pop("git log")
	require.NoError(t, err)
	assert.Equal(t, Result{Stdout: "second", ExitCode: 1}, r)

	_, err = q.pop("git log")
	require.ErrorIs(t, err, ErrResultsExhausted)

	_, err = q.pop("git show")
	require.ErrorIs(t, err, ErrCommandNotRegistered)
	assert.Contains(t, err.Error(), `"git show"`)
}

func TestResultQueue_Pending(t *testing.T) {
	q := newResultQueue()
	q.register(stdoutResults(map[string][]string{
		"a": {"1", "2"},
		"b": {},
		"c": {"3"},
	}))

	_, err := q.pop("c")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"a": 2}, q.pending())
}

func TestStdoutResults(t *testing.T) {
	got := stdoutResults(map[string][]string{"echo hi": {"hi", ""}})
	assert.Equal(t, map[string][]Result{
		"echo hi": {{ExitCode: 0, Stdout: "hi"}, {ExitCode: 0, Stdout: ""}},
	}, got)
}

func TestFakeManager_QueueProperties(t *testing.T) {
	keys := rapid.SampledFrom([]string{"git status", "git add .", "make", "ls -la"})

	rapid.Check(t, func(rt *rapid.T) {
		registered := rapid.MapOf(keys, rapid.SliceOfN(rapid.String(), 0, 5)).Draw(rt, "registered")
		m := NewFakeManager()
		m.SetResults(registered)

		for key, outputs := range registered {
			args := SplitCommandLine(key)
			for n, want := range outputs {
				result, err := m.RunSync(args)
				if err != nil {
					rt.Fatalf("call %d of %q: %v", n+1, key, err)
				}
				if result.Stdout != want || result.ExitCode != 0 {
					rt.Fatalf("call %d of %q: got %+v, want stdout %q", n+1, key, result, want)
				}
			}
			if _, err := m.RunSync(args); !errors.Is(err, ErrResultsExhausted) {
				rt.Fatalf("call %d of %q: expected exhaustion, got %v", len(outputs)+1, key, err)
			}
		}
	})
}

func TestVerifyInvocations_Properties(t *testing.T) {
	line := rapid.SampledFrom([]string{"git status", "git add .", "make build", "ls"})

	rapid.Check(t, func(rt *rapid.T) {
		recorded := rapid.SliceOfN(line, 0, 6).Draw(rt, "recorded")
		expected := rapid.SliceOfN(line, 0, 6).Draw(rt, "expected")

		invocations := make([]Invocation, len(recorded))
		for i, l := range recorded {
			invocations[i] = Invocation{Op: OpRun, Args: SplitCommandLine(l)}
		}

		err := VerifyInvocations(invocations, expected)
		equal := slices.Equal(recorded, expected)
		if equal && err != nil {
			rt.Fatalf("equal lists rejected: %v", err)
		}
		if !equal && err == nil {
			rt.Fatalf("unequal lists accepted: recorded %q, expected %q", recorded, expected)
		}
	})
}
