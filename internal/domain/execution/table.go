package execution

import (
	"errors"
	"fmt"
)

// ErrDuplicateResult reports two cases resolving to the same result key.
var ErrDuplicateResult = errors.New("duplicate result key")

// ResultTable maps package name to test name to result.
type ResultTable map[string]map[string]Result

// Insert stores result under key. It refuses to overwrite an existing entry.
func (t ResultTable) Insert(key ResultKey, result Result) error {
	tests, ok := t[key.Package]
	if !ok {
		tests = make(map[string]Result)
		t[key.Package] = tests
	}
	if _, exists := tests[key.TestName]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateResult, key)
	}
	tests[key.TestName] = result
	return nil
}

// Len returns the number of results in the table.
func (t ResultTable) Len() int {
	n := 0
	for _, tests := range t {
		n += len(tests)
	}
	return n
}
