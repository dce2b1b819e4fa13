package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/rumscope/internal/rum"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type      string           // Assertion type for categorization
	Expected  string           // Human-readable expected outcome
	Actual    string           // Human-readable actual outcome
	Documents []DocumentRecord // Full document stream for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nDocuments:\n")
	for _, d := range e.Documents {
		fmt.Fprintf(&buf, "  [%d] %s view=%s\n", d.Seq, d.Kind, d.ViewName())
	}

	return buf.String()
}

// matching returns the documents of kind and view, in write order.
// Empty filters match everything.
func matching(docs []DocumentRecord, kind rum.DocumentKind, view string) []DocumentRecord {
	var out []DocumentRecord
	for _, d := range docs {
		if kind != "" && d.Kind != kind {
			continue
		}
		if view != "" && d.ViewName() != view {
			continue
		}
		out = append(out, d)
	}
	return out
}

func describeFilter(kind rum.DocumentKind, view string) string {
	k := "documents"
	if kind != "" {
		k = string(kind) + " documents"
	}
	if view != "" {
		return fmt.Sprintf("%s of view %q", k, view)
	}
	return k
}

// assertDocumentCount checks the number of matching documents.
func assertDocumentCount(docs []DocumentRecord, a Assertion) error {
	count := len(matching(docs, a.Kind, a.View))
	if count != a.Count {
		return &AssertionError{
			Type:      AssertDocumentCount,
			Expected:  fmt.Sprintf("%d %s", a.Count, describeFilter(a.Kind, a.View)),
			Actual:    fmt.Sprintf("%d", count),
			Documents: docs,
		}
	}
	return nil
}

// assertDocumentOrder checks that kinds appear in the given order.
// Kinds don't need to be consecutive (intervening documents are allowed).
func assertDocumentOrder(docs []DocumentRecord, a Assertion) error {
	next := 0
	for _, d := range docs {
		if next < len(a.Kinds) && d.Kind == a.Kinds[next] {
			next++
		}
	}
	if next < len(a.Kinds) {
		return &AssertionError{
			Type:      AssertDocumentOrder,
			Expected:  fmt.Sprintf("documents in order: %v", a.Kinds),
			Actual:    fmt.Sprintf("no %s document after the first %d kinds matched", a.Kinds[next], next),
			Documents: docs,
		}
	}
	return nil
}

// assertField checks the value at a.Path of one matching document.
func assertField(docs []DocumentRecord, a Assertion, kind rum.DocumentKind, defaultIndex int) error {
	candidates := matching(docs, kind, a.View)
	index := defaultIndex
	if a.Index != nil {
		index = *a.Index
	}
	pos := index
	if pos < 0 {
		pos += len(candidates)
	}
	if pos < 0 || pos >= len(candidates) {
		return &AssertionError{
			Type:      a.Type,
			Expected:  fmt.Sprintf("%s at index %d", describeFilter(kind, a.View), index),
			Actual:    fmt.Sprintf("%d matching documents", len(candidates)),
			Documents: docs,
		}
	}

	doc := candidates[pos]
	actual, ok := lookupPath(doc.Body, a.Path)
	if !ok {
		return &AssertionError{
			Type:      a.Type,
			Expected:  fmt.Sprintf("field %q on document %d", a.Path, doc.Seq),
			Actual:    "field not present",
			Documents: docs,
		}
	}

	equal, err := valuesEqual(a.Expect, actual)
	if err != nil {
		return fmt.Errorf("%s %q: %w", a.Type, a.Path, err)
	}
	if !equal {
		return &AssertionError{
			Type:      a.Type,
			Expected:  fmt.Sprintf("field %q on document %d = %v", a.Path, doc.Seq, a.Expect),
			Actual:    fmt.Sprintf("%v", actual),
			Documents: docs,
		}
	}
	return nil
}

// lookupPath walks a dotted path through maps and arrays.
func lookupPath(body map[string]any, path string) (any, bool) {
	var cur any = body
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// valuesEqual compares two values by their canonical JSON encoding, so that
// YAML ints, floats and json.Number compare by value.
func valuesEqual(expected, actual any) (bool, error) {
	want, err := rum.MarshalCanonical(expected)
	if err != nil {
		return false, fmt.Errorf("encode expected value: %w", err)
	}
	got, err := rum.MarshalCanonical(actual)
	if err != nil {
		return false, fmt.Errorf("encode actual value: %w", err)
	}
	return string(want) == string(got), nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertDocumentCount:
			err = assertDocumentCount(result.Documents, assertion)
		case AssertDocumentOrder:
			err = assertDocumentOrder(result.Documents, assertion)
		case AssertDocumentField:
			err = assertField(result.Documents, assertion, assertion.Kind, 0)
		case AssertViewField:
			err = assertField(result.Documents, assertion, rum.KindView, -1)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
