package tensorflow

import "fmt"

// ImportError reports a graph that violates a structural expectation of the importer:
// an unresolved input, a missing required attribute or a failed optimizer guard.
//
// It is raised with panic inside the import pipeline and recovered at its public entry points.
type ImportError struct {
	Node   string // Offending node name, may be empty
	Op     string // Its operator type
	Reason string
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	if e.Node == "" {
		return "tensorflow: " + e.Reason
	}
	return fmt.Sprintf("tensorflow: node %q (%s): %s", e.Node, e.Op, e.Reason)
}

// Errorf builds an *ImportError about n. n may be nil.
func Errorf(n *Node, format string, args ...any) *ImportError {
	e := &ImportError{Reason: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Node, e.Op = n.Def.Name, n.Def.Op
	}
	return e
}

// Expect panics with an *ImportError about n unless cond holds.
func Expect(cond bool, n *Node, format string, args ...any) {
	if !cond {
		panic(Errorf(n, format, args...))
	}
}
