package tensorflow

import (
	"reflect"

	"github.com/xmartlabs/Bender-sub000/internal/graph"
)

// Node is a graph vertex wrapping one NodeDef.
type Node struct {
	Def   *NodeDef
	links graph.Links[*Node]
}

// NewNode wraps def. The node starts without edges.
func NewNode(def *NodeDef) *Node {
	return &Node{Def: def}
}

// Links implements graph.Node.
func (n *Node) Links() *graph.Links[*Node] { return &n.links }

// Same reports whether both nodes wrap equal NodeDef records.
func (n *Node) Same(o *Node) bool {
	return n == o || reflect.DeepEqual(n.Def, o.Def)
}

// String returns the node name.
func (n *Node) String() string { return n.Def.Name }

// Name returns the node name.
func (n *Node) Name() string { return n.Def.Name }

// Op returns the operator type.
func (n *Node) Op() string { return n.Def.Op }

// IsOp reports whether the operator type is one of ops.
func (n *Node) IsOp(ops ...string) bool {
	for _, op := range ops {
		if n.Def.Op == op {
			return true
		}
	}
	return false
}

// Retag changes the operator type, as fusion passes do.
func (n *Node) Retag(op string) { n.Def.Op = op }

// Incoming returns the producers of n in edge order.
func (n *Node) Incoming() []*Node { return n.links.Incoming() }

// Outgoing returns the consumers of n in edge order.
func (n *Node) Outgoing() []*Node { return n.links.Outgoing() }

// IncomingOp returns the first producer whose op is one of ops, or nil.
func (n *Node) IncomingOp(ops ...string) *Node {
	for _, in := range n.links.Incoming() {
		if in.IsOp(ops...) {
			return in
		}
	}
	return nil
}

// OutgoingOp returns the first consumer whose op is one of ops, or nil.
func (n *Node) OutgoingOp(ops ...string) *Node {
	for _, out := range n.links.Outgoing() {
		if out.IsOp(ops...) {
			return out
		}
	}
	return nil
}

// Attr returns the named attribute.
func (n *Node) Attr(name string) (*AttrValue, bool) {
	a, ok := n.Def.Attr[name]
	return a, ok && a != nil
}

// SetAttr sets the named attribute.
func (n *Node) SetAttr(name string, v *AttrValue) {
	if n.Def.Attr == nil {
		n.Def.Attr = make(map[string]*AttrValue)
	}
	n.Def.Attr[name] = v
}

// Int returns an int attribute or def.
func (n *Node) Int(name string, def int64) int64 {
	if a, ok := n.Attr(name); ok && a.Kind == AttrInt {
		return a.I
	}
	return def
}

// Float returns a float attribute or def.
func (n *Node) Float(name string, def float32) float32 {
	if a, ok := n.Attr(name); ok && a.Kind == AttrFloat {
		return a.F
	}
	return def
}

// Str returns a string attribute or def.
func (n *Node) Str(name, def string) string {
	if a, ok := n.Attr(name); ok && a.Kind == AttrString {
		return string(a.S)
	}
	return def
}

// Bool returns a bool attribute or def.
func (n *Node) Bool(name string, def bool) bool {
	if a, ok := n.Attr(name); ok && a.Kind == AttrBool {
		return a.B
	}
	return def
}

// Ints returns an int list attribute, or nil.
func (n *Node) Ints(name string) []int64 {
	if a, ok := n.Attr(name); ok && a.Kind == AttrList && a.List != nil {
		return a.List.I
	}
	return nil
}

// Tensor returns a tensor attribute, or nil.
func (n *Node) Tensor(name string) *TensorProto {
	if a, ok := n.Attr(name); ok && a.Kind == AttrTensor {
		return a.Tensor
	}
	return nil
}

// Shape returns a shape attribute, or nil.
func (n *Node) Shape(name string) *TensorShape {
	if a, ok := n.Attr(name); ok && a.Kind == AttrShape {
		return a.Shape
	}
	return nil
}

// MustStr returns a required string attribute. It panics with an *ImportError if missing.
func (n *Node) MustStr(name string) string {
	if a, ok := n.Attr(name); ok && a.Kind == AttrString {
		return string(a.S)
	}
	panic(Errorf(n, "missing string attribute %q", name))
}

// MustInts returns a required int list attribute. It panics with an *ImportError if missing.
func (n *Node) MustInts(name string) []int64 {
	if a, ok := n.Attr(name); ok && a.Kind == AttrList && a.List != nil {
		return a.List.I
	}
	panic(Errorf(n, "missing int list attribute %q", name))
}

// MustTensor returns a required tensor attribute. It panics with an *ImportError if missing.
func (n *Node) MustTensor(name string) *TensorProto {
	if t := n.Tensor(name); t != nil {
		return t
	}
	panic(Errorf(n, "missing tensor attribute %q", name))
}

// MustFloat returns a required float attribute. It panics with an *ImportError if missing.
func (n *Node) MustFloat(name string) float32 {
	if a, ok := n.Attr(name); ok && a.Kind == AttrFloat {
		return a.F
	}
	panic(Errorf(n, "missing float attribute %q", name))
}
