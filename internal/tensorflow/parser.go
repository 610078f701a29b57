package tensorflow

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Format is an on-disk encoding of a GraphDef.
type Format int

const (
	// Binary is the protobuf wire format (.pb).
	Binary Format = iota
	// Text is the protobuf text format (.pbtxt).
	Text
)

func (f Format) String() string {
	if f == Text {
		return "text"
	}
	return "binary"
}

// FormatOf picks the encoding from a file extension. Anything that is not a known text
// extension is read as binary.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pbtxt", ".prototxt", ".txt":
		return Text
	}
	return Binary
}

// ParseFile parses a GraphDef from file, choosing the encoding by extension.
//
//nolint:gosec // G304: Path is provided by user, file inclusion is intentional for model loading
func ParseFile(path string) (*GraphDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	return Parse(data, FormatOf(path))
}

// Parse parses a GraphDef from bytes in the given encoding.
// Fields outside the understood subset are ignored by both encodings.
func Parse(data []byte, format Format) (*GraphDef, error) {
	s, err := loadSchema()
	if err != nil {
		return nil, err
	}
	msg := dynamicpb.NewMessage(s.graphDef)
	switch format {
	case Text:
		err = prototext.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, msg)
	default:
		err = proto.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, msg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s GraphDef", format)
	}
	return decodeGraph(msg), nil
}

// Encode serializes def in the given encoding. Binary output is deterministic.
func Encode(def *GraphDef, format Format) ([]byte, error) {
	s, err := loadSchema()
	if err != nil {
		return nil, err
	}
	msg := dynamicpb.NewMessage(s.graphDef)
	encodeGraph(def, msg)
	if format == Text {
		return prototext.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

// fieldOf looks up a field by name; the schema is fixed so a miss is a programming error.
func fieldOf(md protoreflect.MessageDescriptor, name string) protoreflect.FieldDescriptor {
	fd := md.Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic(errors.Errorf("tensorflow: schema message %s has no field %q", md.FullName(), name))
	}
	return fd
}

func get(m protoreflect.Message, name string) protoreflect.Value {
	return m.Get(fieldOf(m.Descriptor(), name))
}

func list(m protoreflect.Message, name string) protoreflect.List {
	return get(m, name).List()
}

// Decoding: dynamic message -> Go types.

func decodeGraph(m protoreflect.Message) *GraphDef {
	def := &GraphDef{}
	nodes := list(m, "node")
	def.Nodes = make([]*NodeDef, nodes.Len())
	for i := range def.Nodes {
		def.Nodes[i] = decodeNode(nodes.Get(i).Message())
	}
	if versions := fieldOf(m.Descriptor(), "versions"); m.Has(versions) {
		v := m.Get(versions).Message()
		def.Producer = int32(get(v, "producer").Int())
		def.MinConsumer = int32(get(v, "min_consumer").Int())
	}
	return def
}

func decodeNode(m protoreflect.Message) *NodeDef {
	n := &NodeDef{
		Name:   get(m, "name").String(),
		Op:     get(m, "op").String(),
		Device: get(m, "device").String(),
	}
	inputs := list(m, "input")
	for i := 0; i < inputs.Len(); i++ {
		n.Inputs = append(n.Inputs, inputs.Get(i).String())
	}
	attrs := get(m, "attr").Map()
	if attrs.Len() > 0 {
		n.Attr = make(map[string]*AttrValue, attrs.Len())
		attrs.Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
			n.Attr[k.String()] = decodeAttr(v.Message())
			return true
		})
	}
	return n
}

func decodeAttr(m protoreflect.Message) *AttrValue {
	a := &AttrValue{}
	fd := m.WhichOneof(m.Descriptor().Oneofs().ByName("value"))
	if fd == nil {
		return a
	}
	v := m.Get(fd)
	switch fd.Name() {
	case "list":
		a.Kind, a.List = AttrList, decodeList(v.Message())
	case "s":
		a.Kind, a.S = AttrString, v.Bytes()
	case "i":
		a.Kind, a.I = AttrInt, v.Int()
	case "f":
		a.Kind, a.F = AttrFloat, float32(v.Float())
	case "b":
		a.Kind, a.B = AttrBool, v.Bool()
	case "type":
		a.Kind, a.Type = AttrType, DataType(v.Enum())
	case "shape":
		a.Kind, a.Shape = AttrShape, decodeShape(v.Message())
	case "tensor":
		a.Kind, a.Tensor = AttrTensor, decodeTensor(v.Message())
	}
	return a
}

func decodeList(m protoreflect.Message) *ListValue {
	l := &ListValue{}
	for s, i := list(m, "s"), 0; i < s.Len(); i++ {
		l.S = append(l.S, s.Get(i).Bytes())
	}
	for s, i := list(m, "i"), 0; i < s.Len(); i++ {
		l.I = append(l.I, s.Get(i).Int())
	}
	for s, i := list(m, "f"), 0; i < s.Len(); i++ {
		l.F = append(l.F, float32(s.Get(i).Float()))
	}
	for s, i := list(m, "b"), 0; i < s.Len(); i++ {
		l.B = append(l.B, s.Get(i).Bool())
	}
	for s, i := list(m, "type"), 0; i < s.Len(); i++ {
		l.Type = append(l.Type, DataType(s.Get(i).Enum()))
	}
	for s, i := list(m, "shape"), 0; i < s.Len(); i++ {
		l.Shape = append(l.Shape, decodeShape(s.Get(i).Message()))
	}
	for s, i := list(m, "tensor"), 0; i < s.Len(); i++ {
		l.Tensor = append(l.Tensor, decodeTensor(s.Get(i).Message()))
	}
	return l
}

func decodeShape(m protoreflect.Message) *TensorShape {
	s := &TensorShape{UnknownRank: get(m, "unknown_rank").Bool()}
	for dims, i := list(m, "dim"), 0; i < dims.Len(); i++ {
		s.Dims = append(s.Dims, get(dims.Get(i).Message(), "size").Int())
	}
	return s
}

func decodeTensor(m protoreflect.Message) *TensorProto {
	t := &TensorProto{
		DType:   DataType(get(m, "dtype").Enum()),
		Content: get(m, "tensor_content").Bytes(),
	}
	if shape := fieldOf(m.Descriptor(), "tensor_shape"); m.Has(shape) {
		t.Shape = decodeShape(m.Get(shape).Message())
	}
	for s, i := list(m, "float_val"), 0; i < s.Len(); i++ {
		t.FloatVal = append(t.FloatVal, float32(s.Get(i).Float()))
	}
	for s, i := list(m, "double_val"), 0; i < s.Len(); i++ {
		t.DoubleVal = append(t.DoubleVal, s.Get(i).Float())
	}
	for s, i := list(m, "int_val"), 0; i < s.Len(); i++ {
		t.IntVal = append(t.IntVal, int32(s.Get(i).Int()))
	}
	for s, i := list(m, "int64_val"), 0; i < s.Len(); i++ {
		t.Int64Val = append(t.Int64Val, s.Get(i).Int())
	}
	for s, i := list(m, "half_val"), 0; i < s.Len(); i++ {
		t.HalfVal = append(t.HalfVal, int32(s.Get(i).Int()))
	}
	for s, i := list(m, "bool_val"), 0; i < s.Len(); i++ {
		t.BoolVal = append(t.BoolVal, s.Get(i).Bool())
	}
	for s, i := list(m, "string_val"), 0; i < s.Len(); i++ {
		t.StringVal = append(t.StringVal, s.Get(i).Bytes())
	}
	return t
}

// Encoding: Go types -> dynamic message.

func set(m protoreflect.Message, name string, v protoreflect.Value) {
	m.Set(fieldOf(m.Descriptor(), name), v)
}

func mutableList(m protoreflect.Message, name string) protoreflect.List {
	return m.Mutable(fieldOf(m.Descriptor(), name)).List()
}

func encodeGraph(def *GraphDef, m protoreflect.Message) {
	nodes := mutableList(m, "node")
	for _, n := range def.Nodes {
		v := nodes.NewElement()
		encodeNode(n, v.Message())
		nodes.Append(v)
	}
	if def.Producer != 0 || def.MinConsumer != 0 {
		versions := m.Mutable(fieldOf(m.Descriptor(), "versions")).Message()
		set(versions, "producer", protoreflect.ValueOfInt32(def.Producer))
		set(versions, "min_consumer", protoreflect.ValueOfInt32(def.MinConsumer))
	}
}

func encodeNode(n *NodeDef, m protoreflect.Message) {
	set(m, "name", protoreflect.ValueOfString(n.Name))
	set(m, "op", protoreflect.ValueOfString(n.Op))
	if n.Device != "" {
		set(m, "device", protoreflect.ValueOfString(n.Device))
	}
	inputs := mutableList(m, "input")
	for _, in := range n.Inputs {
		inputs.Append(protoreflect.ValueOfString(in))
	}
	if len(n.Attr) == 0 {
		return
	}
	attrs := m.Mutable(fieldOf(m.Descriptor(), "attr")).Map()
	for k, a := range n.Attr {
		v := attrs.NewValue()
		encodeAttr(a, v.Message())
		attrs.Set(protoreflect.ValueOfString(k).MapKey(), v)
	}
}

func encodeAttr(a *AttrValue, m protoreflect.Message) {
	switch a.Kind {
	case AttrList:
		encodeList(a.List, m.Mutable(fieldOf(m.Descriptor(), "list")).Message())
	case AttrString:
		set(m, "s", protoreflect.ValueOfBytes(a.S))
	case AttrInt:
		set(m, "i", protoreflect.ValueOfInt64(a.I))
	case AttrFloat:
		set(m, "f", protoreflect.ValueOfFloat32(a.F))
	case AttrBool:
		set(m, "b", protoreflect.ValueOfBool(a.B))
	case AttrType:
		set(m, "type", protoreflect.ValueOfEnum(protoreflect.EnumNumber(a.Type)))
	case AttrShape:
		encodeShape(a.Shape, m.Mutable(fieldOf(m.Descriptor(), "shape")).Message())
	case AttrTensor:
		encodeTensor(a.Tensor, m.Mutable(fieldOf(m.Descriptor(), "tensor")).Message())
	}
}

func encodeList(l *ListValue, m protoreflect.Message) {
	if l == nil {
		return
	}
	for _, s := range l.S {
		mutableList(m, "s").Append(protoreflect.ValueOfBytes(s))
	}
	for _, i := range l.I {
		mutableList(m, "i").Append(protoreflect.ValueOfInt64(i))
	}
	for _, f := range l.F {
		mutableList(m, "f").Append(protoreflect.ValueOfFloat32(f))
	}
	for _, b := range l.B {
		mutableList(m, "b").Append(protoreflect.ValueOfBool(b))
	}
	for _, t := range l.Type {
		mutableList(m, "type").Append(protoreflect.ValueOfEnum(protoreflect.EnumNumber(t)))
	}
	for _, s := range l.Shape {
		shapes := mutableList(m, "shape")
		v := shapes.NewElement()
		encodeShape(s, v.Message())
		shapes.Append(v)
	}
	for _, t := range l.Tensor {
		tensors := mutableList(m, "tensor")
		v := tensors.NewElement()
		encodeTensor(t, v.Message())
		tensors.Append(v)
	}
}

func encodeShape(s *TensorShape, m protoreflect.Message) {
	if s == nil {
		return
	}
	if s.UnknownRank {
		set(m, "unknown_rank", protoreflect.ValueOfBool(true))
	}
	dims := mutableList(m, "dim")
	for _, size := range s.Dims {
		v := dims.NewElement()
		set(v.Message(), "size", protoreflect.ValueOfInt64(size))
		dims.Append(v)
	}
}

func encodeTensor(t *TensorProto, m protoreflect.Message) {
	if t == nil {
		return
	}
	set(m, "dtype", protoreflect.ValueOfEnum(protoreflect.EnumNumber(t.DType)))
	if t.Shape != nil {
		encodeShape(t.Shape, m.Mutable(fieldOf(m.Descriptor(), "tensor_shape")).Message())
	}
	if len(t.Content) > 0 {
		set(m, "tensor_content", protoreflect.ValueOfBytes(t.Content))
	}
	for _, f := range t.FloatVal {
		mutableList(m, "float_val").Append(protoreflect.ValueOfFloat32(f))
	}
	for _, d := range t.DoubleVal {
		mutableList(m, "double_val").Append(protoreflect.ValueOfFloat64(d))
	}
	for _, i := range t.IntVal {
		mutableList(m, "int_val").Append(protoreflect.ValueOfInt32(i))
	}
	for _, i := range t.Int64Val {
		mutableList(m, "int64_val").Append(protoreflect.ValueOfInt64(i))
	}
	for _, h := range t.HalfVal {
		mutableList(m, "half_val").Append(protoreflect.ValueOfInt32(h))
	}
	for _, b := range t.BoolVal {
		mutableList(m, "bool_val").Append(protoreflect.ValueOfBool(b))
	}
	for _, s := range t.StringVal {
		mutableList(m, "string_val").Append(protoreflect.ValueOfBytes(s))
	}
}
