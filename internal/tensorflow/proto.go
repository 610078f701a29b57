package tensorflow

// TensorFlow GraphDef data structures.
// Field numbers and semantics follow tensorflow/core/framework/*.proto.

// GraphDef represents a serialized computation graph.
type GraphDef struct {
	Nodes       []*NodeDef // Operation nodes, in declaration order
	Producer    int32      // versions.producer
	MinConsumer int32      // versions.min_consumer
}

// NodeDef represents a single operation.
type NodeDef struct {
	Name   string                // Unique node name, also used for scope matching
	Op     string                // Operator type (e.g., "Conv2D", "MatMul", "Relu")
	Inputs []string              // Input references: "name", "name:1" or "^control"
	Device string                // Requested device (ignored)
	Attr   map[string]*AttrValue // Named attributes
}

// AttrKind tells which member of an AttrValue is set.
type AttrKind int

// Attribute kinds (AttrValue oneof members).
const (
	AttrNone   AttrKind = iota
	AttrList            // list
	AttrString          // s
	AttrInt             // i
	AttrFloat           // f
	AttrBool            // b
	AttrType            // type
	AttrShape           // shape
	AttrTensor          // tensor
)

// AttrValue represents a node attribute.
type AttrValue struct {
	Kind   AttrKind
	S      []byte       // STRING value
	I      int64        // INT value
	F      float32      // FLOAT value
	B      bool         // BOOL value
	Type   DataType     // TYPE value
	Shape  *TensorShape // SHAPE value
	Tensor *TensorProto // TENSOR value
	List   *ListValue   // LIST value
}

// ListValue holds the members of a list attribute.
type ListValue struct {
	S      [][]byte
	I      []int64
	F      []float32
	B      []bool
	Type   []DataType
	Shape  []*TensorShape
	Tensor []*TensorProto
}

// TensorShape describes tensor dimensions. A size of -1 is an unknown dimension.
type TensorShape struct {
	Dims        []int64
	UnknownRank bool
}

// TensorProto represents a constant tensor payload.
type TensorProto struct {
	DType     DataType     // Element data type
	Shape     *TensorShape // Tensor shape
	Content   []byte       // Raw little-endian data (most common)
	FloatVal  []float32    // DT_FLOAT values
	DoubleVal []float64    // DT_DOUBLE values
	IntVal    []int32      // DT_INT32, DT_INT16, DT_INT8, DT_UINT8 values
	Int64Val  []int64      // DT_INT64 values
	HalfVal   []int32      // DT_HALF values, as raw uint16 bits
	BoolVal   []bool       // DT_BOOL values
	StringVal [][]byte     // DT_STRING values
}

// DataType is a TensorFlow element type.
type DataType int32

// TensorFlow data types (types.proto).
const (
	DTInvalid    DataType = 0
	DTFloat      DataType = 1  // float32
	DTDouble     DataType = 2  // float64
	DTInt32      DataType = 3  // int32
	DTUint8      DataType = 4  // uint8
	DTInt16      DataType = 5  // int16
	DTInt8       DataType = 6  // int8
	DTString     DataType = 7  // string
	DTComplex64  DataType = 8  // complex64
	DTInt64      DataType = 9  // int64
	DTBool       DataType = 10 // bool
	DTQInt8      DataType = 11 // quantized int8
	DTQUint8     DataType = 12 // quantized uint8
	DTQInt32     DataType = 13 // quantized int32
	DTBfloat16   DataType = 14 // bfloat16
	DTQInt16     DataType = 15 // quantized int16
	DTQUint16    DataType = 16 // quantized uint16
	DTUint16     DataType = 17 // uint16
	DTComplex128 DataType = 18 // complex128
	DTHalf       DataType = 19 // float16
	DTResource   DataType = 20 // resource handle
	DTVariant    DataType = 21 // variant
	DTUint32     DataType = 22 // uint32
	DTUint64     DataType = 23 // uint64

	// Reference types are the base type + 100.
	DTFloatRef  DataType = 101
	DTDoubleRef DataType = 102
	DTInt32Ref  DataType = 103
	DTInt64Ref  DataType = 109
	DTBoolRef   DataType = 110
	DTHalfRef   DataType = 119
)

var dataTypeNames = map[DataType]string{
	DTInvalid:    "DT_INVALID",
	DTFloat:      "DT_FLOAT",
	DTDouble:     "DT_DOUBLE",
	DTInt32:      "DT_INT32",
	DTUint8:      "DT_UINT8",
	DTInt16:      "DT_INT16",
	DTInt8:       "DT_INT8",
	DTString:     "DT_STRING",
	DTComplex64:  "DT_COMPLEX64",
	DTInt64:      "DT_INT64",
	DTBool:       "DT_BOOL",
	DTQInt8:      "DT_QINT8",
	DTQUint8:     "DT_QUINT8",
	DTQInt32:     "DT_QINT32",
	DTBfloat16:   "DT_BFLOAT16",
	DTQInt16:     "DT_QINT16",
	DTQUint16:    "DT_QUINT16",
	DTUint16:     "DT_UINT16",
	DTComplex128: "DT_COMPLEX128",
	DTHalf:       "DT_HALF",
	DTResource:   "DT_RESOURCE",
	DTVariant:    "DT_VARIANT",
	DTUint32:     "DT_UINT32",
	DTUint64:     "DT_UINT64",
	DTFloatRef:   "DT_FLOAT_REF",
	DTDoubleRef:  "DT_DOUBLE_REF",
	DTInt32Ref:   "DT_INT32_REF",
	DTInt64Ref:   "DT_INT64_REF",
	DTBoolRef:    "DT_BOOL_REF",
	DTHalfRef:    "DT_HALF_REF",
}

// String returns the TensorFlow enum name.
func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return "DT_UNKNOWN"
}

// Attribute constructors, convenient for building graphs by hand.

// StringAttr returns a string attribute.
func StringAttr(s string) *AttrValue { return &AttrValue{Kind: AttrString, S: []byte(s)} }

// IntAttr returns an int attribute.
func IntAttr(i int64) *AttrValue { return &AttrValue{Kind: AttrInt, I: i} }

// FloatAttr returns a float attribute.
func FloatAttr(f float32) *AttrValue { return &AttrValue{Kind: AttrFloat, F: f} }

// BoolAttr returns a bool attribute.
func BoolAttr(b bool) *AttrValue { return &AttrValue{Kind: AttrBool, B: b} }

// TypeAttr returns a type attribute.
func TypeAttr(t DataType) *AttrValue { return &AttrValue{Kind: AttrType, Type: t} }

// IntsAttr returns an int list attribute.
func IntsAttr(ints ...int64) *AttrValue {
	return &AttrValue{Kind: AttrList, List: &ListValue{I: ints}}
}

// TensorAttr returns a tensor attribute.
func TensorAttr(t *TensorProto) *AttrValue { return &AttrValue{Kind: AttrTensor, Tensor: t} }
