package tensorflow

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// schema holds the message descriptors of the GraphDef subset the importer understands.
// Anything else in a model file is skipped by both decoders.
type schema struct {
	graphDef    protoreflect.MessageDescriptor
	versionDef  protoreflect.MessageDescriptor
	nodeDef     protoreflect.MessageDescriptor
	attrValue   protoreflect.MessageDescriptor
	listValue   protoreflect.MessageDescriptor
	tensor      protoreflect.MessageDescriptor
	tensorShape protoreflect.MessageDescriptor
	dim         protoreflect.MessageDescriptor
}

var (
	schemaOnce sync.Once
	schemaDesc *schema
	schemaErr  error
)

// loadSchema builds the descriptors once per process.
func loadSchema() (*schema, error) {
	schemaOnce.Do(func() {
		fd, err := protodesc.NewFile(graphFileDescriptor(), new(protoregistry.Files))
		if err != nil {
			schemaErr = errors.Wrap(err, "tensorflow: building GraphDef schema")
			return
		}
		msgs := fd.Messages()
		attr := msgs.ByName("AttrValue")
		shape := msgs.ByName("TensorShapeProto")
		schemaDesc = &schema{
			graphDef:    msgs.ByName("GraphDef"),
			versionDef:  msgs.ByName("VersionDef"),
			nodeDef:     msgs.ByName("NodeDef"),
			attrValue:   attr,
			listValue:   attr.Messages().ByName("ListValue"),
			tensor:      msgs.ByName("TensorProto"),
			tensorShape: shape,
			dim:         shape.Messages().ByName("Dim"),
		}
	})
	return schemaDesc, schemaErr
}

type (
	fieldType  = descriptorpb.FieldDescriptorProto_Type
	fieldLabel = descriptorpb.FieldDescriptorProto_Label
)

const (
	optional = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	repeated = descriptorpb.FieldDescriptorProto_LABEL_REPEATED

	typeString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	typeBytes   = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	typeInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
	typeInt64   = descriptorpb.FieldDescriptorProto_TYPE_INT64
	typeFloat   = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
	typeDouble  = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	typeBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	typeEnum    = descriptorpb.FieldDescriptorProto_TYPE_ENUM
	typeMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
)

func field(name string, number int32, label fieldLabel, typ fieldType, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  label.Enum(),
		Type:   typ.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

// oneofField declares a member of AttrValue's "value" oneof.
func oneofField(name string, number int32, typ fieldType, typeName string) *descriptorpb.FieldDescriptorProto {
	f := field(name, number, optional, typ, typeName)
	f.OneofIndex = proto.Int32(0)
	return f
}

// graphFileDescriptor mirrors graph.proto, node_def.proto, attr_value.proto, tensor.proto,
// tensor_shape.proto, types.proto and versions.proto, restricted to the fields the importer reads.
func graphFileDescriptor() *descriptorpb.FileDescriptorProto {
	const (
		dataType    = ".tensorflow.DataType"
		tensorShape = ".tensorflow.TensorShapeProto"
		tensor      = ".tensorflow.TensorProto"
		attrValue   = ".tensorflow.AttrValue"
		listValue   = ".tensorflow.AttrValue.ListValue"
	)

	names := make([]DataType, 0, len(dataTypeNames))
	for dt := range dataTypeNames {
		names = append(names, dt)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	enum := &descriptorpb.EnumDescriptorProto{Name: proto.String("DataType")}
	for _, dt := range names {
		enum.Value = append(enum.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(dt.String()),
			Number: proto.Int32(int32(dt)),
		})
	}

	shapeMsg := &descriptorpb.DescriptorProto{
		Name: proto.String("TensorShapeProto"),
		Field: []*descriptorpb.FieldDescriptorProto{
			field("dim", 2, repeated, typeMessage, ".tensorflow.TensorShapeProto.Dim"),
			field("unknown_rank", 3, optional, typeBool, ""),
		},
		NestedType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Dim"),
			Field: []*descriptorpb.FieldDescriptorProto{
				field("size", 1, optional, typeInt64, ""),
				field("name", 2, optional, typeString, ""),
			},
		}},
	}

	tensorMsg := &descriptorpb.DescriptorProto{
		Name: proto.String("TensorProto"),
		Field: []*descriptorpb.FieldDescriptorProto{
			field("dtype", 1, optional, typeEnum, dataType),
			field("tensor_shape", 2, optional, typeMessage, tensorShape),
			field("version_number", 3, optional, typeInt32, ""),
			field("tensor_content", 4, optional, typeBytes, ""),
			field("float_val", 5, repeated, typeFloat, ""),
			field("double_val", 6, repeated, typeDouble, ""),
			field("int_val", 7, repeated, typeInt32, ""),
			field("string_val", 8, repeated, typeBytes, ""),
			field("int64_val", 10, repeated, typeInt64, ""),
			field("bool_val", 11, repeated, typeBool, ""),
			field("half_val", 13, repeated, typeInt32, ""),
		},
	}

	attrMsg := &descriptorpb.DescriptorProto{
		Name: proto.String("AttrValue"),
		Field: []*descriptorpb.FieldDescriptorProto{
			oneofField("list", 1, typeMessage, listValue),
			oneofField("s", 2, typeBytes, ""),
			oneofField("i", 3, typeInt64, ""),
			oneofField("f", 4, typeFloat, ""),
			oneofField("b", 5, typeBool, ""),
			oneofField("type", 6, typeEnum, dataType),
			oneofField("shape", 7, typeMessage, tensorShape),
			oneofField("tensor", 8, typeMessage, tensor),
			oneofField("placeholder", 9, typeString, ""),
		},
		OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("value")}},
		NestedType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("ListValue"),
			Field: []*descriptorpb.FieldDescriptorProto{
				field("s", 2, repeated, typeBytes, ""),
				field("i", 3, repeated, typeInt64, ""),
				field("f", 4, repeated, typeFloat, ""),
				field("b", 5, repeated, typeBool, ""),
				field("type", 6, repeated, typeEnum, dataType),
				field("shape", 7, repeated, typeMessage, tensorShape),
				field("tensor", 8, repeated, typeMessage, tensor),
			},
		}},
	}

	nodeMsg := &descriptorpb.DescriptorProto{
		Name: proto.String("NodeDef"),
		Field: []*descriptorpb.FieldDescriptorProto{
			field("name", 1, optional, typeString, ""),
			field("op", 2, optional, typeString, ""),
			field("input", 3, repeated, typeString, ""),
			field("device", 4, optional, typeString, ""),
			field("attr", 5, repeated, typeMessage, ".tensorflow.NodeDef.AttrEntry"),
		},
		NestedType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("AttrEntry"),
			Field: []*descriptorpb.FieldDescriptorProto{
				field("key", 1, optional, typeString, ""),
				field("value", 2, optional, typeMessage, attrValue),
			},
			Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
		}},
	}

	versionMsg := &descriptorpb.DescriptorProto{
		Name: proto.String("VersionDef"),
		Field: []*descriptorpb.FieldDescriptorProto{
			field("producer", 1, optional, typeInt32, ""),
			field("min_consumer", 2, optional, typeInt32, ""),
			field("bad_consumers", 3, repeated, typeInt32, ""),
		},
	}

	graphMsg := &descriptorpb.DescriptorProto{
		Name: proto.String("GraphDef"),
		Field: []*descriptorpb.FieldDescriptorProto{
			field("node", 1, repeated, typeMessage, ".tensorflow.NodeDef"),
			field("version", 3, optional, typeInt32, ""),
			field("versions", 4, optional, typeMessage, ".tensorflow.VersionDef"),
		},
	}

	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String("bender/tensorflow/graph.proto"),
		Package:     proto.String("tensorflow"),
		Syntax:      proto.String("proto3"),
		EnumType:    []*descriptorpb.EnumDescriptorProto{enum},
		MessageType: []*descriptorpb.DescriptorProto{graphMsg, versionMsg, nodeMsg, attrMsg, tensorMsg, shapeMsg},
	}
}
