package tensorflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraphDef() *GraphDef {
	return &GraphDef{
		Producer: 27,
		Nodes: []*NodeDef{
			{
				Name: "input",
				Op:   OpPlaceholder,
				Attr: map[string]*AttrValue{
					"dtype": TypeAttr(DTFloat),
					"shape": {Kind: AttrShape, Shape: &TensorShape{Dims: []int64{1, 4, 4, 3}}},
				},
			},
			{
				Name: "conv/weights",
				Op:   OpConst,
				Attr: map[string]*AttrValue{
					"dtype": TypeAttr(DTFloat),
					"value": TensorAttr(FloatTensor([]int64{1, 1, 3, 2}, []float32{1, 2, 3, 4, 5, 6})),
				},
			},
			{
				Name:   "conv/Conv2D",
				Op:     OpConv2D,
				Inputs: []string{"input", "conv/weights:0"},
				Device: "/device:GPU:0",
				Attr: map[string]*AttrValue{
					"strides":          IntsAttr(1, 2, 2, 1),
					"padding":          StringAttr("SAME"),
					"use_cudnn_on_gpu": BoolAttr(true),
					"T":                TypeAttr(DTFloat),
				},
			},
			{
				Name:   "bn/epsilon",
				Op:     OpConst,
				Inputs: []string{"^conv/Conv2D"},
				Attr: map[string]*AttrValue{
					"value":  TensorAttr(&TensorProto{DType: DTFloat, Shape: &TensorShape{}, FloatVal: []float32{0.001}}),
					"scalar": FloatAttr(0.25),
					"count":  IntAttr(-3),
				},
			},
			{
				Name:   "relu",
				Op:     OpRelu,
				Inputs: []string{"conv/Conv2D"},
			},
		},
	}
}

func TestBinaryAndTextEncodingsAgree(t *testing.T) {
	def := sampleGraphDef()
	bin := must.M1(Encode(def, Binary))
	txt := must.M1(Encode(def, Text))

	fromBinary, err := Parse(bin, Binary)
	require.NoError(t, err)
	fromText, err := Parse(txt, Text)
	require.NoError(t, err)

	require.Equal(t, fromBinary, fromText)
	require.Len(t, fromBinary.Nodes, 5)
	assert.Equal(t, int32(27), fromBinary.Producer)

	conv := fromBinary.Nodes[2]
	assert.Equal(t, "conv/Conv2D", conv.Name)
	assert.Equal(t, []string{"input", "conv/weights:0"}, conv.Inputs)
	assert.Equal(t, "/device:GPU:0", conv.Device)
	assert.Equal(t, []int64{1, 2, 2, 1}, conv.Attr["strides"].List.I)
	assert.Equal(t, "SAME", string(conv.Attr["padding"].S))
	assert.True(t, conv.Attr["use_cudnn_on_gpu"].B)
	assert.Equal(t, DTFloat, conv.Attr["T"].Type)

	eps := fromBinary.Nodes[3]
	assert.Equal(t, float32(0.25), eps.Attr["scalar"].F)
	assert.Equal(t, int64(-3), eps.Attr["count"].I)
	assert.Equal(t, []float32{0.001}, eps.Attr["value"].Tensor.FloatVal)

	weights := must.M1(fromText.Nodes[1].Attr["value"].Tensor.Floats())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, weights)
	assert.Equal(t, []int64{1, 4, 4, 3}, fromText.Nodes[0].Attr["shape"].Shape.Dims)

	// Both encodings build the same graph.
	gb := must.M1(BuildGraph(fromBinary))
	gt := must.M1(BuildGraph(fromText))
	require.Equal(t, gb.Len(), gt.Len())
	for i := range gb.Nodes {
		assert.True(t, gb.Nodes[i].Same(gt.Nodes[i]))
		assert.Equal(t, nodeNames(gb.Nodes[i].Incoming()), nodeNames(gt.Nodes[i].Incoming()))
		assert.Equal(t, nodeNames(gb.Nodes[i].Outgoing()), nodeNames(gt.Nodes[i].Outgoing()))
	}
}

const textModel = `
node {
  name: "input"
  op: "Placeholder"
  attr {
    key: "dtype"
    value { type: DT_FLOAT }
  }
  experimental_debug_info { original_node_names: "x" }
}
node {
  name: "relu"
  op: "Relu"
  input: "input:0"
  input: "^init"
}
node {
  name: "init"
  op: "NoOp"
}
library {
  function { }
}
versions { producer: 38 min_consumer: 12 }
`

func TestParseTextIgnoresUnknownFields(t *testing.T) {
	def, err := Parse([]byte(textModel), Text)
	require.NoError(t, err)
	assert.Equal(t, int32(38), def.Producer)
	assert.Equal(t, int32(12), def.MinConsumer)

	g, err := BuildGraph(def)
	require.NoError(t, err)
	relu, ok := g.Find("relu")
	require.True(t, ok)
	assert.Equal(t, []string{"input"}, nodeNames(relu.Incoming()))
	initNode, _ := g.Find("init")
	assert.Empty(t, initNode.Outgoing(), "control inputs are not data edges")
}

func TestParseFileChoosesEncoding(t *testing.T) {
	dir := t.TempDir()
	def := sampleGraphDef()
	binPath := filepath.Join(dir, "model.pb")
	txtPath := filepath.Join(dir, "model.pbtxt")
	require.NoError(t, os.WriteFile(binPath, must.M1(Encode(def, Binary)), 0o600))
	require.NoError(t, os.WriteFile(txtPath, must.M1(Encode(def, Text)), 0o600))

	assert.Equal(t, Binary, FormatOf(binPath))
	assert.Equal(t, Text, FormatOf(txtPath))

	a, err := LoadFile(binPath)
	require.NoError(t, err)
	b, err := LoadFile(txtPath)
	require.NoError(t, err)
	assert.Equal(t, nodeNames(a.Nodes), nodeNames(b.Nodes))

	_, err = ParseFile(filepath.Join(dir, "missing.pb"))
	assert.Error(t, err)
	_, err = Parse([]byte("node { name: "), Text)
	assert.Error(t, err)
}

func TestBuildGraphStructuralErrors(t *testing.T) {
	cases := map[string][]*NodeDef{
		"unknown input": {
			{Name: "relu", Op: OpRelu, Inputs: []string{"missing"}},
		},
		"self reference": {
			{Name: "loop", Op: OpAdd, Inputs: []string{"loop:0"}},
		},
		"duplicate name": {
			{Name: "a", Op: OpConst},
			{Name: "a", Op: OpConst},
		},
	}
	for name, nodes := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildGraph(&GraphDef{Nodes: nodes})
			require.Error(t, err)
			var importErr *ImportError
			assert.True(t, errors.As(err, &importErr), "got %v", err)
		})
	}
}

func TestTensorDecoding(t *testing.T) {
	t.Run("content", func(t *testing.T) {
		values := must.M1(FloatTensor([]int64{2, 2}, []float32{1, -2, 3.5, 0}).Floats())
		assert.Equal(t, []float32{1, -2, 3.5, 0}, values)
	})
	t.Run("half", func(t *testing.T) {
		values := must.M1(HalfTensor([]int64{3}, []float32{0.5, 1.5, -2}).Floats())
		assert.Equal(t, []float32{0.5, 1.5, -2}, values)
	})
	t.Run("splat", func(t *testing.T) {
		tensor := &TensorProto{DType: DTFloat, Shape: &TensorShape{Dims: []int64{2, 2}}, FloatVal: []float32{1, 2}}
		assert.Equal(t, []float32{1, 2, 2, 2}, must.M1(tensor.Floats()))
	})
	t.Run("empty is zeros", func(t *testing.T) {
		tensor := &TensorProto{DType: DTFloat, Shape: &TensorShape{Dims: []int64{3}}}
		assert.Equal(t, []float32{0, 0, 0}, must.M1(tensor.Floats()))
	})
	t.Run("ints", func(t *testing.T) {
		assert.Equal(t, []int64{-1, 64}, must.M1(IntTensor([]int64{2}, -1, 64).Ints()))
	})
	t.Run("bad content size", func(t *testing.T) {
		tensor := FloatTensor([]int64{3}, []float32{1, 2})
		_, err := tensor.Floats()
		assert.Error(t, err)
	})
	t.Run("strings", func(t *testing.T) {
		tensor := &TensorProto{DType: DTString, StringVal: [][]byte{[]byte("x")}}
		_, err := tensor.Floats()
		assert.Error(t, err)
	})
}

func TestInputName(t *testing.T) {
	name, control := InputName("^save/restore_all")
	assert.Equal(t, "save/restore_all", name)
	assert.True(t, control)

	name, control = InputName("split:1")
	assert.Equal(t, "split", name)
	assert.False(t, control)
}

func nodeNames(list []*Node) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.Name()
	}
	return out
}
