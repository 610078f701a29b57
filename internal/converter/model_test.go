package converter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/backend/cpu"
	"github.com/xmartlabs/Bender-sub000/internal/layers"
	"github.com/xmartlabs/Bender-sub000/internal/params"
	"github.com/xmartlabs/Bender-sub000/internal/tensorflow"
)

// variableDense is input(1x1x2) -> MatMul(w) -> BiasAdd(b) with variable weights.
func variableDense() *builder {
	b := &builder{}
	b.input("input", 1, 1, 2)
	b.node("w", tensorflow.OpVariableV2).Attr["shape"] = &tensorflow.AttrValue{
		Kind: tensorflow.AttrShape, Shape: &tensorflow.TensorShape{Dims: []int64{2, 1}},
	}
	b.node("w/read", tensorflow.OpIdentity, "w")
	b.node("matmul", tensorflow.OpMatMul, "input", "w/read")
	b.node("b", tensorflow.OpVariableV2).Attr["shape"] = &tensorflow.AttrValue{
		Kind: tensorflow.AttrShape, Shape: &tensorflow.TensorShape{Dims: []int64{1}},
	}
	b.node("logits", tensorflow.OpBiasAdd, "matmul", "b")
	return b
}

func TestLoadAndChangeCheckpoint(t *testing.T) {
	loader := params.NewMemory()
	loader.Set("a/", "logits", params.Weights, []float32{1, 1})
	loader.Set("a/", "logits", params.Bias, []float32{0})
	loader.Set("b/", "logits", params.Weights, []float32{2, -1})
	loader.Set("b/", "logits", params.Bias, []float32{1})

	data := must.M1(tensorflow.Encode(&variableDense().def, tensorflow.Binary))
	model, err := LoadFromBytes(data, tensorflow.Binary, cpu.New(), loader, Options{Checkpoint: "a/"})
	require.NoError(t, err)
	assert.True(t, model.Report().Clean())
	assert.Equal(t, backend.Size{Width: 1, Height: 1, Channels: 2}, model.InputSize())

	got := must.M1(model.Infer([]float32{3, 4}))
	assert.InDelta(t, 7, got[0], 0.01)
	output := model.Output()

	require.NoError(t, model.Change("b/"))
	got = must.M1(model.Infer([]float32{3, 4}))
	assert.InDelta(t, 3, got[0], 0.01)
	assert.Same(t, output, model.Output())
}

func TestLoadFileFormats(t *testing.T) {
	var b builder
	b.input("input", 1, 2, 1)
	b.node("relu", tensorflow.OpRelu, "input")
	b.node("output", tensorflow.OpIdentity, "relu")

	dir := t.TempDir()
	for _, name := range []string{"model.pb", "model.pbtxt"} {
		path := filepath.Join(dir, name)
		data := must.M1(tensorflow.Encode(&b.def, tensorflow.FormatOf(path)))
		require.NoError(t, os.WriteFile(path, data, 0o600))

		model, err := Load(path, cpu.New(), nil)
		require.NoError(t, err, name)
		assert.Equal(t, []string{"input", "relu", "output"}, ids(model.Result().Layers), name)
		got := must.M1(model.Infer([]float32{-1, 2}))
		assert.Equal(t, []float32{0, 2}, got, name)
	}
}

func TestLoadWithoutInputSize(t *testing.T) {
	var b builder
	b.node("input", tensorflow.OpPlaceholder)
	b.node("relu", tensorflow.OpRelu, "input")
	data := must.M1(tensorflow.Encode(&b.def, tensorflow.Text))

	_, err := LoadFromBytes(data, tensorflow.Text, cpu.New(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input size unknown")

	model, err := LoadFromBytes(data, tensorflow.Text, cpu.New(), nil,
		Options{InputSize: backend.Size{Width: 1, Height: 1, Channels: 1}})
	require.NoError(t, err)
	assert.Equal(t, backend.Size{Width: 1, Height: 1, Channels: 1}, model.OutputSize())
}

func TestLoadDoesNotRerootSeveredLayers(t *testing.T) {
	var b builder
	b.input("input", 1, 1, 2)
	b.node("erf", "Erf", "input")
	b.node("tanh", tensorflow.OpTanh, "erf")

	_, err := LoadGraphDef(&b.def, cpu.New(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no graph output survived")
	assert.Contains(t, err.Error(), "tanh (Tanh)")
}

func TestLoadKeepsSurvivingBranch(t *testing.T) {
	var b builder
	b.input("input", 1, 1, 2)
	b.node("relu", tensorflow.OpRelu, "input")
	b.node("output", tensorflow.OpIdentity, "relu")
	b.node("erf", "Erf", "input")
	b.node("tanh", tensorflow.OpTanh, "erf")

	model, err := LoadGraphDef(&b.def, cpu.New(), nil)
	require.NoError(t, err)
	assert.False(t, model.Report().Clean())
	assert.Equal(t, []Edge{{"erf", "tanh"}}, model.Report().Severed)
	for _, l := range model.Layers() {
		assert.NotEqual(t, "tanh", l.ID())
	}
	assert.Equal(t, []float32{0, 2}, must.M1(model.Infer([]float32{-1, 2})))
}

func TestLoadFailsOnPartiallySeveredLayer(t *testing.T) {
	// add keeps relu but loses erf: it must not run with one input.
	_, err := LoadGraphDef(&unsupportedGraph().def, cpu.New(), nil)
	require.Error(t, err)
	var shape *layers.ShapeError
	assert.ErrorAs(t, err, &shape)
}

func TestTransposedVariableWeightsSurviveChange(t *testing.T) {
	b := &builder{}
	b.input("input", 1, 1, 2)
	b.node("w", tensorflow.OpVariableV2).Attr["shape"] = &tensorflow.AttrValue{
		Kind: tensorflow.AttrShape, Shape: &tensorflow.TensorShape{Dims: []int64{2, 2}},
	}
	b.node("w/read", tensorflow.OpIdentity, "w")
	b.node("matmul", tensorflow.OpMatMul, "input", "w/read").Attr["transpose_b"] = tensorflow.BoolAttr(true)
	b.node("b", tensorflow.OpVariableV2).Attr["shape"] = &tensorflow.AttrValue{
		Kind: tensorflow.AttrShape, Shape: &tensorflow.TensorShape{Dims: []int64{2}},
	}
	b.node("logits", tensorflow.OpBiasAdd, "matmul", "b")

	// transpose_b weights are stored [out][in].
	loader := params.NewMemory()
	loader.Set("a/", "logits", params.Weights, []float32{1, 2, 3, 4})
	loader.Set("a/", "logits", params.Bias, []float32{0, 0})
	loader.Set("b/", "logits", params.Weights, []float32{0, 1, 1, 0})
	loader.Set("b/", "logits", params.Bias, []float32{0, 0})

	model, err := LoadGraphDef(&b.def, cpu.New(), loader, Options{Checkpoint: "a/"})
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 11}, must.M1(model.Infer([]float32{1, 2})))

	require.NoError(t, model.Change("b/"))
	assert.Equal(t, []float32{2, 1}, must.M1(model.Infer([]float32{1, 2})))

	require.NoError(t, model.Change("a/"))
	assert.Equal(t, []float32{5, 11}, must.M1(model.Infer([]float32{1, 2})))
}
