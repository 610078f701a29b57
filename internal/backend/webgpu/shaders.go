package webgpu

import (
	"strings"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// WGSL compute shaders, one per kernel.
//
// Bindings: 0 is the Params uniform, 1 the output, then the input images, then the weight
// buffers in the order the kernel documents them. Every invocation handles one element of
// the output unless threadCount says otherwise.

// workgroupSize is the number of threads per workgroup.
const workgroupSize = 256

const commonWGSL = `
struct Params {
    in_w: u32, in_h: u32, in_c: u32, out_w: u32,
    out_h: u32, out_c: u32, kernel_w: u32, kernel_h: u32,
    stride_x: u32, stride_y: u32, pad_left: i32, pad_top: i32,
    activation: u32, offset_x: u32, offset_y: u32, offset_c: u32,
    epsilon: f32, count: u32, pad0: u32, pad1: u32,
}
@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

fn activate(v: f32) -> f32 {
    switch params.activation {
        case 1u: { return max(v, 0.0); }
        case 2u: { return clamp(v, 0.0, 6.0); }
        case 3u: { return tanh(v); }
        case 4u: { return 1.0 / (1.0 + exp(-v)); }
        default: { return v; }
    }
}

fn out_channel(idx: u32) -> u32 { return idx % params.out_c; }
fn out_x(idx: u32) -> u32 { return (idx / params.out_c) % params.out_w; }
fn out_y(idx: u32) -> u32 { return idx / (params.out_c * params.out_w); }
`

const oneInputWGSL = `
@group(0) @binding(2) var<storage, read> in0: array<f32>;
`

const copyShader = commonWGSL + oneInputWGSL + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let idx = gid.x;
    if (idx >= params.count) { return; }
    let c = idx % params.in_c;
    let x = (idx / params.in_c) % params.in_w;
    let y = idx / (params.in_c * params.in_w);
    let dst = ((y + params.offset_y) * params.out_w + x + params.offset_x) * params.out_c + c + params.offset_c;
    result[dst] = in0[idx];
}
`

// convolutionShader: weights OHWI, bias[out].
const convolutionShader = commonWGSL + oneInputWGSL + `
@group(0) @binding(3) var<storage, read> weights: array<f32>;
@group(0) @binding(4) var<storage, read> bias: array<f32>;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let idx = gid.x;
    if (idx >= params.count) { return; }
    let o = out_channel(idx);
    let x = out_x(idx);
    let y = out_y(idx);
    var sum = bias[o];
    for (var kh = 0u; kh < params.kernel_h; kh++) {
        let iy = i32(y * params.stride_y + kh) - params.pad_top;
        if (iy < 0 || iy >= i32(params.in_h)) { continue; }
        for (var kw = 0u; kw < params.kernel_w; kw++) {
            let ix = i32(x * params.stride_x + kw) - params.pad_left;
            if (ix < 0 || ix >= i32(params.in_w)) { continue; }
            let src = (u32(iy) * params.in_w + u32(ix)) * params.in_c;
            let w = ((o * params.kernel_h + kh) * params.kernel_w + kw) * params.in_c;
            for (var i = 0u; i < params.in_c; i++) {
                sum += in0[src + i] * weights[w + i];
            }
        }
    }
    result[idx] = activate(sum);
}
`

// depthwiseShader: weights IOWH, bias[in*multiplier]. Output channel o reads input channel
// o / multiplier, and its filter starts at o*kernel_w*kernel_h.
const depthwiseShader = commonWGSL + oneInputWGSL + `
@group(0) @binding(3) var<storage, read> weights: array<f32>;
@group(0) @binding(4) var<storage, read> bias: array<f32>;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let idx = gid.x;
    if (idx >= params.count) { return; }
    let o = out_channel(idx);
    let x = out_x(idx);
    let y = out_y(idx);
    let i = o / (params.out_c / params.in_c);
    var sum = bias[o];
    for (var kh = 0u; kh < params.kernel_h; kh++) {
        let iy = i32(y * params.stride_y + kh) - params.pad_top;
        if (iy < 0 || iy >= i32(params.in_h)) { continue; }
        for (var kw = 0u; kw < params.kernel_w; kw++) {
            let ix = i32(x * params.stride_x + kw) - params.pad_left;
            if (ix < 0 || ix >= i32(params.in_w)) { continue; }
            let v = in0[(u32(iy) * params.in_w + u32(ix)) * params.in_c + i];
            sum += v * weights[kh + params.kernel_h * (kw + params.kernel_w * o)];
        }
    }
    result[idx] = activate(sum);
}
`

// fullyConnectedShader: weights (out, in), bias[out].
const fullyConnectedShader = commonWGSL + oneInputWGSL + `
@group(0) @binding(3) var<storage, read> weights: array<f32>;
@group(0) @binding(4) var<storage, read> bias: array<f32>;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let o = gid.x;
    if (o >= params.count) { return; }
    let n = params.in_w * params.in_h * params.in_c;
    var sum = bias[o];
    for (var k = 0u; k < n; k++) {
        sum += in0[k] * weights[o * n + k];
    }
    result[o] = activate(sum);
}
`

const addShader = commonWGSL + oneInputWGSL + `
@group(0) @binding(3) var<storage, read> in1: array<f32>;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let idx = gid.x;
    if (idx >= params.count) { return; }
    result[idx] = activate(in0[idx] + in1[idx]);
}
`

const batchNormShader = commonWGSL + oneInputWGSL + `
@group(0) @binding(3) var<storage, read> mean: array<f32>;
@group(0) @binding(4) var<storage, read> variance: array<f32>;
@group(0) @binding(5) var<storage, read> scale: array<f32>;
@group(0) @binding(6) var<storage, read> bn_offset: array<f32>;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let idx = gid.x;
    if (idx >= params.count) { return; }
    let c = out_channel(idx);
    let v = (in0[idx] - mean[c]) * scale[c] / sqrt(variance[c] + params.epsilon) + bn_offset[c];
    result[idx] = activate(v);
}
`

// instanceNormShader runs one invocation per channel.
const instanceNormShader = commonWGSL + oneInputWGSL + `
@group(0) @binding(3) var<storage, read> scale: array<f32>;
@group(0) @binding(4) var<storage, read> shift: array<f32>;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let c = gid.x;
    if (c >= params.count) { return; }
    let pixels = params.in_w * params.in_h;
    var mean = 0.0;
    for (var p = 0u; p < pixels; p++) {
        mean += in0[p * params.in_c + c];
    }
    mean /= f32(pixels);
    var variance = 0.0;
    for (var p = 0u; p < pixels; p++) {
        let d = in0[p * params.in_c + c] - mean;
        variance += d * d;
    }
    let std = sqrt(variance / f32(pixels) + params.epsilon);
    for (var p = 0u; p < pixels; p++) {
        let idx = p * params.in_c + c;
        result[idx] = activate((in0[idx] - mean) / std * scale[c] + shift[c]);
    }
}
`

const poolWGSL = commonWGSL + oneInputWGSL + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let idx = gid.x;
    if (idx >= params.count) { return; }
    let c = out_channel(idx);
    let x = out_x(idx);
    let y = out_y(idx);
    var acc = INIT;
    var taps = 0u;
    for (var kh = 0u; kh < params.kernel_h; kh++) {
        let iy = i32(y * params.stride_y + kh) - params.pad_top;
        if (iy < 0 || iy >= i32(params.in_h)) { continue; }
        for (var kw = 0u; kw < params.kernel_w; kw++) {
            let ix = i32(x * params.stride_x + kw) - params.pad_left;
            if (ix < 0 || ix >= i32(params.in_w)) { continue; }
            let v = in0[(u32(iy) * params.in_w + u32(ix)) * params.in_c + c];
            acc = REDUCE;
            taps++;
        }
    }
    if (taps == 0u) { result[idx] = 0.0; return; }
    result[idx] = FINISH;
}
`

const neuronShader = commonWGSL + oneInputWGSL + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let idx = gid.x;
    if (idx >= params.count) { return; }
    result[idx] = activate(in0[idx]);
}
`

// softmaxShader runs one invocation per pixel.
const softmaxShader = commonWGSL + oneInputWGSL + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let p = gid.x;
    if (p >= params.count) { return; }
    let base = p * params.out_c;
    var m = in0[base];
    for (var c = 1u; c < params.out_c; c++) {
        m = max(m, in0[base + c]);
    }
    var sum = 0.0;
    for (var c = 0u; c < params.out_c; c++) {
        let e = exp(in0[base + c] - m);
        result[base + c] = e;
        sum += e;
    }
    for (var c = 0u; c < params.out_c; c++) {
        result[base + c] /= sum;
    }
}
`

// globalAverageShader runs one invocation per channel.
const globalAverageShader = commonWGSL + oneInputWGSL + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let c = gid.x;
    if (c >= params.count) { return; }
    let pixels = params.in_w * params.in_h;
    var sum = 0.0;
    for (var p = 0u; p < pixels; p++) {
        sum += in0[p * params.in_c + c];
    }
    result[c] = sum / f32(pixels);
}
`

var shaderSources = map[backend.Kernel]string{
	backend.KernelCopy:           copyShader,
	backend.KernelConvolution:    convolutionShader,
	backend.KernelDepthwise:      depthwiseShader,
	backend.KernelFullyConnected: fullyConnectedShader,
	backend.KernelAdd:            addShader,
	backend.KernelBatchNorm:      batchNormShader,
	backend.KernelInstanceNorm:   instanceNormShader,
	backend.KernelMaxPool:        poolShader("-3.402823e+38", "max(acc, v)", "acc"),
	backend.KernelAvgPool:        poolShader("0.0", "acc + v", "acc / f32(taps)"),
	backend.KernelNeuron:         neuronShader,
	backend.KernelSoftmax:        softmaxShader,
	backend.KernelGlobalAverage:  globalAverageShader,
}

func poolShader(init, reduce, finish string) string {
	return strings.NewReplacer("INIT", init, "REDUCE", reduce, "FINISH", finish).Replace(poolWGSL)
}
