// Package main provides the Bender CLI.
//
// Usage:
//
//	bender [flags] inspect <model.pb|model.pbtxt>
//	bender [flags] run <model.pb|model.pbtxt>
//	bender [flags] pack <weights dir> <out.bender>
//	bender ops
//	bender version
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/xmartlabs/Bender-sub000/backend/cpu"
	"github.com/xmartlabs/Bender-sub000/backend/webgpu"
	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/converter"
	"github.com/xmartlabs/Bender-sub000/internal/layers"
	"github.com/xmartlabs/Bender-sub000/internal/params"
)

const version = "v0.1.0-dev"

var (
	flagWeights = flag.String("weights", "", "Weights for variables of the graph: a directory with one "+
		"<checkpoint><layer>_<modifier>.data file per weight, or a .bender file.")
	flagCheckpoint = flag.String("checkpoint", "", "Checkpoint prefix to load weights from.")
	flagStrict     = flag.Bool("strict", false, "Fail on unsupported operators instead of dropping them.")
	flagCPU        = flag.Bool("cpu", false, "Use the CPU device even if WebGPU is available.")
	flagInput      = flag.String("input", "", "Input size as HxWxC, for graphs whose placeholder has no full shape.")
	flagRuns       = flag.Int("n", 10, "Number of inferences for the run command.")
)

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "version":
		fmt.Printf("Bender %s\n", version)
	case "ops":
		for _, op := range converter.NewRegistry().SupportedOps() {
			fmt.Println(op)
		}
	case "inspect":
		inspect(modelPath(rest))
	case "run":
		run(modelPath(rest))
	case "pack":
		if len(rest) != 2 {
			klog.Errorf("pack takes a weights directory and an output file. See 'bender -help'.")
			os.Exit(1)
		}
		pack(rest[0], rest[1])
	default:
		klog.Errorf("Unknown command %q. See 'bender -help'.", cmd)
		os.Exit(1)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "Bender %s: run TensorFlow graphs on WebGPU.\n\n", version)
	_, _ = fmt.Fprintln(out, "Commands:")
	_, _ = fmt.Fprintln(out, "  inspect <model>         Convert a GraphDef and list its layers")
	_, _ = fmt.Fprintln(out, "  run <model>             Time inference on a constant input")
	_, _ = fmt.Fprintln(out, "  pack <dir> <out>        Pack per-layer weight files into a .bender file")
	_, _ = fmt.Fprintln(out, "  ops                     List supported TensorFlow operators")
	_, _ = fmt.Fprintln(out, "  version                 Show version")
	_, _ = fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

func modelPath(args []string) string {
	if len(args) != 1 {
		klog.Errorf("Expected exactly one model file. See 'bender -help'.")
		os.Exit(1)
	}
	return args[0]
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == 1 {
				s = headerRowStyle
				return
			}
			switch {
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

// openDevice prefers WebGPU and falls back to the CPU device.
func openDevice() backend.Device {
	if !*flagCPU {
		d, err := webgpu.Open()
		if err == nil {
			return d
		}
		klog.V(1).Infof("WebGPU unavailable, using CPU: %v", err)
	}
	return cpu.New()
}

// openLoader returns the loader -weights points to, or nil.
func openLoader() params.Loader {
	if *flagWeights == "" {
		return nil
	}
	if strings.HasSuffix(*flagWeights, params.FileExtension) {
		return must.M1(params.OpenFile(*flagWeights))
	}
	return params.NewPerLayer(*flagWeights)
}

func loadOptions() converter.Options {
	opts := converter.DefaultOptions()
	opts.StrictMode = *flagStrict
	opts.Checkpoint = *flagCheckpoint
	if *flagInput != "" {
		var size backend.Size
		if _, err := fmt.Sscanf(*flagInput, "%dx%dx%d", &size.Height, &size.Width, &size.Channels); err != nil {
			klog.Errorf("Invalid -input %q, want HxWxC: %v", *flagInput, err)
			os.Exit(1)
		}
		opts.InputSize = size
	}
	return opts
}

func loadModel(path string) *converter.Model {
	model, err := converter.Load(path, openDevice(), openLoader(), loadOptions())
	if err != nil {
		klog.Errorf("Failed to load %s: %+v", path, err)
		os.Exit(1)
	}
	return model
}

func inspect(path string) {
	model := loadModel(path)
	res := model.Result()

	fmt.Println(titleStyle.Render("Summary"))
	table := newPlainTable(false)
	table.Row("model", path)
	table.Row("device", fmt.Sprintf("%T", model.Device()))
	table.Row("graph nodes", humanize.Comma(int64(res.Graph.Len())))
	table.Row("layers", humanize.Comma(int64(len(res.Layers))))
	table.Row("input", model.InputSize().String())
	table.Row("output", model.OutputSize().String())
	if cp := model.Checkpoint(); cp != "" {
		table.Row("checkpoint", cp)
	}
	fmt.Println(table.Render())

	fmt.Println(titleStyle.Render("Layers"))
	table = newPlainTable(true)
	table.Row("#", "Layer", "Kind", "Inputs", "Output", "Parameters", "Bytes")
	var totalParams, totalBytes int
	for i, l := range model.Layers() {
		var inputs []string
		for _, in := range l.Links().Incoming() {
			inputs = append(inputs, in.ID())
		}
		count := 0
		if r, ok := l.(layers.Reloader); ok {
			for _, p := range r.Parameters() {
				count += p.Count()
			}
		}
		// Images are half floats, parameters float32.
		bytes := 2*l.OutputSize().Count() + 4*count
		totalParams += count
		totalBytes += bytes
		table.Row(fmt.Sprint(i), l.ID(), kind(l), strings.Join(inputs, ", "), l.OutputSize().String(),
			humanize.Comma(int64(count)), humanize.IBytes(uint64(bytes)))
	}
	table.Row("", "total", "", "", "", humanize.Comma(int64(totalParams)), humanize.IBytes(uint64(totalBytes)))
	fmt.Println(table.Render())

	report := model.Report()
	if report.Clean() {
		return
	}
	fmt.Println(titleStyle.Render("Dropped"))
	table = newPlainTable(true)
	table.Row("Node", "Op", "Reason")
	for _, d := range report.Dropped {
		table.Row(d.Name, d.Op, d.Reason)
	}
	fmt.Println(table.Render())
	for _, e := range report.Severed {
		fmt.Printf("severed edge %s\n", e)
	}
}

// kind is the layer type name without its package.
func kind(l layers.Layer) string {
	name := fmt.Sprintf("%T", l)
	return name[strings.LastIndexByte(name, '.')+1:]
}

func run(path string) {
	model := loadModel(path)
	input := make([]float32, model.InputSize().Count())
	for i := range input {
		input[i] = 0.5
	}

	// First run compiles pipelines and is not timed.
	_ = must.M1(model.Infer(input))

	bar := progressbar.NewOptions(*flagRuns,
		progressbar.OptionSetDescription("inference"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("runs"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII))
	start := time.Now()
	var output []float32
	for range *flagRuns {
		output = must.M1(model.Infer(input))
		_ = bar.Add(1)
	}
	elapsed := time.Since(start)
	_ = bar.Finish()
	fmt.Println()

	table := newPlainTable(false)
	table.Row("runs", humanize.Comma(int64(*flagRuns)))
	table.Row("total", elapsed.String())
	if *flagRuns > 0 {
		table.Row("per run", (elapsed / time.Duration(*flagRuns)).String())
	}
	table.Row("output", model.OutputSize().String())
	fmt.Println(table.Render())
	if len(output) > 8 {
		output = output[:8]
	}
	fmt.Printf("first outputs: %v\n", output)
}

// pack reads every <key>.data file under dir into a .bender file. Keys keep their checkpoint
// prefix, so subdirectories become checkpoints: dir/night/conv1_weights.data is loaded with
// checkpoint "night/".
func pack(dir, out string) {
	var files []string
	must.M(filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".data") {
			files = append(files, path)
		}
		return nil
	}))
	if len(files) == 0 {
		klog.Errorf("No .data files found under %s", dir)
		os.Exit(1)
	}

	w := params.NewWriter()
	perLayer := params.NewPerLayer(dir)
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("packing"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII))
	var total int64
	for _, path := range files {
		key := filepath.ToSlash(strings.TrimSuffix(must.M1(filepath.Rel(dir, path)), ".data"))
		cut := strings.LastIndexByte(key, '_')
		if cut < 0 {
			klog.Errorf("%s: file name must be <layer>_<modifier>.data", path)
			os.Exit(1)
		}
		info := must.M1(os.Stat(path))
		values := must.M1(perLayer.LoadWeights(key[:cut], key[cut+1:], int(info.Size()/4)))
		w.Add("", key[:cut], key[cut+1:], values)
		total += info.Size()
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Println()

	must.M(w.WriteFile(out))
	fmt.Printf("wrote %s: %s weights, %s\n", out, humanize.Comma(int64(len(files))), humanize.IBytes(uint64(total)))
}
