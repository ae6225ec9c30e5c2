package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"render-engine/internal/cache"
	"render-engine/internal/filtergraph"
	"render-engine/internal/logging"
	"render-engine/internal/memory"
	"render-engine/internal/pipeline"
	"render-engine/internal/preview"
	"render-engine/internal/project"
	"render-engine/internal/renderr"
	"render-engine/internal/startup"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	if command == "version" {
		info := startup.GetBuildInfo()
		fmt.Printf("render-engine %s (%s, built %s, %s %s/%s)\n",
			info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		startup.LogShutdownInitiated(sig.String())
		cancel()
	}()

	var err error
	switch command {
	case "render":
		err = runRender(ctx, args)
	case "preview":
		err = runPreview(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "gpu":
		err = runGPU(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps engine error kinds onto process exit codes.
func exitCode(err error) int {
	switch renderr.KindOf(err) {
	case renderr.KindValidation, renderr.KindTemplateNotFound:
		return 2
	case renderr.KindCancelled:
		return 130
	case renderr.KindDependencyMissing:
		return 127
	default:
		return 1
	}
}

// sanitizeCommand returns a safe representation of a command string for display.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Render Engine")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage: render-engine <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  render   - Render a project document to a file")
	fmt.Fprintln(os.Stderr, "  preview  - Produce a frame, storyboard, waveform or segment preview")
	fmt.Fprintln(os.Stderr, "  serve    - Run the ops listener and accept jobs over HTTP")
	fmt.Fprintln(os.Stderr, "  gpu      - Show hardware encoders and optionally benchmark them")
	fmt.Fprintln(os.Stderr, "  version  - Print build information")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Run 'render-engine <command> -h' for command flags.")
	fmt.Fprintln(os.Stderr, "Configuration is read from RENDER_CONFIG and environment variables.")
}

// boot loads configuration and wires the engine.
func boot(ctx context.Context, listen string, onEvent pipeline.EventFunc) (*engine, error) {
	mc := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		return nil, err
	}
	startup.LogMemoryConfig(mc)
	if listen != "" {
		config.ListenAddr = listen
	}

	e, err := newEngine(ctx, config, onEvent)
	if err != nil {
		return nil, err
	}
	e.detectGPU(ctx)
	return e, nil
}

func runRender(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	projectPath := fs.String("project", "", "project document (YAML or JSON)")
	output := fs.String("output", "", "output file")
	skip := fs.String("skip", "", "comma-separated stages to skip")
	listen := fs.String("listen", "", "serve the ops API while rendering (overrides LISTEN_ADDR)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *projectPath == "" || *output == "" {
		fs.Usage()
		return renderr.Validation("render", "-project and -output are required")
	}

	p, err := project.Load(*projectPath)
	if err != nil {
		return renderr.Validation("render", "%v", err)
	}

	started := time.Now()
	display := newProgressDisplay(os.Stderr)
	e, err := boot(ctx, *listen, display.Handle)
	if err != nil {
		return err
	}
	defer e.close()
	srv := e.startOpsServer(ctx, started)
	defer shutdownOpsServer(srv)

	id, err := renderWithFallback(ctx, e.jobs, p, *output, func(b *pipeline.Builder) {
		for _, name := range splitList(*skip) {
			b.Skip(name)
		}
	})
	if err != nil {
		return err
	}

	stats, err := e.jobs.Statistics(id)
	if err != nil {
		return err
	}
	logging.Info("Rendered %s: %d frames, %d bytes, %d input(s) transcoded in %v",
		*output, stats.FramesProcessed, stats.OutputSize, stats.InputsTranscoded, stats.Duration().Round(time.Millisecond))
	return nil
}

// renderWithFallback renders p to output. When a hardware encoder fails,
// the render is repeated once as a new job with hardware acceleration off.
func renderWithFallback(ctx context.Context, jobs *pipeline.Manager, p *project.Project, output string, configure ...func(*pipeline.Builder)) (string, error) {
	id, err := jobs.Create(p, output, configure...)
	if err != nil {
		return "", err
	}
	err = jobs.Execute(ctx, id)
	if err == nil || !p.Export.HardwareAcceleration || !renderr.IsRetryable(err) || !errors.Is(err, renderr.ErrHardware) {
		return id, err
	}

	logging.Warn("Hardware encode of job %s failed, retrying in software: %v", id, err)
	software := *p
	software.Export.HardwareAcceleration = false
	id, err = jobs.Create(&software, output, configure...)
	if err != nil {
		return "", err
	}
	return id, jobs.Execute(ctx, id)
}

func runPreview(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return renderr.Validation("preview", "preview kind required: frame, storyboard, waveform or segment")
	}
	kind, args := args[0], args[1:]

	fs := flag.NewFlagSet("preview "+kind, flag.ContinueOnError)
	source := fs.String("source", "", "source media file")
	projectPath := fs.String("project", "", "project document (segment only)")
	out := fs.String("out", "", "output file")
	at := fs.Float64("at", 0, "timestamp in seconds (frame only)")
	start := fs.Float64("start", 0, "segment start in seconds")
	end := fs.Float64("end", 0, "segment end in seconds")
	width := fs.Int("width", 0, "width in pixels")
	height := fs.Int("height", 0, "height in pixels")
	frames := fs.Int("frames", preview.DefaultStoryboardFrames, "storyboard frame count")
	columns := fs.Int("columns", preview.DefaultStoryboardColumns, "storyboard columns")
	color := fs.String("color", "", "waveform color as #rrggbb")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		fs.Usage()
		return renderr.Validation("preview", "-out is required")
	}
	res := filtergraph.Resolution{Width: *width, Height: *height}

	e, err := boot(ctx, "", nil)
	if err != nil {
		return err
	}
	defer e.close()

	var img *cache.PreviewImage
	switch kind {
	case "frame":
		img, err = e.previews.Frame(ctx, *source, *at, res)
	case "storyboard":
		img, err = e.previews.Storyboard(ctx, *source, preview.StoryboardOptions{
			Frames:  *frames,
			Columns: *columns,
			Tile:    res,
		})
	case "waveform":
		var fg *project.Color
		if *color != "" {
			c, perr := project.ParseColor(*color)
			if perr != nil {
				return renderr.Validation("preview", "invalid -color: %v", perr)
			}
			fg = &c
		}
		img, err = e.previews.Waveform(ctx, *source, max(*width, 1), max(*height, 1), fg)
	case "segment":
		return previewSegment(ctx, e, *projectPath, *start, *end, *out)
	default:
		return renderr.Validation("preview", "unknown preview kind %q", sanitizeCommand(kind))
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(*out, img.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	logging.Info("Wrote %dx%d %s preview to %s", img.Width, img.Height, kind, *out)
	return nil
}

// previewSegment renders a segment and copies it out of the cache, which
// owns the rendered file.
func previewSegment(ctx context.Context, e *engine, projectPath string, start, end float64, out string) error {
	if projectPath == "" {
		return renderr.Validation("preview", "-project is required for segment previews")
	}
	p, err := project.Load(projectPath)
	if err != nil {
		return renderr.Validation("preview", "%v", err)
	}
	seg, err := e.previews.RenderSegment(ctx, p, start, end)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(seg.Path)
	if err != nil {
		return renderr.MediaFile("preview", seg.Path, err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write segment: %w", err)
	}
	logging.Info("Wrote %.2fs segment (%d bytes) to %s", seg.Duration, seg.Size, out)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", "", "listen address (overrides LISTEN_ADDR, default :8080)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *listen == "" && os.Getenv("LISTEN_ADDR") == "" {
		*listen = ":8080"
	}

	started := time.Now()
	e, err := boot(ctx, *listen, nil)
	if err != nil {
		return err
	}
	defer e.close()

	srv := e.startOpsServer(ctx, started)
	go e.reapJobs(ctx)

	<-ctx.Done()
	shutdownOpsServer(srv)

	for _, info := range e.jobs.List() {
		if !info.State.Finished() {
			_ = e.jobs.Cancel(info.ID)
		}
	}
	startup.LogShutdownComplete()
	return nil
}

func runGPU(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gpu", flag.ContinueOnError)
	benchmark := fs.Bool("benchmark", false, "encode a synthetic clip with each hardware encoder")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := boot(ctx, "", nil)
	if err != nil {
		return err
	}
	defer e.close()

	caps := e.gpu.GetCapabilities(ctx)
	report := map[string]any{"capabilities": caps}
	if *benchmark {
		results := make(map[string]any, len(caps.Encoders))
		for _, enc := range caps.Encoders {
			r, err := e.gpu.Benchmark(ctx, enc.Name)
			if err != nil {
				results[enc.Name] = map[string]string{"error": err.Error()}
				continue
			}
			results[enc.Name] = r
		}
		report["benchmarks"] = results
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
