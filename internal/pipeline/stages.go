package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"render-engine/internal/cache"
	"render-engine/internal/ffmpeg"
	"render-engine/internal/filesystem"
	"render-engine/internal/filtergraph"
	"render-engine/internal/logging"
	"render-engine/internal/mediatypes"
	"render-engine/internal/metrics"
	"render-engine/internal/project"
	"render-engine/internal/renderr"
)

// EncoderTag is written into the container's encoder metadata.
const EncoderTag = "render-engine"

type validationStage struct{}

func (s *validationStage) Name() string                     { return StageValidation }
func (s *validationStage) EstimatedDuration() time.Duration { return ValidationBudget }

func (s *validationStage) Process(_ context.Context, pc *Context) error {
	const op = "pipeline.validation"
	if pc.Project == nil {
		return renderr.Validation(op, "no project")
	}
	if pc.OutputPath == "" {
		return renderr.Validation(op, "no output path")
	}

	issues := pc.Project.Validate()
	pc.updateStats(func(st *Statistics) { st.ValidationIssues = len(issues) })
	for _, issue := range issues {
		logging.Debug("Job %s: validation: %s", pc.JobID, issue)
	}
	return issues.Err(op)
}

type preprocessingStage struct {
	svc Services
}

func (s *preprocessingStage) Name() string                     { return StagePreprocessing }
func (s *preprocessingStage) EstimatedDuration() time.Duration { return PreprocessingBudget }

// Process checks every source, probes it through the metadata cache and
// converts sources the graph cannot read into intermediates in the temp
// dir. Failures are not retried.
func (s *preprocessingStage) Process(ctx context.Context, pc *Context) error {
	const op = "pipeline.preprocessing"
	seen := make(map[string]bool)

	for _, path := range pc.Project.FilePaths() {
		if seen[path] {
			continue
		}
		seen[path] = true

		if pc.IsCancelled() {
			return renderr.Cancelled(op, pc.JobID)
		}

		info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
		if err != nil {
			return renderr.MediaFile(op, path, err)
		}
		if info.IsDir() {
			return renderr.MediaFile(op, path, errors.New("is a directory"))
		}

		switch mediatypes.FileTypeOf(path) {
		case mediatypes.FileTypeImage, mediatypes.FileTypeSubtitle:
			continue
		}

		media, err := s.probe(ctx, path, info)
		if err != nil {
			return err
		}
		pc.SetMediaInfo(path, media)

		if !media.NeedsTranscode() {
			continue
		}
		if err := s.transcode(ctx, pc, path, media, len(seen)); err != nil {
			return err
		}
	}
	return nil
}

func (s *preprocessingStage) probe(ctx context.Context, path string, info os.FileInfo) (*ffmpeg.MediaInfo, error) {
	probe := func() (*ffmpeg.MediaInfo, error) { return s.svc.Runner.Probe(ctx, path) }
	if s.svc.Cache == nil {
		return probe()
	}
	return s.svc.Cache.GetOrCreateMetadata(cache.MetadataKeyFromInfo(path, info), probe)
}

func (s *preprocessingStage) transcode(ctx context.Context, pc *Context, path string, media *ffmpeg.MediaInfo, n int) error {
	dir, err := pc.EnsureTempDir()
	if err != nil {
		return renderr.Internal("pipeline.preprocessing", "%v", err)
	}
	out := filepath.Join(dir, fmt.Sprintf("input-%03d.mp4", n))
	cmd := filtergraph.BuildTranscodeCommand(path, out, media)

	logging.Info("Job %s: converting %s (%s/%s) to an intermediate", pc.JobID, filepath.Base(path), media.VideoCodec, media.AudioCodec)
	err = s.svc.Runner.Run(ctx, pc.JobID+"-pre", cmd, func(ffmpeg.Progress) error {
		if pc.IsCancelled() {
			return renderr.Cancelled("pipeline.preprocessing", pc.JobID)
		}
		return nil
	})
	if err != nil {
		var re *renderr.Error
		if errors.As(err, &re) {
			return re.AtPath(path)
		}
		return err
	}

	pc.SetInputOverride(path, out)
	pc.updateStats(func(st *Statistics) { st.InputsTranscoded++ })
	metrics.PipelineInputsTranscoded.Inc()
	return nil
}

type compositionStage struct {
	svc Services
}

func (s *compositionStage) Name() string                     { return StageComposition }
func (s *compositionStage) EstimatedDuration() time.Duration { return CompositionBudget }

// Process compiles the render command into the temp dir. Nothing runs yet.
func (s *compositionStage) Process(ctx context.Context, pc *Context) error {
	const op = "pipeline.composition"
	p := pc.Project

	spec, err := filtergraph.SpecFor(p.Export.Format)
	if err != nil {
		return err
	}
	dir, err := pc.EnsureTempDir()
	if err != nil {
		return renderr.Internal(op, "%v", err)
	}

	opts := []filtergraph.Option{
		filtergraph.WithInputOverrides(pc.InputOverrides()),
		filtergraph.WithMediaInfo(pc.MediaInfo()),
	}
	if s.svc.GPU != nil {
		opts = append(opts, filtergraph.WithRecommender(s.svc.GPU))
	}

	cmd, err := filtergraph.New(p, opts...).BuildRenderCommand(ctx, filepath.Join(dir, "render"+spec.Extension))
	if err != nil {
		return err
	}
	pc.SetCommand(cmd)

	total := int64(math.Round(p.Timeline.Duration * p.OutputFPS()))
	pc.updateStats(func(st *Statistics) { st.TotalFrames = total })
	logging.Debug("Job %s: %s", pc.JobID, cmd.String())
	return nil
}

type encodingStage struct {
	svc Services
}

func (s *encodingStage) Name() string                     { return StageEncoding }
func (s *encodingStage) EstimatedDuration() time.Duration { return EncodingBudget }

// Process runs the compiled command. Each progress block is republished
// and is also where cancellation is polled, so a cancel kills the encoder
// promptly.
func (s *encodingStage) Process(ctx context.Context, pc *Context) error {
	const op = "pipeline.encoding"
	cmd := pc.Command()
	if cmd == nil {
		return renderr.Internal(op, "no compiled command; composition must run first")
	}

	logging.Info("Job %s: encoding with %s", pc.JobID, cmd.VideoEncoder)
	return s.svc.Runner.Run(ctx, pc.JobID, cmd, func(prog ffmpeg.Progress) error {
		if pc.IsCancelled() {
			return renderr.Cancelled(op, pc.JobID)
		}
		pct := pc.updateProgress(prog, cmd.Duration)
		pc.Publish(Event{Type: EventProgress, Stage: StageEncoding, Progress: &prog, Percent: pct})
		return nil
	})
}

type finalizationStage struct {
	svc Services
}

func (s *finalizationStage) Name() string                     { return StageFinalization }
func (s *finalizationStage) EstimatedDuration() time.Duration { return FinalizationBudget }

// Process verifies the encoded file and writes it to the output path with
// container metadata. GIF output carries no tags and is moved as is.
func (s *finalizationStage) Process(ctx context.Context, pc *Context) error {
	const op = "pipeline.finalization"
	cmd := pc.Command()
	if cmd == nil {
		return renderr.Internal(op, "no compiled command")
	}

	info, err := filesystem.StatWithRetry(cmd.Output, filesystem.DefaultRetryConfig())
	if err != nil {
		return renderr.MediaFile(op, cmd.Output, fmt.Errorf("encoder produced no output: %w", err))
	}
	if info.Size() == 0 {
		return renderr.MediaFile(op, cmd.Output, errors.New("encoder produced an empty file"))
	}

	if err := os.MkdirAll(filepath.Dir(pc.OutputPath), 0o755); err != nil {
		return renderr.MediaFile(op, pc.OutputPath, err)
	}

	if pc.Project.Export.Format == project.FormatGIF {
		if err := moveFile(cmd.Output, pc.OutputPath); err != nil {
			return renderr.MediaFile(op, pc.OutputPath, err)
		}
	} else {
		meta := pc.Project.Metadata
		if meta.CreatedAt.IsZero() {
			meta.CreatedAt = time.Now()
		}
		tags := filtergraph.MetadataTags(meta)
		tags["encoder"] = EncoderTag
		remux := filtergraph.BuildMetadataCommand(cmd.Output, pc.OutputPath, tags)
		if err := s.svc.Runner.Run(ctx, pc.JobID+"-finalize", remux, nil); err != nil {
			return err
		}
	}

	final, err := filesystem.StatWithRetry(pc.OutputPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return renderr.MediaFile(op, pc.OutputPath, err)
	}
	pc.updateStats(func(st *Statistics) { st.OutputSize = final.Size() })
	logging.Info("Job %s: wrote %s (%d bytes)", pc.JobID, pc.OutputPath, final.Size())
	return nil
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
