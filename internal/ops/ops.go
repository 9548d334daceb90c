package ops

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fileflowhq/fileflow-be/internal/domain"
)

// FileService is the slice of the file manager processors work against
type FileService interface {
	Resolve(ctx context.Context, ownerID string, fileIDs []string) ([]domain.File, error)
	Stage(ctx context.Context, file *domain.File) (string, func(), error)
	TempPath(ext string) string
	CreateOutput(ctx context.Context, ownerID, jobID, srcPath, outputName string) (*domain.File, error)
}

// Tools names the external binaries processors shell out to. Empty fields
// fall back to the bare command name, resolved via PATH.
type Tools struct {
	FFmpeg    string
	Magick    string
	QPDF      string
	Tesseract string
}

func (t Tools) withDefaults() Tools {
	if t.FFmpeg == "" {
		t.FFmpeg = "ffmpeg"
	}
	if t.Magick == "" {
		t.Magick = "magick"
	}
	if t.QPDF == "" {
		t.QPDF = "qpdf"
	}
	if t.Tesseract == "" {
		t.Tesseract = "tesseract"
	}
	return t
}

// Registry holds one processor per job type
type Registry struct {
	procs map[domain.JobType]domain.ProcessorFunc
}

// NewRegistry builds the processor set over the given file service and tools
func NewRegistry(files FileService, tools Tools, logger *slog.Logger) *Registry {
	p := &processors{
		files:  files,
		tools:  tools.withDefaults(),
		logger: logger,
	}

	procs := make(map[domain.JobType]domain.ProcessorFunc, len(domain.JobTypes()))
	for _, t := range domain.JobTypes() {
		procs[t] = p.processorFor(t)
	}

	return &Registry{procs: procs}
}

// Processor returns the processor for a job type
func (r *Registry) Processor(t domain.JobType) (domain.ProcessorFunc, error) {
	proc, ok := r.procs[t]
	if !ok {
		return nil, domain.NewValidationError("unknown job type %q", t)
	}
	return proc, nil
}

type processors struct {
	files  FileService
	tools  Tools
	logger *slog.Logger
}

func (p *processors) processorFor(t domain.JobType) domain.ProcessorFunc {
	switch t {
	case domain.JobTypeImageToPDF:
		return p.imageToPDF
	case domain.JobTypeImageConvert:
		return p.imageConvert
	case domain.JobTypeImageCompress:
		return p.imageCompress
	case domain.JobTypeImageOCR:
		return p.imageOCR
	case domain.JobTypePDFMerge:
		return p.pdfMerge
	case domain.JobTypePDFSplit:
		return p.pdfSplit
	case domain.JobTypePDFExtractText:
		return p.pdfExtractText
	case domain.JobTypeVideoCompress:
		return p.videoCompress
	default:
		return func(context.Context, *domain.Job) ([]string, error) {
			return nil, fmt.Errorf("no processor for job type %q", t)
		}
	}
}

// resolveInputs fetches the job's inputs and checks every file is one of
// the accepted types.
func (p *processors) resolveInputs(ctx context.Context, job *domain.Job, accepted ...domain.FileType) ([]domain.File, error) {
	inputs, err := p.files.Resolve(ctx, job.OwnerID, job.InputFileIDs)
	if err != nil {
		return nil, err
	}

	for _, f := range inputs {
		ok := false
		for _, t := range accepted {
			if f.FileType == t {
				ok = true
				break
			}
		}
		if !ok {
			return nil, fmt.Errorf("file %s is a %s file; %s requires %s input",
				f.ID, f.FileType, job.Type, typeList(accepted))
		}
	}

	return inputs, nil
}

// resolveSingleInput is resolveInputs for job types taking exactly one file
func (p *processors) resolveSingleInput(ctx context.Context, job *domain.Job, accepted ...domain.FileType) (*domain.File, error) {
	inputs, err := p.resolveInputs(ctx, job, accepted...)
	if err != nil {
		return nil, err
	}

	if len(inputs) != 1 {
		return nil, fmt.Errorf("%s requires exactly one input file, got %d", job.Type, len(inputs))
	}

	return &inputs[0], nil
}

// stageAll stages every input and returns local paths plus a single cleanup
// covering whatever was staged, even on error.
func (p *processors) stageAll(ctx context.Context, inputs []domain.File) ([]string, func(), error) {
	paths := make([]string, 0, len(inputs))
	cleanups := make([]func(), 0, len(inputs))
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	for i := range inputs {
		path, fn, err := p.files.Stage(ctx, &inputs[i])
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, fn)
		paths = append(paths, path)
	}

	return paths, cleanup, nil
}

// stem returns the file name without its extension
func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func typeList(types []domain.FileType) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, " or ")
}
