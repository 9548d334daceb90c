package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fileflowhq/fileflow-be/internal/domain"
)

const (
	defaultCompressQuality = 75
	defaultOCRLanguage     = "eng"
)

// imageToPDF lays every input image onto its own PDF page, in input order
func (p *processors) imageToPDF(ctx context.Context, job *domain.Job) ([]string, error) {
	opts, ok := job.Options.(domain.ImageToPDFOptions)
	if !ok {
		return nil, fmt.Errorf("unexpected options %T for %s", job.Options, job.Type)
	}

	inputs, err := p.resolveInputs(ctx, job, domain.FileTypeImage)
	if err != nil {
		return nil, err
	}

	paths, cleanup, err := p.stageAll(ctx, inputs)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := p.files.TempPath(".pdf")
	defer os.Remove(outPath)

	args := append([]string{}, paths...)
	switch opts.Orientation {
	case "landscape":
		// rotate only pages that are taller than wide
		args = append(args, "-rotate", "90<")
	case "portrait":
		args = append(args, "-rotate", "90>")
	}
	if opts.PageSize != "" && opts.PageSize != "auto" {
		args = append(args, "-page", opts.PageSize)
	}
	args = append(args, outPath)

	if err := p.run(ctx, p.tools.Magick, args, outPath); err != nil {
		return nil, err
	}

	out, err := p.files.CreateOutput(ctx, job.OwnerID, job.ID, outPath, stem(inputs[0].OriginalName)+".pdf")
	if err != nil {
		return nil, err
	}

	return []string{out.ID}, nil
}

// imageConvert re-encodes an image into the requested format
func (p *processors) imageConvert(ctx context.Context, job *domain.Job) ([]string, error) {
	opts, ok := job.Options.(domain.ImageConvertOptions)
	if !ok {
		return nil, fmt.Errorf("unexpected options %T for %s", job.Options, job.Type)
	}

	input, err := p.resolveSingleInput(ctx, job, domain.FileTypeImage)
	if err != nil {
		return nil, err
	}

	srcPath, cleanup, err := p.files.Stage(ctx, input)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := p.files.TempPath("." + opts.Format)
	defer os.Remove(outPath)

	args := []string{srcPath}
	if opts.Quality > 0 {
		args = append(args, "-quality", strconv.Itoa(opts.Quality))
	}
	args = append(args, outPath)

	if err := p.run(ctx, p.tools.Magick, args, outPath); err != nil {
		return nil, err
	}

	out, err := p.files.CreateOutput(ctx, job.OwnerID, job.ID, outPath, stem(input.OriginalName)+"."+opts.Format)
	if err != nil {
		return nil, err
	}

	return []string{out.ID}, nil
}

// imageCompress re-encodes an image at reduced quality, keeping its format
func (p *processors) imageCompress(ctx context.Context, job *domain.Job) ([]string, error) {
	opts, ok := job.Options.(domain.ImageCompressOptions)
	if !ok {
		return nil, fmt.Errorf("unexpected options %T for %s", job.Options, job.Type)
	}

	input, err := p.resolveSingleInput(ctx, job, domain.FileTypeImage)
	if err != nil {
		return nil, err
	}

	srcPath, cleanup, err := p.files.Stage(ctx, input)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	quality := opts.Quality
	if quality == 0 {
		quality = defaultCompressQuality
	}

	ext := strings.ToLower(filepath.Ext(input.OriginalName))
	if ext == "" {
		ext = ".jpg"
	}

	outPath := p.files.TempPath(ext)
	defer os.Remove(outPath)

	args := []string{srcPath, "-quality", strconv.Itoa(quality), outPath}
	if err := p.run(ctx, p.tools.Magick, args, outPath); err != nil {
		return nil, err
	}

	out, err := p.files.CreateOutput(ctx, job.OwnerID, job.ID, outPath, stem(input.OriginalName)+"-compressed"+ext)
	if err != nil {
		return nil, err
	}

	return []string{out.ID}, nil
}

// imageOCR extracts text from an image into a .txt file
func (p *processors) imageOCR(ctx context.Context, job *domain.Job) ([]string, error) {
	opts, ok := job.Options.(domain.ImageOCROptions)
	if !ok {
		return nil, fmt.Errorf("unexpected options %T for %s", job.Options, job.Type)
	}

	input, err := p.resolveSingleInput(ctx, job, domain.FileTypeImage)
	if err != nil {
		return nil, err
	}

	srcPath, cleanup, err := p.files.Stage(ctx, input)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	language := opts.Language
	if language == "" {
		language = defaultOCRLanguage
	}

	// tesseract appends .txt to the output base itself
	outBase := strings.TrimSuffix(p.files.TempPath(".txt"), ".txt")
	outPath := outBase + ".txt"
	defer os.Remove(outPath)

	args := []string{srcPath, outBase, "-l", language}
	if err := p.run(ctx, p.tools.Tesseract, args, outPath); err != nil {
		return nil, err
	}

	out, err := p.files.CreateOutput(ctx, job.OwnerID, job.ID, outPath, stem(input.OriginalName)+".txt")
	if err != nil {
		return nil, err
	}

	return []string{out.ID}, nil
}
