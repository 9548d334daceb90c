package ops

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/fileflowhq/fileflow-be/internal/domain"
)

// pdfMerge concatenates the input PDFs in the order they were given
func (p *processors) pdfMerge(ctx context.Context, job *domain.Job) ([]string, error) {
	if _, ok := job.Options.(domain.PDFMergeOptions); !ok {
		return nil, fmt.Errorf("unexpected options %T for %s", job.Options, job.Type)
	}

	inputs, err := p.resolveInputs(ctx, job, domain.FileTypePDF)
	if err != nil {
		return nil, err
	}

	if len(inputs) < 2 {
		return nil, fmt.Errorf("%s requires at least two input files, got %d", job.Type, len(inputs))
	}

	paths, cleanup, err := p.stageAll(ctx, inputs)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := p.files.TempPath(".pdf")
	defer os.Remove(outPath)

	args := []string{"--empty", "--pages"}
	args = append(args, paths...)
	args = append(args, "--", outPath)

	if err := p.run(ctx, p.tools.QPDF, args, outPath); err != nil {
		return nil, err
	}

	out, err := p.files.CreateOutput(ctx, job.OwnerID, job.ID, outPath, "merged.pdf")
	if err != nil {
		return nil, err
	}

	return []string{out.ID}, nil
}

// pdfSplit cuts one output PDF per requested page range. Outputs registered
// before a bad range keep existing as files even though the job fails.
func (p *processors) pdfSplit(ctx context.Context, job *domain.Job) ([]string, error) {
	opts, ok := job.Options.(domain.PDFSplitOptions)
	if !ok {
		return nil, fmt.Errorf("unexpected options %T for %s", job.Options, job.Type)
	}

	input, err := p.resolveSingleInput(ctx, job, domain.FileTypePDF)
	if err != nil {
		return nil, err
	}

	srcPath, cleanup, err := p.files.Stage(ctx, input)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	base := stem(input.OriginalName)
	outputIDs := make([]string, 0, len(opts.Ranges))

	for _, pageRange := range opts.Ranges {
		outPath := p.files.TempPath(".pdf")

		args := []string{srcPath, "--pages", ".", pageRange, "--", outPath}
		if err := p.run(ctx, p.tools.QPDF, args, outPath); err != nil {
			os.Remove(outPath)
			return outputIDs, fmt.Errorf("failed to split pages %s: %w", pageRange, err)
		}

		name := fmt.Sprintf("%s-pages-%s.pdf", base, strings.ReplaceAll(pageRange, "z", "end"))
		out, err := p.files.CreateOutput(ctx, job.OwnerID, job.ID, outPath, name)
		os.Remove(outPath)
		if err != nil {
			return outputIDs, err
		}

		outputIDs = append(outputIDs, out.ID)
	}

	return outputIDs, nil
}

// pdfExtractText pulls the embedded plain text out of a PDF. Pages without
// a content object are skipped; scanned pages come out empty since no OCR
// is involved here.
func (p *processors) pdfExtractText(ctx context.Context, job *domain.Job) ([]string, error) {
	if _, ok := job.Options.(domain.PDFExtractTextOptions); !ok {
		return nil, fmt.Errorf("unexpected options %T for %s", job.Options, job.Type)
	}

	input, err := p.resolveSingleInput(ctx, job, domain.FileTypePDF)
	if err != nil {
		return nil, err
	}

	srcPath, cleanup, err := p.files.Stage(ctx, input)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	f, reader, err := pdf.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var text strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", pageIndex, err)
		}

		text.WriteString(content)
		text.WriteString("\n")
	}

	outPath := p.files.TempPath(".txt")
	defer os.Remove(outPath)

	if err := os.WriteFile(outPath, []byte(text.String()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write text output: %w", err)
	}

	out, err := p.files.CreateOutput(ctx, job.OwnerID, job.ID, outPath, stem(input.OriginalName)+".txt")
	if err != nil {
		return nil, err
	}

	return []string{out.ID}, nil
}
