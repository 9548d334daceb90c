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
	defaultCRF    = 28
	defaultPreset = "medium"
)

// videoCompress re-encodes a video with libx264 at a constant rate factor,
// copying the audio stream through untouched.
func (p *processors) videoCompress(ctx context.Context, job *domain.Job) ([]string, error) {
	opts, ok := job.Options.(domain.VideoCompressOptions)
	if !ok {
		return nil, fmt.Errorf("unexpected options %T for %s", job.Options, job.Type)
	}

	input, err := p.resolveSingleInput(ctx, job, domain.FileTypeVideo)
	if err != nil {
		return nil, err
	}

	srcPath, cleanup, err := p.files.Stage(ctx, input)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	crf := opts.CRF
	if crf == 0 {
		crf = defaultCRF
	}
	preset := opts.Preset
	if preset == "" {
		preset = defaultPreset
	}

	ext := strings.ToLower(filepath.Ext(input.OriginalName))
	if ext == "" {
		ext = ".mp4"
	}

	outPath := p.files.TempPath(ext)
	defer os.Remove(outPath)

	args := []string{
		"-i", srcPath,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(crf),
		"-preset", preset,
		"-c:a", "copy",
		"-y", outPath,
	}

	if err := p.run(ctx, p.tools.FFmpeg, args, outPath); err != nil {
		return nil, err
	}

	out, err := p.files.CreateOutput(ctx, job.OwnerID, job.ID, outPath, stem(input.OriginalName)+"-compressed"+ext)
	if err != nil {
		return nil, err
	}

	return []string{out.ID}, nil
}
