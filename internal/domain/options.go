package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// JobOptions is the typed per-kind options carried by a job. Each job type
// has exactly one options struct; DecodeOptions is the only place a raw
// options document is turned into one.
type JobOptions interface {
	Kind() JobType
	Validate() error
}

// DecodeOptions decodes raw options JSON into the struct for the given job
// type and validates it. Nil or empty raw input decodes as an empty object,
// so required fields still apply. Unknown job types and malformed or
// out-of-range options fail with a validation error.
func DecodeOptions(t JobType, raw []byte) (JobOptions, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var opts JobOptions
	switch t {
	case JobTypeImageToPDF:
		var o ImageToPDFOptions
		if err := unmarshalOptions(raw, &o); err != nil {
			return nil, err
		}
		opts = o
	case JobTypeImageConvert:
		var o ImageConvertOptions
		if err := unmarshalOptions(raw, &o); err != nil {
			return nil, err
		}
		opts = o
	case JobTypeImageCompress:
		var o ImageCompressOptions
		if err := unmarshalOptions(raw, &o); err != nil {
			return nil, err
		}
		opts = o
	case JobTypeImageOCR:
		var o ImageOCROptions
		if err := unmarshalOptions(raw, &o); err != nil {
			return nil, err
		}
		opts = o
	case JobTypePDFMerge:
		var o PDFMergeOptions
		if err := unmarshalOptions(raw, &o); err != nil {
			return nil, err
		}
		opts = o
	case JobTypePDFSplit:
		var o PDFSplitOptions
		if err := unmarshalOptions(raw, &o); err != nil {
			return nil, err
		}
		opts = o
	case JobTypePDFExtractText:
		var o PDFExtractTextOptions
		if err := unmarshalOptions(raw, &o); err != nil {
			return nil, err
		}
		opts = o
	case JobTypeVideoCompress:
		var o VideoCompressOptions
		if err := unmarshalOptions(raw, &o); err != nil {
			return nil, err
		}
		opts = o
	default:
		return nil, NewValidationError("unknown job type %q", t)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func unmarshalOptions(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: malformed options: %v", ErrValidation, err)
	}
	return nil
}

// ImageToPDFOptions lays one image per page into a single PDF
type ImageToPDFOptions struct {
	PageSize    string `json:"page_size,omitempty"`
	Orientation string `json:"orientation,omitempty"`
}

func (ImageToPDFOptions) Kind() JobType { return JobTypeImageToPDF }

func (o ImageToPDFOptions) Validate() error {
	switch o.PageSize {
	case "", "auto", "A4", "Letter", "Legal":
	default:
		return NewValidationError("unsupported page size %q", o.PageSize)
	}
	switch o.Orientation {
	case "", "portrait", "landscape":
	default:
		return NewValidationError("unsupported orientation %q", o.Orientation)
	}
	return nil
}

// ImageConvertOptions re-encodes an image into another format
type ImageConvertOptions struct {
	Format  string `json:"format"`
	Quality int    `json:"quality,omitempty"`
}

func (ImageConvertOptions) Kind() JobType { return JobTypeImageConvert }

func (o ImageConvertOptions) Validate() error {
	switch o.Format {
	case "jpg", "jpeg", "png", "webp", "tiff", "bmp":
	case "":
		return NewValidationError("format is required")
	default:
		return NewValidationError("unsupported target format %q", o.Format)
	}
	if o.Quality < 0 || o.Quality > 100 {
		return NewValidationError("quality must be between 1 and 100")
	}
	return nil
}

// ImageCompressOptions re-encodes an image at reduced quality, keeping its format
type ImageCompressOptions struct {
	Quality int `json:"quality,omitempty"`
}

func (ImageCompressOptions) Kind() JobType { return JobTypeImageCompress }

func (o ImageCompressOptions) Validate() error {
	if o.Quality < 0 || o.Quality > 100 {
		return NewValidationError("quality must be between 1 and 100")
	}
	return nil
}

var ocrLanguagePattern = regexp.MustCompile(`^[a-z]{3}(\+[a-z]{3})*$`)

// ImageOCROptions extracts text from an image
type ImageOCROptions struct {
	Language string `json:"language,omitempty"`
}

func (ImageOCROptions) Kind() JobType { return JobTypeImageOCR }

func (o ImageOCROptions) Validate() error {
	if o.Language != "" && !ocrLanguagePattern.MatchString(o.Language) {
		return NewValidationError("invalid OCR language %q", o.Language)
	}
	return nil
}

// PDFMergeOptions concatenates PDFs in input order
type PDFMergeOptions struct{}

func (PDFMergeOptions) Kind() JobType   { return JobTypePDFMerge }
func (PDFMergeOptions) Validate() error { return nil }

// page range in qpdf syntax: "3", "1-5", "7-z" (z means the last page)
var pageRangePattern = regexp.MustCompile(`^[0-9]+(-([0-9]+|z))?$`)

// PDFSplitOptions cuts a PDF into one output per page range
type PDFSplitOptions struct {
	Ranges []string `json:"ranges"`
}

func (PDFSplitOptions) Kind() JobType { return JobTypePDFSplit }

func (o PDFSplitOptions) Validate() error {
	if len(o.Ranges) == 0 {
		return NewValidationError("at least one page range is required")
	}
	for _, r := range o.Ranges {
		if !pageRangePattern.MatchString(r) {
			return NewValidationError("invalid page range %q", r)
		}
	}
	return nil
}

// PDFExtractTextOptions extracts the plain text of a PDF
type PDFExtractTextOptions struct{}

func (PDFExtractTextOptions) Kind() JobType   { return JobTypePDFExtractText }
func (PDFExtractTextOptions) Validate() error { return nil }

// VideoCompressOptions re-encodes a video at a constant rate factor
type VideoCompressOptions struct {
	CRF    int    `json:"crf,omitempty"`
	Preset string `json:"preset,omitempty"`
}

func (VideoCompressOptions) Kind() JobType { return JobTypeVideoCompress }

func (o VideoCompressOptions) Validate() error {
	if o.CRF < 0 || o.CRF > 51 {
		return NewValidationError("crf must be between 0 and 51")
	}
	switch o.Preset {
	case "", "ultrafast", "superfast", "veryfast", "faster", "fast", "medium", "slow", "slower", "veryslow":
	default:
		return NewValidationError("unsupported preset %q", o.Preset)
	}
	return nil
}
