package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ledongthuc/pdf"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
)

var (
	// ErrUnsupportedFormat is returned for file types the extractor cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyDocument is returned when a document yields no text.
	ErrEmptyDocument = errors.New("document contains no text")
)

// ExtractionError reports a failure to read one document. It is returned to the
// caller as is and never retried.
type ExtractionError struct {
	Filename string
	Format   string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Filename, e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ImageTranscriber turns a photographed report into text.
type ImageTranscriber interface {
	TranscribeImage(ctx context.Context, format string, imageData []byte) (string, error)
}

// MaxImageWidth is the width images are scaled down to before transcription.
const MaxImageWidth = 800

// Extractor reads plain text out of uploaded reports.
type Extractor struct {
	images ImageTranscriber
	cache  *lru.Cache[string, string]
	logger zerolog.Logger
}

// NewExtractor creates an Extractor. images may be nil, in which case image
// uploads are unsupported.
func NewExtractor(images ImageTranscriber, cacheSize int, logger zerolog.Logger) (*Extractor, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Extractor{images: images, cache: cache, logger: logger}, nil
}

// Format returns the lowercased extension of filename without the dot.
func Format(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// Extract returns the text of the document. Identical bytes are only extracted once.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	format := Format(filename)
	sum := sha256.Sum256(data)
	key := format + ":" + hex.EncodeToString(sum[:])
	if text, ok := e.cache.Get(key); ok {
		e.logger.Debug().Str("file", filename).Msg("extraction cache hit")
		return text, nil
	}

	var (
		text string
		err  error
	)
	switch format {
	case "txt", "text":
		text = string(data)
	case "pdf":
		text, err = pdfText(data)
	case "docx":
		text, err = docxText(data)
	case "jpg", "jpeg", "png":
		text, err = e.imageText(ctx, format, data)
	default:
		err = ErrUnsupportedFormat
	}
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyDocument
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("file", filename).Msg("extraction failed")
		return "", &ExtractionError{Filename: filename, Format: format, Err: err}
	}

	text = strings.TrimSpace(text)
	e.cache.Add(key, text)
	e.logger.Info().Str("file", filename).Int("chars", len(text)).Msg("document extracted")
	return text, nil
}

// pdfText reads the plain text of every page. The reader resolves objects
// lazily and panics on broken ones.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), nil
}

func (e *Extractor) imageText(ctx context.Context, format string, data []byte) (string, error) {
	if e.images == nil {
		return "", ErrUnsupportedFormat
	}
	scaled, outFormat, err := downscale(data)
	if err != nil {
		return "", err
	}
	return e.images.TranscribeImage(ctx, outFormat, scaled)
}

// downscale shrinks images wider than MaxImageWidth, keeping the aspect ratio,
// and returns the re-encoded bytes with their genai format name.
func downscale(data []byte) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Dx() <= MaxImageWidth {
		return data, format, nil
	}

	img = resize.Resize(MaxImageWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	default:
		format = "jpeg"
		err = jpeg.Encode(&buf, img, nil)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), format, nil
}
