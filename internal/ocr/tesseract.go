/**
 * Tesseract OCR engine
 *
 * Word-level OCR over report images. Each recognized word arrives as an
 * extraction token carrying its text, per-word confidence and bounding
 * box, which is exactly what the line assembler consumes. Confidence is
 * normalized from Tesseract's 0-100 scale to [0, 1].
 */

package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/vetpipe/labreport-worker/internal/extract"
	"github.com/vetpipe/labreport-worker/internal/logging"
)

// Engine produces extraction tokens from report images.
type Engine interface {
	Recognize(ctx context.Context, imageData []byte) (*Result, error)
}

// Result is one page of word-level OCR output.
type Result struct {
	Tokens   []extract.Token
	Text     string
	Language string
	Duration time.Duration
}

// TesseractEngine runs Tesseract locally via gosseract.
type TesseractEngine struct {
	language string
	logger   *logging.Logger
}

// Config holds Tesseract configuration.
type Config struct {
	// Language is the Tesseract language spec, e.g. "kor+eng".
	Language string
}

// NewTesseractEngine creates a Tesseract engine.
func NewTesseractEngine(cfg *Config) (*TesseractEngine, error) {
	lang := cfg.Language
	if lang == "" {
		lang = "kor+eng"
	}
	return &TesseractEngine{
		language: lang,
		logger:   logging.NewLogger("TesseractOCR"),
	}, nil
}

// Recognize performs word-level OCR on one image.
func (t *TesseractEngine) Recognize(ctx context.Context, imageData []byte) (*Result, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("no image data")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTime := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Split(t.language, "+")...); err != nil {
		return nil, fmt.Errorf("failed to set language %q: %w", t.language, err)
	}
	if err := client.SetImageFromBytes(imageData); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	tokens := make([]extract.Token, 0, len(boxes))
	var texts []string
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}

		r := box.Box
		tokens = append(tokens, extract.Token{
			Text:       word,
			Confidence: box.Confidence / 100.0,
			XLeft:      r.Min.X,
			XRight:     r.Max.X,
			YTop:       r.Min.Y,
			YBottom:    r.Max.Y,
			YCenter:    (r.Min.Y + r.Max.Y) / 2,
			RawH:       r.Dy(),
		})
		texts = append(texts, word)
	}

	duration := time.Since(startTime)
	t.logger.Info("OCR complete",
		"words", len(tokens),
		"language", t.language,
		"duration", duration)

	return &Result{
		Tokens:   tokens,
		Text:     strings.Join(texts, " "),
		Language: t.language,
		Duration: duration,
	}, nil
}
