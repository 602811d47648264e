package capture

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// TesseractExtractor runs Tesseract over a lightly preprocessed copy of the
// receipt image. Recognition is the one step expensive enough to need its
// own goroutine; the caller's context is honored throughout, though an
// abandoned recognition pass runs to completion in the background.
type TesseractExtractor struct {
	languages string
}

// NewTesseractExtractor creates an extractor for the given Tesseract
// language set (e.g. "eng" or "eng+spa"). Empty defaults to English.
func NewTesseractExtractor(languages string) *TesseractExtractor {
	if languages == "" {
		languages = "eng"
	}
	return &TesseractExtractor{languages: languages}
}

type extractOutcome struct {
	result TextResult
	err    error
}

// ExtractText implements Extractor.
func (e *TesseractExtractor) ExtractText(ctx context.Context, path string, progress func(float64)) (TextResult, error) {
	if progress == nil {
		progress = func(float64) {}
	}

	outcome := make(chan extractOutcome, 1)
	go func() {
		outcome <- e.extract(ctx, path, progress)
	}()

	select {
	case <-ctx.Done():
		return TextResult{}, ctx.Err()
	case out := <-outcome:
		return out.result, out.err
	}
}

func (e *TesseractExtractor) extract(ctx context.Context, path string, progress func(float64)) extractOutcome {
	img, err := imaging.Open(path)
	if err != nil {
		return extractOutcome{err: fmt.Errorf("failed to open image: %w", err)}
	}
	progress(0.1)

	prepared := preprocess(img)
	progress(0.3)

	tmp, err := os.CreateTemp("", "snapledger-ocr-*.png")
	if err != nil {
		return extractOutcome{err: fmt.Errorf("failed to create temp image: %w", err)}
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := imaging.Save(prepared, tmpPath); err != nil {
		return extractOutcome{err: fmt.Errorf("failed to save preprocessed image: %w", err)}
	}
	progress(0.4)

	if ctx.Err() != nil {
		return extractOutcome{err: ctx.Err()}
	}

	// Two passes: the preprocessed copy usually wins, but a low-contrast
	// photo can come out better untouched, so keep whichever reads more.
	preparedText, err := e.recognize(tmpPath)
	if err != nil {
		return extractOutcome{err: err}
	}
	progress(0.7)

	if ctx.Err() != nil {
		return extractOutcome{err: ctx.Err()}
	}

	originalText, err := e.recognize(path)
	if err != nil {
		return extractOutcome{err: err}
	}
	progress(0.95)

	text := preparedText
	if len(strings.TrimSpace(originalText)) > len(strings.TrimSpace(text)) {
		text = originalText
	}

	progress(1)
	return extractOutcome{result: TextResult{
		Text:       text,
		Confidence: textConfidence(text),
	}}
}

func (e *TesseractExtractor) recognize(path string) (string, error) {
	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if err := client.SetLanguage(strings.Split(e.languages, "+")...); err != nil {
		return "", fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetImage(path); err != nil {
		return "", fmt.Errorf("failed to set OCR image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("text recognition failed: %w", err)
	}

	return normalizeText(text), nil
}

// preprocess applies the standard receipt cleanup pass: grayscale, a touch
// of contrast and sharpening, and upscaling for small photos where
// Tesseract struggles with glyph size.
func preprocess(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 15)
	gray = imaging.Sharpen(gray, 0.7)
	if gray.Bounds().Dy() < 900 {
		gray = imaging.Resize(gray, 0, 1300, imaging.Lanczos)
	}
	return gray
}

// normalizeText collapses runs of blank lines and trailing whitespace left
// behind by OCR.
func normalizeText(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if len(cleaned) > 0 && cleaned[len(cleaned)-1] == "" {
				continue
			}
			line = ""
		}
		cleaned = append(cleaned, line)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// textConfidence is a proxy score: the fraction of recognized runes that
// are letters, digits or common punctuation. Tesseract's per-word
// confidences are not exposed through the plain text call.
func textConfidence(text string) float64 {
	if text == "" {
		return 0
	}
	var legible, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(".,:-/$%()", r) {
			legible++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(legible) / float64(total)
}

// Ensure TesseractExtractor implements Extractor.
var _ Extractor = (*TesseractExtractor)(nil)
