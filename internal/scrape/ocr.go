package scrape

import "context"

// NoopOCR is an ImageOCRHelper that performs no OCR and always returns an
// empty string. It is the default when no OCR provider is configured;
// image/OCR failures are non-fatal to the scrape step by design, so this
// lets the pipeline run without one.
type NoopOCR struct{}

// OCR implements ImageOCRHelper.
func (NoopOCR) OCR(ctx context.Context, imageURL string) (string, error) {
	return "", nil
}
