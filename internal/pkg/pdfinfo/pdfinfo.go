package pdfinfo

import (
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

var ErrEmpty = errors.New("pdf is empty")

// PageCount opens the PDF behind r and returns its number of pages.
func PageCount(r io.ReaderAt, size int64) (n int, err error) {
	if size <= 0 {
		return 0, ErrEmpty
	}
	// the pdf reader panics on some truncated inputs
	defer func() {
		if rec := recover(); rec != nil {
			n, err = 0, fmt.Errorf("read pdf failed: %v", rec)
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open pdf failed: %w", err)
	}
	return reader.NumPage(), nil
}
