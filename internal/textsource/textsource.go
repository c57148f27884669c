// Package textsource loads input text for the CLI from arguments, files,
// PDFs or stdin.
package textsource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxInputBytes bounds what is read from a file or stdin. The conversion
// limit is far lower; this only guards against runaway input.
const maxInputBytes = 4 << 20

// ErrNoInput is returned when neither arguments, a file nor stdin supply text.
var ErrNoInput = errors.New("no input text: pass it as arguments, with --file, or on stdin")

// Resolve picks the input text. Arguments win over file, file wins over
// stdin. stdin may be nil.
func Resolve(args []string, file string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if file != "" {
		return Load(file)
	}
	if stdin != nil {
		return Read(stdin)
	}
	return "", ErrNoInput
}

// Load reads the text content of path. PDF files are converted to plain
// text; anything else is read as UTF-8.
func Load(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return loadPDF(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read returns the trimmed content of r.
func Read(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputBytes))
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", ErrNoInput
	}
	return text, nil
}

func loadPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(plain, maxInputBytes)); err != nil {
		return "", fmt.Errorf("reading text from %s: %w", path, err)
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("pdf %s contains no extractable text", path)
	}
	return text, nil
}
