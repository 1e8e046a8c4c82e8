package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
)

// ErrEmptyInput is returned when there is no text to build a script from.
var ErrEmptyInput = errors.New("script: input text is empty")

// Extractor turns a topic or document into plain source text.
type Extractor struct {
	pdfCommand []string
	maxBytes   int
}

// NewExtractor parses pdfCommand, which is run with the PDF path and "-"
// appended and must write the document text to stdout.
func NewExtractor(pdfCommand string, maxBytes int) (*Extractor, error) {
	var args []string
	if strings.TrimSpace(pdfCommand) != "" {
		parsed, err := shellwords.NewParser().Parse(pdfCommand)
		if err != nil {
			return nil, fmt.Errorf("parse pdf command: %w", err)
		}
		args = parsed
	}
	return &Extractor{pdfCommand: args, maxBytes: maxBytes}, nil
}

// Text normalizes a typed topic or pasted document.
func (e *Extractor) Text(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyInput
	}
	return e.limit(s), nil
}

// File reads a text file, or extracts the text of a PDF.
func (e *Extractor) File(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	if !isPDF(path, data) {
		return e.Text(string(data))
	}
	if len(e.pdfCommand) == 0 {
		return "", errors.New("script: no pdf command configured")
	}

	args := append(append([]string{}, e.pdfCommand[1:]...), path, "-")
	cmd := exec.CommandContext(ctx, e.pdfCommand[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return e.Text(string(out))
}

func (e *Extractor) limit(s string) string {
	if e.maxBytes <= 0 || len(s) <= e.maxBytes {
		return s
	}
	cut := e.maxBytes
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func isPDF(path string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf") || bytes.HasPrefix(data, []byte("%PDF-"))
}
