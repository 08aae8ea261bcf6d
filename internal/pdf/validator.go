package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// pdfHeader is the magic every PDF file starts with
var pdfHeader = []byte("%PDF-")

// Validator checks a file before it is handed to the parser
type Validator struct {
	fs          afero.Fs
	maxFileSize int64
}

// NewValidator creates a validator over fs with the given size limit
func NewValidator(fs afero.Fs, maxFileSize int64) *Validator {
	return &Validator{
		fs:          fs,
		maxFileSize: maxFileSize,
	}
}

// Check performs the cheap checks: existence, type, extension, size and
// the %PDF- header
func (v *Validator) Check(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := v.fs.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if err := v.checkInfo(filePath, fileInfo); err != nil {
		return err
	}

	f, err := v.fs.Open(filePath)
	if err != nil {
		return fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("cannot read file: %w", err)
	}
	if !bytes.Contains(head[:n], pdfHeader) {
		return fmt.Errorf("file has no PDF header: %s", filePath)
	}
	return nil
}

func (v *Validator) checkInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", filePath)
	}

	if fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}

	return nil
}
