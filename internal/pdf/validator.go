package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/spherical/order-ocr/internal/domain"
	"github.com/spherical/order-ocr/internal/observability"
)

const largeFileBytes = 100 * 1024 * 1024

// Validator checks input documents before any work is started.
type Validator struct {
	logger *observability.Logger
}

// NewValidator creates a new validator instance
func NewValidator(logger *observability.Logger) *Validator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Validator{logger: logger}
}

// ValidateInputPath checks that path is a readable regular file with a
// supported extension and returns its document type.
func (v *Validator) ValidateInputPath(path string) (domain.DocumentType, error) {
	if strings.TrimSpace(path) == "" {
		return "", domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return "", domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return "", domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	docType, err := domain.Classify(path)
	if err != nil {
		return "", err
	}

	if info.Size() > largeFileBytes {
		v.logger.Warn().Int64("size_mb", info.Size()/(1024*1024)).Str("path", path).
			Msg("input file is very large, processing may take a while")
	}

	file, err := os.Open(path)
	if err != nil {
		return "", domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return docType, nil
}
