package services

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// OptimizePDF validates and rewrites a downloaded PDF in place using relaxed
// validation, so a corrupt document fails here with a precise error instead
// of inside the external rasterizer.
func OptimizePDF(path string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(path, "", cfg); err != nil {
		return fmt.Errorf("optimize pdf %s: %w", path, err)
	}
	return nil
}
