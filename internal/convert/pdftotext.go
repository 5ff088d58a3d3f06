// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"strconv"

	"github.com/rotisserie/eris"
)

// PdftotextConverter shells out to poppler's pdftotext.
type PdftotextConverter struct {
	Bin      string
	MaxPages int
	exec     executor
}

// NewPdftotextConverter returns a converter running bin ("pdftotext" when
// empty). maxPages > 0 stops after that many pages.
func NewPdftotextConverter(bin string, maxPages int) *PdftotextConverter {
	if bin == "" {
		bin = "pdftotext"
	}
	return &PdftotextConverter{Bin: bin, MaxPages: maxPages, exec: defaultExec}
}

// Convert runs pdftotext on pdfPath and returns its UTF-8 output.
func (c *PdftotextConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	if _, err := c.exec.LookPath(c.Bin); err != nil {
		return "", eris.Wrapf(err, "%s not found on PATH", c.Bin)
	}

	args := []string{"-layout", "-enc", "UTF-8"}
	if c.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(c.MaxPages))
	}
	args = append(args, pdfPath, "-")

	var out bytes.Buffer
	if err := c.exec.RunPiped(ctx, c.Bin, args, nil, &out); err != nil {
		return "", eris.Wrapf(err, "converting %s with %s", pdfPath, c.Bin)
	}
	return out.String(), nil
}
