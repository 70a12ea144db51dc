package categories

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/missoes/backend/internal/models"
)

var colorRegex = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

var (
	ErrLabelRequired = errors.New("label is required")
	ErrInvalidColor  = errors.New("color must be a hex value like #FF0000")
)

// ColorTakenError names the category that already uses a color.
type ColorTakenError struct {
	Label string
}

func (e *ColorTakenError) Error() string {
	return fmt.Sprintf("color already used by category %q", e.Label)
}

// Input is the writable part of a category.
type Input struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Normalize trims the fields of in.
func (in Input) Normalize() Input {
	return Input{Label: strings.TrimSpace(in.Label), Color: strings.TrimSpace(in.Color)}
}

// Validate checks in against the existing categories. excludeID skips the
// category being edited (0 on create). Colors compare case-insensitively.
func Validate(in Input, existing []models.EventCategory, excludeID int64) error {
	if in.Label == "" {
		return ErrLabelRequired
	}
	if !colorRegex.MatchString(in.Color) {
		return ErrInvalidColor
	}
	for _, c := range existing {
		if c.ID == excludeID {
			continue
		}
		if strings.EqualFold(c.Color, in.Color) {
			return &ColorTakenError{Label: c.Label}
		}
	}
	return nil
}
