package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidEmail reports whether s is an e-mail address, using the same rule as
// the `binding:"email"` tag on request structs.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && validate.Var(s, "email") == nil
}
