// Package validate registers the project's custom rules on gin's validator.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	personNameRegex = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	once            sync.Once
	registerErr     error
)

// Register installs the custom rules on gin's default validator. Safe to call more than once.
func Register() error {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		registerErr = v.RegisterValidation("personname", validatePersonName)
	})
	return registerErr
}

// validatePersonName accepts latin letters and spaces with at least one letter.
func validatePersonName(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.TrimSpace(s) != "" && personNameRegex.MatchString(s)
}
