// Package validation validates node configuration and genesis-group
// input at the engine's boundary (spec §7 InputValidation).
package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ruvnet/parsec/internal/config"
	parsecerrors "github.com/ruvnet/parsec/internal/errors"
)

// Validator wraps the go-playground validator instance used to check
// config and genesis-group shapes before they reach the engine.
type Validator struct {
	validator *validator.Validate
}

// NewValidator builds a Validator with field names reported using
// json tags, matching the error shapes logged elsewhere in the node.
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator: v}
}

// ValidateConfig checks that cfg is well-formed before it is used to
// build an Engine.
func (v *Validator) ValidateConfig(cfg *config.Config) error {
	if err := v.validator.Struct(cfg); err != nil {
		return v.wrap(err)
	}
	if len(cfg.Node.GenesisPeers) == 0 {
		return parsecerrors.New(parsecerrors.InvalidMessage, "genesis peer list must not be empty")
	}
	seen := make(map[string]bool, len(cfg.Node.GenesisPeers))
	for _, p := range cfg.Node.GenesisPeers {
		if seen[p] {
			return parsecerrors.New(parsecerrors.InvalidMessage, fmt.Sprintf("duplicate genesis peer %q", p))
		}
		seen[p] = true
	}
	return nil
}

func (v *Validator) wrap(err error) error {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return parsecerrors.Wrap(parsecerrors.InvalidMessage, "validation failed", err)
	}
	e := parsecerrors.New(parsecerrors.InvalidMessage, "validation failed")
	for _, fe := range ve {
		e = e.WithField(fe.Field(), fe.Tag())
	}
	return e
}
