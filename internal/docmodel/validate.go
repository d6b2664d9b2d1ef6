package docmodel

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/mudyla/mdl/internal/domain/action"
	apperrors "github.com/mudyla/mdl/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	axisNamePattern   = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)
	versionTagPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)
)

// validatorInstance configures and returns the shared validator.v10 instance
// used for normalized-document schema checks (argument types, axis name
// patterns).
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("action_name", func(fl validator.FieldLevel) bool {
			return actionNamePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("axis_name", func(fl validator.FieldLevel) bool {
			return axisNamePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("version_tag", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || versionTagPattern.MatchString(s)
		})
		_ = v.RegisterValidation("arg_int", func(fl validator.FieldLevel) bool {
			_, err := strconv.ParseInt(fl.Field().String(), 10, 64)
			return err == nil
		})
		_ = v.RegisterValidation("arg_bool", func(fl validator.FieldLevel) bool {
			_, err := strconv.ParseBool(fl.Field().String())
			return err == nil
		})

		validateInst = v
	})
	return validateInst
}

// argValueTags maps an argument's declared type onto the validator tag its
// CLI-supplied value must satisfy. `file` and `dir` are validator.v10
// built-ins and check that the path exists with the right shape.
var argValueTags = map[action.ArgumentType]string{
	action.TypeInt:       "arg_int",
	action.TypeBool:      "arg_bool",
	action.TypeFile:      "file",
	action.TypeDirectory: "dir",
}

// ValidateArgumentValue checks a CLI-supplied argument value against its
// declared type before it reaches the expansion evaluator: int and bool
// must parse, file and directory must reference existing paths. Strings
// pass as-is.
func ValidateArgumentValue(t action.ArgumentType, name, value string) error {
	tag, ok := argValueTags[t]
	if !ok {
		return nil
	}
	if err := validatorInstance().Var(value, tag); err != nil {
		return apperrors.NewValidationError(name,
			fmt.Sprintf("value %q is not a valid %s", value, t), err)
	}
	return nil
}

// ValidateDocument performs struct-tag schema validation plus the
// document-ingestion rules enforced at load time: unique axis names,
// unique values per axis, an axis default that is one of its allowed
// values, globally unique action names, and conditions that name declared
// axes. The wire form holds a single default per axis. These are
// ingestion-time document errors, distinct from the later graph-validator
// findings.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return apperrors.NewValidationError("document", "document is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(doc); err != nil {
		return apperrors.NewValidationError("document", fmt.Sprintf("schema validation failed: %v", err), err)
	}

	seenAxes := make(map[string]struct{}, len(doc.Axes))
	for _, axis := range doc.Axes {
		if _, ok := seenAxes[axis.Name]; ok {
			return apperrors.NewValidationError("axes", fmt.Sprintf("duplicate axis %q", axis.Name), nil)
		}
		seenAxes[axis.Name] = struct{}{}

		seenValues := make(map[string]struct{}, len(axis.Values))
		for _, val := range axis.Values {
			if _, ok := seenValues[val]; ok {
				return apperrors.NewValidationError("axes", fmt.Sprintf("axis %q declares duplicate value %q", axis.Name, val), nil)
			}
			seenValues[val] = struct{}{}
		}
		if axis.Default != "" {
			if _, ok := seenValues[axis.Default]; !ok {
				return apperrors.NewValidationError("axes", fmt.Sprintf("axis %q default %q is not an allowed value", axis.Name, axis.Default), nil)
			}
		}
	}

	seenActions := make(map[string]struct{}, len(doc.Actions))
	for _, a := range doc.Actions {
		if _, ok := seenActions[a.Name]; ok {
			return apperrors.NewValidationError("actions", fmt.Sprintf("duplicate action name %q", a.Name), nil)
		}
		seenActions[a.Name] = struct{}{}

		for _, cond := range conditionsOf(a) {
			if cond.Axis != "" {
				if _, ok := seenAxes[cond.Axis]; !ok {
					return apperrors.NewValidationError("actions", fmt.Sprintf("action %q references undeclared axis %q", a.Name, cond.Axis), nil)
				}
			}
		}
	}

	return nil
}

func conditionsOf(a Action) []Condition {
	var out []Condition
	for _, v := range a.Versions {
		out = append(out, v.Conditions...)
	}
	return out
}
