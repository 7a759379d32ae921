package datawrapper

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// BeforeInsertHook is implemented by entities needing custom preparation
// before they are inserted
type BeforeInsertHook interface {
	BeforeInsert(ctx context.Context) error
}

// BeforeUpdateHook is implemented by entities needing custom preparation
// before they are updated
type BeforeUpdateHook interface {
	BeforeUpdate(ctx context.Context) error
}

// Validator is implemented by entities with checks beyond struct tags.
// Returning a *ValidationError merges its fields into the reported error.
type Validator interface {
	Validate(ctx context.Context) error
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)
	})
	return validate
}

// fieldName is the key used for a struct field in validation errors: the
// json name, then the bun column name, then the Go name.
func fieldName(f reflect.StructField) string {
	if name := tagName(f.Tag.Get("json")); name != "" {
		if name == "-" {
			return f.Name
		}
		return name
	}
	if name := tagName(f.Tag.Get("bun")); name != "" && name != "-" && !strings.Contains(name, ":") {
		return name
	}
	return f.Name
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}

// PrepareInsert runs the pre-insert pipeline on model: code generation,
// audit column initialisation, custom hooks and validation.
func PrepareInsert(ctx context.Context, model any) error {
	if g, ok := model.(CodeGenerator); ok {
		g.EnsureCode()
	}
	if a, ok := model.(Audited); ok {
		a.Base().initInsert(time.Now(), ActorFromContext(ctx))
	}
	if h, ok := model.(BeforeInsertHook); ok {
		if err := h.BeforeInsert(ctx); err != nil {
			return err
		}
	}
	return Validate(ctx, model)
}

// PrepareUpdate runs the pre-update pipeline on model. changedBy falls back
// to the actor stored in ctx.
func PrepareUpdate(ctx context.Context, model any, changedBy string) error {
	if changedBy == "" {
		changedBy = ActorFromContext(ctx)
	}
	if a, ok := model.(Audited); ok {
		a.Base().touch(time.Now(), changedBy)
	}
	if h, ok := model.(BeforeUpdateHook); ok {
		if err := h.BeforeUpdate(ctx); err != nil {
			return err
		}
	}
	return Validate(ctx, model)
}

// Validate runs the struct tag validation and the model's own Validate
// method, reporting every failure in one ValidationError keyed by field.
func Validate(ctx context.Context, model any) error {
	vErr := NewValidationError(entityName(model))

	if err := structValidator().StructCtx(ctx, model); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("datawrapper: validate %s: %w", vErr.Entity, err)
		}
		for _, fe := range fieldErrs {
			vErr.Add(fe.Field(), describe(fe))
		}
	}

	if v, ok := model.(Validator); ok {
		if err := v.Validate(ctx); err != nil {
			custom, ok := AsValidationError(err)
			if !ok {
				return err
			}
			for field, msgs := range custom.Fields {
				for _, msg := range msgs {
					vErr.Add(field, msg)
				}
			}
		}
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "value is required"
	case "email":
		return "must be a valid email address"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	if fe.Param() != "" {
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	}
	return "failed " + fe.Tag()
}

// entityName returns the Go type name of model
func entityName(model any) string {
	t := reflect.TypeOf(model)
	for t != nil && (t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}
