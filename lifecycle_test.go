package datawrapper

import (
	"context"
	"strings"
	"testing"
)

func TestPrepareInsert(t *testing.T) {
	ctx := WithActor(context.Background(), "alice")
	tag := &testTag{Label: "  go  "}

	if err := PrepareInsert(ctx, tag); err != nil {
		t.Fatalf("PrepareInsert() error: %v", err)
	}

	if tag.Code == "" {
		t.Error("Expected a generated code")
	}
	if tag.Label != "go" {
		t.Errorf("Expected BeforeInsert to trim the label, got %q", tag.Label)
	}
	if tag.CreatedBy != "alice" || tag.ChangedBy != "alice" {
		t.Errorf("Expected alice as creator and modifier, got %q/%q", tag.CreatedBy, tag.ChangedBy)
	}
	if tag.CreatedAt.IsZero() || !tag.UpdatedAt.Equal(tag.CreatedAt) {
		t.Errorf("Expected updated_at to equal created_at, got %v/%v", tag.UpdatedAt, tag.CreatedAt)
	}
}

func TestPrepareInsert_KeepsCode(t *testing.T) {
	tag := &testTag{Label: "go"}
	tag.Code = "fixed"
	tag.CreatedBy = "system"

	if err := PrepareInsert(WithActor(context.Background(), "alice"), tag); err != nil {
		t.Fatalf("PrepareInsert() error: %v", err)
	}
	if tag.Code != "fixed" {
		t.Errorf("Expected the preset code to be kept, got %s", tag.Code)
	}
	if tag.CreatedBy != "system" || tag.ChangedBy != "system" {
		t.Errorf("Expected the preset creator to be kept, got %q/%q", tag.CreatedBy, tag.ChangedBy)
	}
}

func TestPrepareUpdate(t *testing.T) {
	ctx := WithActor(context.Background(), "alice")
	tag := &testTag{Label: "go"}
	if err := PrepareInsert(ctx, tag); err != nil {
		t.Fatal(err)
	}
	created := tag.CreatedAt

	if err := PrepareUpdate(ctx, tag, "bob"); err != nil {
		t.Fatalf("PrepareUpdate() error: %v", err)
	}
	if tag.ChangedBy != "bob" {
		t.Errorf("Expected bob as modifier, got %s", tag.ChangedBy)
	}
	if tag.CreatedBy != "alice" {
		t.Errorf("Expected the creator to be kept, got %s", tag.CreatedBy)
	}
	if tag.UpdatedAt.Before(created) {
		t.Error("Expected updated_at to move forward")
	}

	if err := PrepareUpdate(WithActor(context.Background(), "carol"), tag, ""); err != nil {
		t.Fatal(err)
	}
	if tag.ChangedBy != "carol" {
		t.Errorf("Expected the context actor as modifier, got %s", tag.ChangedBy)
	}
}

func TestValidate_StructTags(t *testing.T) {
	err := Validate(context.Background(), &testTag{Label: strings.Repeat("x", 21)})

	vErr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("Expected a ValidationError, got %v", err)
	}
	if vErr.Entity != "testTag" {
		t.Errorf("Expected entity testTag, got %s", vErr.Entity)
	}
	if got := vErr.Field("label"); len(got) != 1 || got[0] != "must be at most 20" {
		t.Errorf("Expected label => must be at most 20, got %v", vErr.Fields)
	}
}

func TestValidate_Required(t *testing.T) {
	err := PrepareInsert(context.Background(), &testTag{Label: "   "})

	vErr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("Expected a ValidationError, got %v", err)
	}
	if got := vErr.Field("label"); len(got) != 1 || got[0] != "value is required" {
		t.Errorf("Expected label => value is required, got %v", vErr.Fields)
	}
}

func TestValidate_CustomValidator(t *testing.T) {
	err := Validate(context.Background(), &testTag{Label: "admin"})

	vErr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("Expected a ValidationError, got %v", err)
	}
	if got := vErr.Field("label"); len(got) != 1 || got[0] != "is reserved" {
		t.Errorf("Expected label => is reserved, got %v", vErr.Fields)
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(context.Background(), &testTag{Label: "go"}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestEntityName(t *testing.T) {
	tests := []struct {
		model any
		want  string
	}{
		{&testTag{}, "testTag"},
		{[]*testTag{}, "testTag"},
		{testCategory{}, "testCategory"},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := entityName(tt.model); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestActorFromContext(t *testing.T) {
	if ActorFromContext(context.Background()) != "" {
		t.Error("Expected no actor in an empty context")
	}
	if got := ActorFromContext(WithActor(context.Background(), "alice")); got != "alice" {
		t.Errorf("Expected alice, got %s", got)
	}
}
