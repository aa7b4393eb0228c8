package handlers

import "testing"

func TestCoerceFormValueTypes(t *testing.T) {
	if got := coerceFormValue("42"); got != int64(42) {
		t.Fatalf("expected int64 42, got %T %v", got, got)
	}
	if got := coerceFormValue("19.99"); got != 19.99 {
		t.Fatalf("expected float 19.99, got %T %v", got, got)
	}
	if got := coerceFormValue("true"); got != true {
		t.Fatalf("expected bool true, got %T %v", got, got)
	}
	if got := coerceFormValue(" Blue Shirt "); got != "Blue Shirt" {
		t.Fatalf("expected trimmed string, got %q", got)
	}
}

func TestCoerceFormValueKeepsHexIdsAsStrings(t *testing.T) {
	// Reference ids must survive untouched for the ObjectID cast hooks.
	hex := "64a0f0c2b5d1a2c3d4e5f601"
	if got := coerceFormValue(hex); got != hex {
		t.Fatalf("expected hex id kept as string, got %T %v", got, got)
	}
}
