package usecase

import (
	"testing"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
)

func TestEvaluateConditionOperators(t *testing.T) {
	cases := []struct {
		name     string
		value    any
		defined  bool
		operator domain.ConditionOperator
		expected any
		want     bool
	}{
		{"equals match", "customer", true, domain.OpEquals, "customer", true},
		{"equals mismatch", "provider", true, domain.OpEquals, "customer", false},
		{"equals numeric cross type", 5, true, domain.OpEquals, float64(5), true},
		{"equals undefined fails", nil, false, domain.OpEquals, "customer", false},
		{"not_equals mismatch", "provider", true, domain.OpNotEquals, "customer", true},
		{"not_equals match", "customer", true, domain.OpNotEquals, "customer", false},
		{"not_equals undefined holds", nil, false, domain.OpNotEquals, "customer", true},
		{"in member", "editor", true, domain.OpIn, []any{"viewer", "editor"}, true},
		{"in non member", "admin", true, domain.OpIn, []any{"viewer", "editor"}, false},
		{"in numeric member", 3, true, domain.OpIn, []any{float64(1), float64(3)}, true},
		{"in undefined fails", nil, false, domain.OpIn, []any{"viewer"}, false},
		{"in non list fails", "viewer", true, domain.OpIn, "viewer", false},
		{"not_in non member", "admin", true, domain.OpNotIn, []any{"viewer", "editor"}, true},
		{"not_in member", "editor", true, domain.OpNotIn, []any{"viewer", "editor"}, false},
		{"not_in undefined holds", nil, false, domain.OpNotIn, []any{"viewer"}, true},
		{"contains match", "north-east", true, domain.OpContains, "east", true},
		{"contains mismatch", "north-west", true, domain.OpContains, "east", false},
		{"contains undefined fails", nil, false, domain.OpContains, "east", false},
		{"contains non string fails", 42, true, domain.OpContains, "4", false},
		{"starts_with match", "booking-123", true, domain.OpStartsWith, "booking-", true},
		{"starts_with mismatch", "quote-123", true, domain.OpStartsWith, "booking-", false},
		{"starts_with undefined fails", nil, false, domain.OpStartsWith, "booking-", false},
		{"ends_with match", "user@example.com", true, domain.OpEndsWith, "@example.com", true},
		{"ends_with mismatch", "user@other.com", true, domain.OpEndsWith, "@example.com", false},
		{"ends_with undefined fails", nil, false, domain.OpEndsWith, "@example.com", false},
		{"unknown operator fails closed", "anything", true, domain.ConditionOperator("matches_regex"), "any", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := evaluateCondition(tc.value, tc.defined, tc.operator, tc.expected)
			if got != tc.want {
				t.Fatalf("evaluateCondition(%v, %v, %q, %v) = %v, want %v",
					tc.value, tc.defined, tc.operator, tc.expected, got, tc.want)
			}
		})
	}
}

func TestConditionsHoldAndCombined(t *testing.T) {
	accessCtx := domain.AccessContext{
		domain.ContextUserID:   "user-1",
		domain.ContextUserType: "provider",
		domain.ContextResourceData: map[string]any{
			"status": "draft",
		},
	}

	conditions := []domain.Condition{
		{Field: domain.ContextUserType, Operator: domain.OpEquals, Value: "provider"},
		{Field: "resource_data.status", Operator: domain.OpIn, Value: []any{"draft", "pending"}},
	}
	if !conditionsHold(conditions, accessCtx) {
		t.Fatal("expected all conditions to hold")
	}

	conditions = append(conditions, domain.Condition{
		Field: domain.ContextUserID, Operator: domain.OpEquals, Value: "someone-else",
	})
	if conditionsHold(conditions, accessCtx) {
		t.Fatal("expected combined conditions to fail when one fails")
	}

	if !conditionsHold(nil, accessCtx) {
		t.Fatal("expected empty condition list to hold")
	}
}

func TestAccessContextLookupDotPath(t *testing.T) {
	accessCtx := domain.AccessContext{
		domain.ContextResourceData: map[string]any{
			"booking": map[string]any{
				"status": "confirmed",
			},
		},
	}

	value, defined := accessCtx.Lookup("resource_data.booking.status")
	if !defined {
		t.Fatal("expected nested path to be defined")
	}
	if value != "confirmed" {
		t.Fatalf("Lookup returned %v, want confirmed", value)
	}

	if _, defined := accessCtx.Lookup("resource_data.booking.owner"); defined {
		t.Fatal("expected missing leaf to be undefined")
	}
	if _, defined := accessCtx.Lookup("resource_data.booking.status.deeper"); defined {
		t.Fatal("expected traversal through a scalar to be undefined")
	}
}
