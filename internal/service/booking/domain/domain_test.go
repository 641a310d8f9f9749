package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPromotion_ExpiredFlag(t *testing.T) {
	tests := []struct {
		name       string
		validUntil time.Time
		want       bool
	}{
		{"future", time.Now().Add(24 * time.Hour), false},
		{"past", time.Now().Add(-24 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Promotion{ID: "p", Code: "X", ValidUntil: tt.validUntil}
			if got := p.IsExpired(time.Now()); got != tt.want {
				t.Errorf("IsExpired = %v, want %v", got, tt.want)
			}

			data, err := json.Marshal(&p)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var out map[string]interface{}
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if out["expired"] != tt.want {
				t.Errorf("expired = %v, want %v (json: %s)", out["expired"], tt.want, data)
			}
			if out["code"] != "X" || out["validUntil"] == nil {
				t.Errorf("promotion fields missing from json: %s", data)
			}
		})
	}
}

func TestPromotion_MatchesCode(t *testing.T) {
	p := Promotion{Code: "SUMMER2024"}
	for fragment, want := range map[string]bool{
		"summer": true,
		"MER20":  true,
		"2024":   true,
		"winter": false,
	} {
		if got := p.MatchesCode(fragment); got != want {
			t.Errorf("MatchesCode(%q) = %v, want %v", fragment, got, want)
		}
	}
}

func TestInsertPost_NormalizedTags(t *testing.T) {
	in := InsertPost{}
	tags := in.NormalizedTags()
	if tags == nil || len(tags) != 0 {
		t.Fatalf("nil tags should normalize to an empty list, got %#v", tags)
	}

	in.Tags = []string{"a", "b"}
	tags = in.NormalizedTags()
	tags[0] = "changed"
	if in.Tags[0] != "a" {
		t.Error("NormalizedTags must return a copy")
	}

	empty := &InsertPost{}
	data, _ := json.Marshal(Post{Tags: empty.NormalizedTags()})
	var out map[string]interface{}
	_ = json.Unmarshal(data, &out)
	if fmt.Sprint(out["tags"]) != "[]" {
		t.Errorf("tags should serialize as [], got %v", out["tags"])
	}
}

func TestPost_HasTagIsCaseSensitive(t *testing.T) {
	p := Post{Tags: []string{"beach", "family"}}
	if !p.HasTag("beach") {
		t.Error("expected beach")
	}
	if p.HasTag("Beach") || p.HasTag("bea") {
		t.Error("HasTag must match whole tags exactly")
	}
}

func TestValidationError_Unwrap(t *testing.T) {
	var err error = &ValidationError{Schema: "insertPost", Violations: []string{"title is required", "price must be an integer"}}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("ValidationError should match ErrValidation")
	}
	if got := err.Error(); got != "insertPost: title is required; price must be an integer" {
		t.Errorf("Error() = %q", got)
	}
}

func TestSession_IsExpired(t *testing.T) {
	now := time.Now()
	if (&Session{Expire: now.Add(time.Minute)}).IsExpired(now) {
		t.Error("future expiry reported as expired")
	}
	if !(&Session{Expire: now}).IsExpired(now) {
		t.Error("a session expiring now is no longer valid")
	}
}
