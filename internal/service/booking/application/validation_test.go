package application

import (
	"errors"
	"strings"
	"testing"

	"staybook/internal/service/booking/domain"
)

func mustSchema(t *testing.T) func(*Schema, error) *Schema {
	t.Helper()
	return func(s *Schema, err error) *Schema {
		t.Helper()
		if err != nil {
			t.Fatalf("compile schema: %v", err)
		}
		return s
	}
}

func TestInsertPostSchema(t *testing.T) {
	schema := mustSchema(t)(InsertPostSchema())

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"title":"Deluxe","description":"Nice","imageUrl":"/a.png","price":150,"tags":["king bed"]}`, false},
		{"tags omitted", `{"title":"Deluxe","description":"Nice","imageUrl":"/a.png","price":150}`, false},
		{"empty tags", `{"title":"Deluxe","description":"Nice","imageUrl":"/a.png","price":150,"tags":[]}`, false},
		{"missing title", `{"description":"Nice","imageUrl":"/a.png","price":150}`, true},
		{"fractional price", `{"title":"Deluxe","description":"Nice","imageUrl":"/a.png","price":150.5}`, true},
		{"price as string", `{"title":"Deluxe","description":"Nice","imageUrl":"/a.png","price":"150"}`, true},
		{"non-string tag", `{"title":"Deluxe","description":"Nice","imageUrl":"/a.png","price":150,"tags":[1]}`, true},
		{"tag at column limit", `{"title":"Deluxe","description":"Nice","imageUrl":"/a.png","price":150,"tags":["` + strings.Repeat("x", 191) + `"]}`, false},
		{"tag too long", `{"title":"Deluxe","description":"Nice","imageUrl":"/a.png","price":150,"tags":["` + strings.Repeat("x", 192) + `"]}`, true},
		{"tags not a list", `{"title":"Deluxe","description":"Nice","imageUrl":"/a.png","price":150,"tags":"beach"}`, true},
		{"not an object", `[1,2,3]`, true},
		{"null body", `null`, true},
		{"malformed json", `{"title":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var post domain.InsertPost
			err := schema.Decode([]byte(tt.body), &post)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error should wrap ErrValidation: %v", err)
			}
			if err == nil && (post.Title != "Deluxe" || post.Price != 150) {
				t.Errorf("decoded %+v", post)
			}
		})
	}
}

func TestSchema_DecodeIgnoresCaseVariantKeys(t *testing.T) {
	schema := mustSchema(t)(InsertPostSchema())
	body := `{"title":"Deluxe","description":"Nice","imageUrl":"/a.png","price":150,` +
		`"TITLE":"Overridden","Price":1.5,"Tags":["` + strings.Repeat("x", 300) + `"]}`

	var post domain.InsertPost
	if err := schema.Decode([]byte(body), &post); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if post.Title != "Deluxe" || post.Price != 150 {
		t.Errorf("case-variant keys leaked into %+v", post)
	}
	if len(post.Tags) != 0 {
		t.Errorf("unvalidated Tags key decoded into %q", post.Tags)
	}

	promo := mustSchema(t)(InsertPromotionSchema(true))
	var p domain.InsertPromotion
	body = `{"code":"OK","title":"t","description":"d","imageUrl":"/p.png","discountPercentage":10,` +
		`"validUntil":"2025-08-31T23:59:59Z","DiscountPercentage":500}`
	if err := promo.Decode([]byte(body), &p); err != nil {
		t.Fatalf("Decode promotion: %v", err)
	}
	if p.DiscountPercentage != 10 || p.ValidUntil.IsZero() {
		t.Errorf("decoded %+v", p)
	}
}

func TestInsertPostSchema_ReportsEveryViolation(t *testing.T) {
	schema := mustSchema(t)(InsertPostSchema())
	err := schema.Decode([]byte(`{"price":1.5}`), &domain.InsertPost{})

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	joined := strings.Join(verr.Violations, "\n")
	for _, field := range []string{"title", "description", "imageUrl", "price"} {
		if !strings.Contains(joined, field) {
			t.Errorf("missing violation for %s in %q", field, joined)
		}
	}
}

func TestInsertPromotionSchema(t *testing.T) {
	lenient := mustSchema(t)(InsertPromotionSchema(false))
	strict := mustSchema(t)(InsertPromotionSchema(true))

	const base = `"title":"Summer","description":"Sale","imageUrl":"/p.png","validUntil":"2025-08-31T23:59:59Z"`
	tests := []struct {
		name       string
		body       string
		lenientErr bool
		strictErr  bool
	}{
		{"valid", `{"code":"SUMMER2024","discountPercentage":25,` + base + `}`, false, false},
		{"discount over 100", `{"code":"BIG","discountPercentage":150,` + base + `}`, false, true},
		{"negative discount", `{"code":"NEG","discountPercentage":-5,` + base + `}`, false, true},
		{"empty code", `{"code":"","discountPercentage":10,` + base + `}`, true, true},
		{"code too long", `{"code":"` + strings.Repeat("X", 51) + `","discountPercentage":10,` + base + `}`, true, true},
		{"missing code", `{"discountPercentage":10,` + base + `}`, true, true},
		{"bad validUntil", `{"code":"X","discountPercentage":10,"title":"t","description":"d","imageUrl":"/p.png","validUntil":"next week"}`, true, true},
		{"missing validUntil", `{"code":"X","discountPercentage":10,"title":"t","description":"d","imageUrl":"/p.png"}`, true, true},
		{"fractional discount", `{"code":"X","discountPercentage":10.5,` + base + `}`, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p domain.InsertPromotion
			if err := lenient.Decode([]byte(tt.body), &p); (err != nil) != tt.lenientErr {
				t.Errorf("lenient Decode error = %v, wantErr %v", err, tt.lenientErr)
			}
			if err := strict.Decode([]byte(tt.body), &p); (err != nil) != tt.strictErr {
				t.Errorf("strict Decode error = %v, wantErr %v", err, tt.strictErr)
			}
		})
	}
}

func TestProfileUpdateSchema(t *testing.T) {
	schema := mustSchema(t)(ProfileUpdateSchema())

	var update domain.ProfileUpdate
	if err := schema.Decode([]byte(`{"firstName":"Mai"}`), &update); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if update.FirstName == nil || *update.FirstName != "Mai" || update.LastName != nil {
		t.Errorf("decoded %+v", update)
	}

	if err := schema.Decode([]byte(`{"firstName":42}`), &update); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("non-string name: got %v, want ErrValidation", err)
	}
}

func TestNewSchema_RejectsBadExpression(t *testing.T) {
	if _, err := NewSchema("broken", Rule{Expr: "payload.title ==", Message: "x"}); err == nil {
		t.Fatal("expected a compile error")
	}
}
