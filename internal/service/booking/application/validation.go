package application

import (
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"

	"staybook/internal/service/booking/domain"
)

// Rule 是插入约束中的一条 CEL 规则，payload 变量是请求体解码出的 map
type Rule struct {
	Field   string // 规则约束的 JSON 字段，Decode 只保留这些键
	Expr    string
	Message string
}

type compiledRule struct {
	Rule
	prg cel.Program
}

// Schema 是一组编译好的 CEL 规则
type Schema struct {
	name   string
	rules  []compiledRule
	fields map[string]struct{}
}

var celEnv = mustEnv()

func mustEnv() *cel.Env {
	env, err := cel.NewEnv(cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		panic(fmt.Sprintf("create cel env: %v", err))
	}
	return env
}

// NewSchema 编译全部规则，任何一条编译失败都会返回错误
func NewSchema(name string, rules ...Rule) (*Schema, error) {
	s := &Schema{name: name, fields: make(map[string]struct{})}
	for _, r := range rules {
		if r.Field != "" {
			s.fields[r.Field] = struct{}{}
		}
		ast, iss := celEnv.Compile(r.Expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Expr, iss.Err())
		}
		prg, err := celEnv.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %q: %w", r.Expr, err)
		}
		s.rules = append(s.rules, compiledRule{Rule: r, prg: prg})
	}
	return s, nil
}

// Validate 对 payload 求值所有规则。求值出错（例如时间格式非法）也算未通过。
func (s *Schema) Validate(payload map[string]interface{}) error {
	var violations []string
	for _, r := range s.rules {
		out, _, err := r.prg.Eval(map[string]interface{}{"payload": payload})
		if err != nil {
			violations = append(violations, r.Message)
			continue
		}
		if ok, isBool := out.Value().(bool); !isBool || !ok {
			violations = append(violations, r.Message)
		}
	}
	if len(violations) > 0 {
		return &domain.ValidationError{Schema: s.name, Violations: violations}
	}
	return nil
}

// Decode 先用 CEL 规则校验原始 JSON，再把通过校验的字段解码到目标结构体。
// encoding/json 按字段名不区分大小写匹配，所以只转交与规则字段完全一致的键，
// 否则 "TITLE" 这类键会绕过校验覆盖 title。
func (s *Schema) Decode(body []byte, dst interface{}) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return &domain.ValidationError{Schema: s.name, Violations: []string{"body must be a JSON object"}}
	}
	if err := s.Validate(payload); err != nil {
		return err
	}
	clean := make(map[string]interface{}, len(s.fields))
	for k, v := range payload {
		if _, ok := s.fields[k]; ok {
			clean[k] = v
		}
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return &domain.ValidationError{Schema: s.name, Violations: []string{err.Error()}}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &domain.ValidationError{Schema: s.name, Violations: []string{err.Error()}}
	}
	return nil
}

func requiredString(field string) Rule {
	return Rule{
		Field:   field,
		Expr:    fmt.Sprintf("has(payload.%[1]s) && type(payload.%[1]s) == string", field),
		Message: field + " is required and must be a string",
	}
}

func optionalString(field string) Rule {
	return Rule{
		Field:   field,
		Expr:    fmt.Sprintf("!has(payload.%[1]s) || type(payload.%[1]s) == string", field),
		Message: field + " must be a string",
	}
}

func requiredInteger(field string) Rule {
	return Rule{
		Field:   field,
		Expr:    fmt.Sprintf("has(payload.%[1]s) && type(payload.%[1]s) == double && double(int(payload.%[1]s)) == payload.%[1]s", field),
		Message: field + " is required and must be an integer",
	}
}

// InsertPostSchema 对应 posts 表的插入约束，id 和 createdAt 由服务端生成
func InsertPostSchema() (*Schema, error) {
	return NewSchema("insertPost",
		requiredString("title"),
		requiredString("description"),
		requiredString("imageUrl"),
		requiredInteger("price"),
		// post_tags.tag 是 varchar(191)
		Rule{
			Field:   "tags",
			Expr:    "!has(payload.tags) || (type(payload.tags) == list && payload.tags.all(t, type(t) == string && size(t) <= 191))",
			Message: "tags must be a list of strings of at most 191 characters",
		},
	)
}

// InsertPromotionSchema 对应 promotions 表的插入约束
func InsertPromotionSchema(enforceDiscountRange bool) (*Schema, error) {
	rules := []Rule{
		requiredString("code"),
		{
			Field:   "code",
			Expr:    "type(payload.code) == string && size(payload.code) > 0 && size(payload.code) <= 50",
			Message: "code must be between 1 and 50 characters",
		},
		requiredString("title"),
		requiredString("description"),
		requiredInteger("discountPercentage"),
		requiredString("imageUrl"),
		{
			Field:   "validUntil",
			Expr:    "has(payload.validUntil) && type(payload.validUntil) == string && timestamp(payload.validUntil) > timestamp('0001-01-01T00:00:00Z')",
			Message: "validUntil is required and must be an RFC 3339 timestamp",
		},
	}
	if enforceDiscountRange {
		rules = append(rules, Rule{
			Field:   "discountPercentage",
			Expr:    "type(payload.discountPercentage) == double && payload.discountPercentage >= 0.0 && payload.discountPercentage <= 100.0",
			Message: "discountPercentage must be between 0 and 100",
		})
	}
	return NewSchema("insertPromotion", rules...)
}

// ProfileUpdateSchema 只允许修改姓名，两者都可省略
func ProfileUpdateSchema() (*Schema, error) {
	return NewSchema("updateProfile",
		optionalString("firstName"),
		optionalString("lastName"),
	)
}
