package screen

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/liuyao-cms/internal/repository"
)

// DatetimeLayout はdatetime-local入力の書式。
const DatetimeLayout = "2006-01-02T15:04"

// decoder はフォーム値を列の値に変換し検証する。
type decoder struct {
	validate *validator.Validate
	location *time.Location
}

func newDecoder() *decoder {
	return &decoder{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		location: time.Local,
	}
}

// decode はフォームの値を画面の項目定義に従って変換する。
// 変換・検証に失敗した項目は問題の一覧として返す。
func (d *decoder) decode(s *Screen, form url.Values, creating bool) (repository.Row, []string) {
	values := repository.Row{}
	var problems []string

	for _, f := range s.Fields {
		if f.CreateOnly && !creating {
			continue
		}

		raw := strings.TrimSpace(form.Get(f.Name))
		if f.Kind == KindTextarea || f.Kind == KindJSON {
			raw = strings.TrimRight(form.Get(f.Name), " \t\r\n")
		}

		v, err := d.coerce(f, raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s%s", f.Label, err.Error()))
			continue
		}
		if v == nil && f.Default != nil {
			v = f.Default
		}
		if msg := d.check(f, v); msg != "" {
			problems = append(problems, f.Label+msg)
			continue
		}
		if v == nil && f.OmitEmpty {
			continue
		}
		values[f.Name] = v
	}

	if len(problems) == 0 && s.Validate != nil {
		problems = append(problems, s.Validate(values)...)
	}
	return values, problems
}

// coerce は入力文字列を項目の型に変換する。空入力はnilを返す（KindBoolとKindListを除く）。
func (d *decoder) coerce(f Field, raw string) (any, error) {
	switch f.Kind {
	case KindBool:
		switch strings.ToLower(raw) {
		case "on", "true", "1", "yes":
			return true, nil
		}
		return false, nil

	case KindList:
		sep := f.Separator
		if sep == "" {
			sep = "、"
		}
		list := []string{}
		for _, item := range strings.Split(raw, sep) {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
		return list, nil
	}

	if raw == "" {
		return nil, nil
	}

	switch f.Kind {
	case KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.New("必须是数字")
		}
		return n, nil

	case KindInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.New("必须是整数")
		}
		return n, nil

	case KindSelect:
		for _, o := range f.Options {
			if o.Value == raw {
				return raw, nil
			}
		}
		return nil, errors.New("的值无效")

	case KindDatetime:
		t, err := time.ParseInLocation(DatetimeLayout, raw, d.location)
		if err != nil {
			return nil, errors.New("的时间格式无效")
		}
		return t, nil

	case KindJSON:
		if !json.Valid([]byte(raw)) {
			return nil, errors.New("必须是有效的JSON")
		}
		return raw, nil

	default:
		return raw, nil
	}
}

// check はvalidatorのタグで値を検証し、問題があれば表示用メッセージを返す。
// requiredは値の有無だけで判定し、数値の0や偽も入力ありとみなす。
func (d *decoder) check(f Field, v any) string {
	if f.Rules == "" {
		return ""
	}
	required := hasRule(f.Rules, "required")
	if v == nil {
		if required {
			return "不能为空"
		}
		return ""
	}
	if list, ok := v.([]string); ok && required && len(list) == 0 {
		return "不能为空"
	}

	rules := withoutRule(f.Rules, "required")
	if rules == "" {
		return ""
	}
	err := d.validate.Var(v, rules)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return ruleMessage(verrs[0])
	}
	return "无效"
}

func withoutRule(rules, name string) string {
	kept := make([]string, 0, 4)
	for _, r := range strings.Split(rules, ",") {
		if r != name && r != "" {
			kept = append(kept, r)
		}
	}
	return strings.Join(kept, ",")
}

func hasRule(rules, name string) bool {
	for _, r := range strings.Split(rules, ",") {
		if r == name {
			return true
		}
	}
	return false
}

// ruleMessage は検証エラーを表示用の文に変換する。
func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "max", "lte":
		if _, ok := fe.Value().(string); ok {
			return fmt.Sprintf("不能超过%s个字符", fe.Param())
		}
		return fmt.Sprintf("不能大于%s", fe.Param())
	case "min", "gte":
		if _, ok := fe.Value().(string); ok {
			return fmt.Sprintf("不能少于%s个字符", fe.Param())
		}
		return fmt.Sprintf("不能小于%s", fe.Param())
	case "url", "http_url":
		return "必须是有效的URL"
	case "uuid", "uuid4":
		return "必须是有效的UUID"
	case "email":
		return "必须是有效的邮箱地址"
	case "oneof":
		return fmt.Sprintf("必须是以下之一: %s", fe.Param())
	case "alphanum", "lowercase", "excludesall":
		return "包含无效字符"
	default:
		return "无效"
	}
}

// FormValue は行の値をフォームの初期値の文字列に変換する。
func FormValue(f Field, v any) string {
	if v == nil {
		return ""
	}
	switch f.Kind {
	case KindList:
		sep := f.Separator
		if sep == "" {
			sep = "、"
		}
		if list, ok := v.([]string); ok {
			return strings.Join(list, sep)
		}
	case KindDatetime:
		if t, ok := v.(time.Time); ok {
			return t.Local().Format(DatetimeLayout)
		}
	case KindBool:
		if b, ok := v.(bool); ok && b {
			return "true"
		}
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.Local().Format(DatetimeLayout)
	default:
		return fmt.Sprint(x)
	}
}
