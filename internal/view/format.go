package view

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/liuyao-cms/internal/model"
	"github.com/hitoshi/liuyao-cms/internal/repository"
	"github.com/hitoshi/liuyao-cms/internal/screen"
)

const (
	truncateRunes  = 24
	dateTimeLayout = "2006-01-02 15:04:05"
)

func helperFuncs() template.FuncMap {
	return template.FuncMap{
		"cell":       FormatCell,
		"isImage":    func(c screen.Column) bool { return c.Format == screen.FormatImage },
		"fieldValue": fieldValue,
		"fieldOn":    fieldOn,
		"isKind":     isKind,
		"rowID":      func(row repository.Row) string { return toString(row["id"]) },
		"money":      formatMoney,
		"count":      func(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) },
		"roleLabel":  func(r model.Role) string { return r.Label() },
		"roleName":   roleName,
	}
}

// FormatCell は一覧のセルに表示する文字列を返す。
func FormatCell(c screen.Column, row repository.Row) string {
	v, ok := row[c.Name]
	if !ok || v == nil {
		return "-"
	}

	switch c.Format {
	case screen.FormatTruncate:
		return truncate(toString(v), truncateRunes)
	case screen.FormatMoney:
		return formatMoney(toFloat(v))
	case screen.FormatDateTime:
		if t, ok := v.(time.Time); ok {
			return t.Local().Format(dateTimeLayout)
		}
	case screen.FormatBool:
		b, _ := v.(bool)
		if c.Labels != nil {
			if label, ok := c.Labels[strconv.FormatBool(b)]; ok {
				return label
			}
		}
		if b {
			return "是"
		}
		return "否"
	case screen.FormatList:
		if list, ok := v.([]string); ok {
			if len(list) == 0 {
				return "-"
			}
			return strings.Join(list, "、")
		}
	case screen.FormatEnum:
		if label, ok := c.Labels[toString(v)]; ok {
			return label
		}
	}
	return toString(v)
}

func formatMoney(v float64) string {
	return fmt.Sprintf("¥%.2f", v)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.Local().Format(dateTimeLayout)
	case []string:
		return strings.Join(x, "、")
	default:
		return fmt.Sprint(x)
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}

// fieldValue はフォーム項目の初期値を返す。rowがnilの場合は既定値を使う。
func fieldValue(f screen.Field, row repository.Row) string {
	if row == nil {
		return screen.FormValue(f, f.Default)
	}
	return screen.FormValue(f, row[f.Name])
}

// fieldOn はチェックボックスの初期状態を返す。
func fieldOn(f screen.Field, row repository.Row) bool {
	var v any = f.Default
	if row != nil {
		v = row[f.Name]
	}
	b, _ := v.(bool)
	return b
}

func isKind(f screen.Field, kind string) bool {
	switch kind {
	case "textarea":
		return f.Kind == screen.KindTextarea || f.Kind == screen.KindJSON ||
			(f.Kind == screen.KindList && f.Separator == "\n")
	case "bool":
		return f.Kind == screen.KindBool
	case "select":
		return f.Kind == screen.KindSelect
	case "number":
		return f.Kind == screen.KindNumber || f.Kind == screen.KindInteger
	case "datetime":
		return f.Kind == screen.KindDatetime
	default:
		return false
	}
}

func roleName(r model.Role) string {
	if r.IsAdmin() {
		return "管理员"
	}
	return "用户"
}
