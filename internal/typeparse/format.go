package typeparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/typebind/internal/typesystem"
)

// Format renders t in the syntax accepted by Parse. paramName chooses the
// name written for each placeholder; nil writes the display name.
func Format(t typesystem.Type, paramName func(*typesystem.TParam) string) string {
	var sb strings.Builder
	format(&sb, t, paramName)
	return sb.String()
}

func format(sb *strings.Builder, t typesystem.Type, paramName func(*typesystem.TParam) string) {
	switch typ := t.(type) {
	case nil:
		sb.WriteString(typesystem.Never.String())
	case *typesystem.TParam:
		if paramName != nil {
			sb.WriteString(paramName(typ))
		} else {
			sb.WriteString(typ.Name)
		}
	case *typesystem.TApp:
		format(sb, typ.Constructor, paramName)
		sb.WriteByte('[')
		formatList(sb, typ.Args, ", ", paramName)
		sb.WriteByte(']')
	case *typesystem.TUnion:
		if typ.Joined {
			formatList(sb, typ.Types, " | ", paramName)
			return
		}
		sb.WriteString("Union[")
		formatList(sb, typ.Types, ", ", paramName)
		sb.WriteByte(']')
	case *typesystem.TAnnotated:
		sb.WriteString("Annotated[")
		format(sb, typ.Type, paramName)
		for _, m := range typ.Metadata {
			sb.WriteString(", ")
			sb.WriteString(FormatLiteral(m))
		}
		sb.WriteByte(']')
	default:
		sb.WriteString(t.String())
	}
}

func formatList(sb *strings.Builder, ts []typesystem.Type, sep string, paramName func(*typesystem.TParam) string) {
	for i, t := range ts {
		if i > 0 {
			sb.WriteString(sep)
		}
		format(sb, t, paramName)
	}
}

// FormatLiteral renders a metadata value as a literal Parse reads back.
func FormatLiteral(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// formatFloat keeps a decimal point so the value reads back as a float.
func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}
