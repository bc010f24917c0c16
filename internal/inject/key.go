package inject

import (
	"sort"
	"strings"

	"github.com/funvibe/typebind/internal/typeparse"
	"github.com/funvibe/typebind/internal/typesystem"
)

// Key returns the canonical lookup key of t. Equal types have equal keys:
// union members are sorted and both union forms render alike.
func Key(t typesystem.Type) string {
	var sb strings.Builder
	writeKey(&sb, t)
	return sb.String()
}

func writeKey(sb *strings.Builder, t typesystem.Type) {
	switch typ := t.(type) {
	case nil:
		sb.WriteString(typesystem.Never.String())
	case *typesystem.TParam:
		sb.WriteString(typ.QualifiedName())
	case *typesystem.TApp:
		writeKey(sb, typ.Constructor)
		sb.WriteByte('[')
		for i, arg := range typ.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeKey(sb, arg)
		}
		sb.WriteByte(']')
	case *typesystem.TUnion:
		keys := make([]string, len(typ.Types))
		for i, m := range typ.Types {
			keys[i] = Key(m)
		}
		sort.Strings(keys)
		sb.WriteString("Union[")
		sb.WriteString(strings.Join(keys, ", "))
		sb.WriteByte(']')
	case *typesystem.TAnnotated:
		sb.WriteString("Annotated[")
		writeKey(sb, typ.Type)
		for _, m := range typ.Metadata {
			sb.WriteString(", ")
			sb.WriteString(typeparse.FormatLiteral(m))
		}
		sb.WriteByte(']')
	default:
		sb.WriteString(t.String())
	}
}

// classOf splits a registrable type into its class and type arguments.
func classOf(t typesystem.Type) (*typesystem.TCon, []typesystem.Type, bool) {
	switch typ := t.(type) {
	case *typesystem.TCon:
		return typ, nil, true
	case *typesystem.TApp:
		con, ok := typ.Constructor.(*typesystem.TCon)
		return con, typ.Args, ok
	default:
		return nil, nil, false
	}
}
