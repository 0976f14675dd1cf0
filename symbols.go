package exprkit

import "strconv"

// Symbol identifies a name or operator that an expression looks up a handler
// for. Function symbols include their arity, so two functions sharing a name
// but taking different argument counts are distinct symbols.
type Symbol struct {
	Kind SymbolKind
	Name string
	// Arity is the argument count for function symbols and zero otherwise.
	Arity int
}

// SymbolKind is the role a symbol plays in an expression.
type SymbolKind int8

const (
	SymVariable SymbolKind = iota
	SymPrefix
	SymInfix
	SymPostfix
	SymFunction
	SymArray
)

// Variable returns the symbol for a named constant or variable reference.
func Variable(name string) Symbol {
	return Symbol{Kind: SymVariable, Name: name}
}

// Prefix returns the symbol for a unary operator preceding its operand.
func Prefix(op string) Symbol {
	return Symbol{Kind: SymPrefix, Name: op}
}

// Infix returns the symbol for a binary operator. The ternary operator ?: is
// also an infix symbol; it receives three arguments.
func Infix(op string) Symbol {
	return Symbol{Kind: SymInfix, Name: op}
}

// Postfix returns the symbol for a unary operator following its operand.
// Postfix operators may be alphanumeric, e.g. unit suffixes like "5km".
func Postfix(op string) Symbol {
	return Symbol{Kind: SymPostfix, Name: op}
}

// Function returns the symbol for a call of name with the given number of
// arguments.
func Function(name string, arity int) Symbol {
	return Symbol{Kind: SymFunction, Name: name, Arity: arity}
}

// Array returns the symbol for a subscript of name, as in "name[index]".
func Array(name string) Symbol {
	return Symbol{Kind: SymArray, Name: name}
}

func (s Symbol) String() string {
	switch s.Kind {
	case SymVariable:
		return s.Name
	case SymPrefix:
		return "prefix operator " + s.Name
	case SymInfix:
		return "infix operator " + s.Name
	case SymPostfix:
		return "postfix operator " + s.Name
	case SymFunction:
		return s.Name + "() with " + strconv.Itoa(s.Arity) + " arguments"
	case SymArray:
		return s.Name + "[]"
	default:
		return "invalid symbol " + s.Name
	}
}
