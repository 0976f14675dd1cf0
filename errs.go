package exprkit

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnhandled is returned by a handler to decline a symbol, passing
// resolution on to the next handler source in the chain.
var ErrUnhandled = errors.New("symbol not handled")

// ExprError is an error arising from expression text or its evaluation.
// Every error produced by this package implements ExprError.
type ExprError interface {
	error
	exprError()
}

// UnexpectedTokenError indicates malformed syntax: an unknown character, an
// operator in an impossible position, or trailing input after a complete
// expression.
type UnexpectedTokenError struct {
	// Token is the offending token text.
	Token string
}

func (err *UnexpectedTokenError) Error() string {
	return "unexpected token " + strconv.Quote(err.Token)
}

// MissingDelimiterError indicates an unbalanced bracket or an unterminated
// quoted literal.
type MissingDelimiterError struct {
	// Delim is the delimiter that was expected but never found.
	Delim string
}

func (err *MissingDelimiterError) Error() string {
	return "missing delimiter " + strconv.Quote(err.Delim)
}

// UndefinedSymbolError indicates that no handler source recognized a symbol.
type UndefinedSymbolError struct {
	Sym Symbol
}

func (err *UndefinedSymbolError) Error() string {
	return "undefined symbol: " + err.Sym.String()
}

// ArityMismatchError indicates a call of a known function name with the
// wrong number of arguments. Want lists the arities declared for the name.
type ArityMismatchError struct {
	Sym  Symbol
	Want []int
}

func (err *ArityMismatchError) Error() string {
	s := "wrong number of arguments for " + err.Sym.Name + "(): have " + strconv.Itoa(err.Sym.Arity)
	for i, n := range err.Want {
		switch i {
		case 0:
			s += ", want " + strconv.Itoa(n)
		default:
			s += " or " + strconv.Itoa(n)
		}
	}
	return s
}

// TypeMismatchError indicates that a handler received arguments of
// incompatible runtime types.
type TypeMismatchError struct {
	Sym  Symbol
	Args []any
}

func (err *TypeMismatchError) Error() string {
	s := "type mismatch for " + err.Sym.String() + ":"
	for i, a := range err.Args {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf(" %T", a)
	}
	return s
}

// ResultTypeMismatchError indicates that an evaluation result could not be
// converted to the type the caller asked for.
type ResultTypeMismatchError struct {
	// Want names the requested type.
	Want string
	// Value is the result that could not be converted.
	Value any
}

func (err *ResultTypeMismatchError) Error() string {
	return fmt.Sprintf("result type mismatch: cannot convert %T to %s", err.Value, err.Want)
}

// IllegalSubscriptError indicates a subscript of a value that is not a
// container, or a subscript of an unsupported type.
type IllegalSubscriptError struct {
	Sym       Symbol
	Subscript any
}

func (err *IllegalSubscriptError) Error() string {
	return fmt.Sprintf("illegal subscript %v for %s", err.Subscript, err.Sym.String())
}

// ArrayBoundsError indicates a subscript outside the bounds of a container.
type ArrayBoundsError struct {
	Sym   Symbol
	Index int
	Len   int
}

func (err *ArrayBoundsError) Error() string {
	return "index " + strconv.Itoa(err.Index) + " out of bounds for " + err.Sym.Name + " (length " + strconv.Itoa(err.Len) + ")"
}

// MessageError carries a domain error raised by a caller-supplied handler.
type MessageError struct {
	Text string
}

func (err *MessageError) Error() string {
	return err.Text
}

func (*UnexpectedTokenError) exprError()    {}
func (*MissingDelimiterError) exprError()   {}
func (*UndefinedSymbolError) exprError()    {}
func (*ArityMismatchError) exprError()      {}
func (*TypeMismatchError) exprError()       {}
func (*ResultTypeMismatchError) exprError() {}
func (*IllegalSubscriptError) exprError()   {}
func (*ArrayBoundsError) exprError()        {}
func (*MessageError) exprError()            {}

var (
	_ ExprError = (*UnexpectedTokenError)(nil)
	_ ExprError = (*MissingDelimiterError)(nil)
	_ ExprError = (*UndefinedSymbolError)(nil)
	_ ExprError = (*ArityMismatchError)(nil)
	_ ExprError = (*TypeMismatchError)(nil)
	_ ExprError = (*ResultTypeMismatchError)(nil)
	_ ExprError = (*IllegalSubscriptError)(nil)
	_ ExprError = (*ArrayBoundsError)(nil)
	_ ExprError = (*MessageError)(nil)
)
