// Package exprkit parses and evaluates a small infix/prefix/postfix
// expression language against caller-supplied symbol handlers.
//
// The core is numeric: an Expr evaluates to a float64, with handlers bound
// once at construction and constant subtrees folded away. Construction never
// fails; malformed input reports its error on the first call to Evaluate, so
// expressions can be built declaratively and checked later.
//
// AnyExpr layers arbitrary values (strings, booleans, collections, nil,
// opaque objects) over the same numeric pipeline by boxing non-numeric
// values behind tagged float64 handles. Handlers registered at that layer
// see plain Go values.
package exprkit
