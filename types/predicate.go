/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"golang.org/x/text/cases"
)

// KindResolver reports the attribute kind of a key of one entity.
type KindResolver interface {
	AttributeKind(key string) (AttributeKind, bool)
}

// Predicate is a boolean filter over attribute keys and literal operands.
//
// The same predicate is evaluated in two places: rendered as a SQL WHERE
// fragment for committed rows, and matched in memory against pending
// records. Both follow two-valued logic: a comparison against a missing
// (null) attribute is false, and Not only inverts a true/false outcome.
type Predicate interface {
	// Match evaluates the predicate against an in-memory record.
	Match(g Getter) bool
	// Resolve validates keys against r and normalizes operands to the
	// attribute kinds.
	Resolve(r KindResolver) (Predicate, error)
	// AppendSQL renders the predicate with bun placeholders.
	AppendSQL(r KindResolver) (string, []interface{}, error)
	String() string
}

type compareOp int

const (
	opEq compareOp = iota
	opNe
	opLt
	opLe
	opGt
	opGe
)

var compareSQL = map[compareOp]string{opEq: "=", opNe: "<>", opLt: "<", opLe: "<=", opGt: ">", opGe: ">="}

type comparison struct {
	key   string
	op    compareOp
	value interface{}
}

// Eq matches records whose key equals value. A nil value matches null.
func Eq(key string, value interface{}) Predicate {
	return &comparison{key, opEq, normalizeOperand(value)}
}

// Ne matches records whose key is set and differs from value. A nil value
// matches every non-null attribute.
func Ne(key string, value interface{}) Predicate {
	return &comparison{key, opNe, normalizeOperand(value)}
}

func Lt(key string, value interface{}) Predicate {
	return &comparison{key, opLt, normalizeOperand(value)}
}

func Le(key string, value interface{}) Predicate {
	return &comparison{key, opLe, normalizeOperand(value)}
}

func Gt(key string, value interface{}) Predicate {
	return &comparison{key, opGt, normalizeOperand(value)}
}

func Ge(key string, value interface{}) Predicate {
	return &comparison{key, opGe, normalizeOperand(value)}
}

func (c *comparison) Match(g Getter) bool {
	v, ok := g.Get(c.key)
	if c.value == nil {
		switch c.op {
		case opEq:
			return !ok
		case opNe:
			return ok
		default:
			return false
		}
	}
	if !ok {
		return false
	}
	n, comparable := CompareValues(v, c.value)
	if !comparable {
		return false
	}
	switch c.op {
	case opEq:
		return n == 0
	case opNe:
		return n != 0
	case opLt:
		return n < 0
	case opLe:
		return n <= 0
	case opGt:
		return n > 0
	default:
		return n >= 0
	}
}

func (c *comparison) Resolve(r KindResolver) (Predicate, error) {
	kind, err := resolveKind(r, c.key)
	if err != nil {
		return nil, err
	}
	if c.value == nil && c.op != opEq && c.op != opNe {
		return nil, InvalidArgument("operator %s needs a non-nil operand for %q", compareSQL[c.op], c.key)
	}
	v, err := kind.Normalize(c.value)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", c.key, err)
	}
	return &comparison{c.key, c.op, v}, nil
}

func (c *comparison) AppendSQL(r KindResolver) (string, []interface{}, error) {
	kind, err := resolveKind(r, c.key)
	if err != nil {
		return "", nil, err
	}
	if c.value == nil {
		switch c.op {
		case opEq:
			return "? IS NULL", []interface{}{bun.Ident(c.key)}, nil
		case opNe:
			return "? IS NOT NULL", []interface{}{bun.Ident(c.key)}, nil
		}
	}
	v, err := kind.Encode(c.value)
	if err != nil {
		return "", nil, err
	}
	return "? " + compareSQL[c.op] + " ?", []interface{}{bun.Ident(c.key), v}, nil
}

func (c *comparison) String() string {
	if c.value == nil {
		return fmt.Sprintf("%s %s nil", c.key, compareSQL[c.op])
	}
	return fmt.Sprintf("%s %s %q", c.key, compareSQL[c.op], describe(c.value))
}

type inList struct {
	key    string
	values []interface{}
}

// In matches records whose key equals one of values.
func In(key string, values ...interface{}) Predicate {
	vs := make([]interface{}, 0, len(values))
	for _, v := range values {
		vs = append(vs, normalizeOperand(v))
	}
	return &inList{key, vs}
}

func (p *inList) Match(g Getter) bool {
	v, ok := g.Get(p.key)
	if !ok {
		return false
	}
	for _, candidate := range p.values {
		if n, comparable := CompareValues(v, candidate); comparable && n == 0 {
			return true
		}
	}
	return false
}

func (p *inList) Resolve(r KindResolver) (Predicate, error) {
	kind, err := resolveKind(r, p.key)
	if err != nil {
		return nil, err
	}
	vs := make([]interface{}, 0, len(p.values))
	for _, v := range p.values {
		if v == nil {
			return nil, InvalidArgument("IN list of %q contains nil", p.key)
		}
		nv, err := kind.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", p.key, err)
		}
		vs = append(vs, nv)
	}
	return &inList{p.key, vs}, nil
}

func (p *inList) AppendSQL(r KindResolver) (string, []interface{}, error) {
	kind, err := resolveKind(r, p.key)
	if err != nil {
		return "", nil, err
	}
	if len(p.values) == 0 {
		return "1 = 0", nil, nil
	}
	encoded := make([]interface{}, 0, len(p.values))
	for _, v := range p.values {
		ev, err := kind.Encode(v)
		if err != nil {
			return "", nil, err
		}
		encoded = append(encoded, ev)
	}
	return "? IN (?)", []interface{}{bun.Ident(p.key), bun.In(encoded)}, nil
}

func (p *inList) String() string {
	parts := make([]string, 0, len(p.values))
	for _, v := range p.values {
		parts = append(parts, fmt.Sprintf("%q", describe(v)))
	}
	return fmt.Sprintf("%s IN (%s)", p.key, strings.Join(parts, ", "))
}

type textOp int

const (
	textEqualFold textOp = iota
	textContains
	textBeginsWith
	textEndsWith
)

var textOpNames = map[textOp]string{
	textEqualFold:  "==[c]",
	textContains:   "CONTAINS[c]",
	textBeginsWith: "BEGINSWITH[c]",
	textEndsWith:   "ENDSWITH[c]",
}

// textMatch compares string attributes case-insensitively.
type textMatch struct {
	key   string
	op    textOp
	value string
}

// EqualFold matches string attributes equal to value ignoring case.
func EqualFold(key, value string) Predicate { return &textMatch{key, textEqualFold, value} }

// Contains matches string attributes containing value, ignoring case.
func Contains(key, value string) Predicate { return &textMatch{key, textContains, value} }

// BeginsWith matches string attributes starting with value, ignoring case.
func BeginsWith(key, value string) Predicate { return &textMatch{key, textBeginsWith, value} }

// EndsWith matches string attributes ending with value, ignoring case.
func EndsWith(key, value string) Predicate { return &textMatch{key, textEndsWith, value} }

func (t *textMatch) Match(g Getter) bool {
	v, ok := g.Get(t.key)
	if !ok {
		return false
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	fold := cases.Fold()
	have, want := fold.String(s), fold.String(t.value)
	switch t.op {
	case textEqualFold:
		return have == want
	case textContains:
		return strings.Contains(have, want)
	case textBeginsWith:
		return strings.HasPrefix(have, want)
	default:
		return strings.HasSuffix(have, want)
	}
}

func (t *textMatch) Resolve(r KindResolver) (Predicate, error) {
	kind, err := resolveKind(r, t.key)
	if err != nil {
		return nil, err
	}
	if kind != KindString {
		return nil, InvalidArgument("%s needs a string attribute, %q is %s", textOpNames[t.op], t.key, kind)
	}
	return t, nil
}

func (t *textMatch) AppendSQL(r KindResolver) (string, []interface{}, error) {
	if _, err := t.Resolve(r); err != nil {
		return "", nil, err
	}
	lowered := strings.ToLower(t.value)
	if t.op == textEqualFold {
		return "LOWER(?) = ?", []interface{}{bun.Ident(t.key), lowered}, nil
	}
	pattern := escapeLike(lowered)
	switch t.op {
	case textContains:
		pattern = "%" + pattern + "%"
	case textBeginsWith:
		pattern = pattern + "%"
	default:
		pattern = "%" + pattern
	}
	return "LOWER(?) LIKE ? ESCAPE '!'", []interface{}{bun.Ident(t.key), pattern}, nil
}

func (t *textMatch) String() string {
	return fmt.Sprintf("%s %s %q", t.key, textOpNames[t.op], t.value)
}

// FoldsText reports whether p holds a case-insensitive text comparison.
// SQL LOWER only folds ASCII on SQLite, so such predicates are evaluated
// with Match over the stored rows instead of being rendered to SQL.
func FoldsText(p Predicate) bool {
	switch t := p.(type) {
	case *textMatch:
		return true
	case *negation:
		return FoldsText(t.child)
	case *junction:
		for _, child := range t.children {
			if FoldsText(child) {
				return true
			}
		}
	}
	return false
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

type nullCheck struct {
	key  string
	null bool
}

func IsNull(key string) Predicate  { return &nullCheck{key, true} }
func NotNull(key string) Predicate { return &nullCheck{key, false} }

func (n *nullCheck) Match(g Getter) bool {
	_, ok := g.Get(n.key)
	return ok != n.null
}

func (n *nullCheck) Resolve(r KindResolver) (Predicate, error) {
	if _, err := resolveKind(r, n.key); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *nullCheck) AppendSQL(r KindResolver) (string, []interface{}, error) {
	if _, err := resolveKind(r, n.key); err != nil {
		return "", nil, err
	}
	if n.null {
		return "? IS NULL", []interface{}{bun.Ident(n.key)}, nil
	}
	return "? IS NOT NULL", []interface{}{bun.Ident(n.key)}, nil
}

func (n *nullCheck) String() string {
	if n.null {
		return n.key + " == nil"
	}
	return n.key + " != nil"
}

type junction struct {
	and      bool
	children []Predicate
}

// And matches when every child matches. An empty And matches everything.
func And(children ...Predicate) Predicate { return &junction{true, compact(children)} }

// Or matches when any child matches. An empty Or matches nothing.
func Or(children ...Predicate) Predicate { return &junction{false, compact(children)} }

func compact(ps []Predicate) []Predicate {
	out := make([]Predicate, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (j *junction) Match(g Getter) bool {
	for _, child := range j.children {
		if child.Match(g) != j.and {
			return !j.and
		}
	}
	return j.and
}

func (j *junction) Resolve(r KindResolver) (Predicate, error) {
	children := make([]Predicate, 0, len(j.children))
	for _, child := range j.children {
		resolved, err := child.Resolve(r)
		if err != nil {
			return nil, err
		}
		children = append(children, resolved)
	}
	return &junction{j.and, children}, nil
}

func (j *junction) AppendSQL(r KindResolver) (string, []interface{}, error) {
	if len(j.children) == 0 {
		if j.and {
			return "1 = 1", nil, nil
		}
		return "1 = 0", nil, nil
	}
	sep := " OR "
	if j.and {
		sep = " AND "
	}
	parts := make([]string, 0, len(j.children))
	var args []interface{}
	for _, child := range j.children {
		query, childArgs, err := child.AppendSQL(r)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+query+")")
		args = append(args, childArgs...)
	}
	return strings.Join(parts, sep), args, nil
}

func (j *junction) String() string {
	sep := " OR "
	if j.and {
		sep = " AND "
	}
	parts := make([]string, 0, len(j.children))
	for _, child := range j.children {
		parts = append(parts, "("+child.String()+")")
	}
	return strings.Join(parts, sep)
}

type negation struct {
	child Predicate
}

// Not inverts p.
func Not(p Predicate) Predicate { return &negation{p} }

func (n *negation) Match(g Getter) bool { return !n.child.Match(g) }

func (n *negation) Resolve(r KindResolver) (Predicate, error) {
	child, err := n.child.Resolve(r)
	if err != nil {
		return nil, err
	}
	return &negation{child}, nil
}

func (n *negation) AppendSQL(r KindResolver) (string, []interface{}, error) {
	query, args, err := n.child.AppendSQL(r)
	if err != nil {
		return "", nil, err
	}
	// COALESCE folds SQL's unknown into false, matching Match.
	return "NOT COALESCE((" + query + "), 1 = 0)", args, nil
}

func (n *negation) String() string { return "NOT (" + n.child.String() + ")" }

func resolveKind(r KindResolver, key string) (AttributeKind, error) {
	if r == nil {
		return KindInvalid, InvalidArgument("no entity to resolve %q against", key)
	}
	kind, ok := r.AttributeKind(key)
	if !ok {
		return KindInvalid, InvalidArgument("unknown attribute %q", key)
	}
	return kind, nil
}
