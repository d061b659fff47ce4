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
	"bytes"
	"strings"
	"time"
)

// Getter reads an attribute of a record by key. The boolean is false when
// the record has no value for key.
type Getter interface {
	Get(key string) (interface{}, bool)
}

// GetterFunc adapts a function to Getter.
type GetterFunc func(key string) (interface{}, bool)

func (f GetterFunc) Get(key string) (interface{}, bool) { return f(key) }

// MapGetter exposes a plain map as a Getter. Nil values count as absent.
type MapGetter map[string]interface{}

func (m MapGetter) Get(key string) (interface{}, bool) {
	v, ok := m[key]
	return v, ok && v != nil
}

// CompareValues orders two normalized values. ok is false when the values
// are of incomparable kinds.
func CompareValues(a, b interface{}) (c int, ok bool) {
	switch x := a.(type) {
	case string:
		if y, yes := b.(string); yes {
			return strings.Compare(x, y), true
		}
	case int64:
		switch y := b.(type) {
		case int64:
			return cmpOrdered(x, y), true
		case float64:
			return cmpOrdered(float64(x), y), true
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return cmpOrdered(x, y), true
		case int64:
			return cmpOrdered(x, float64(y)), true
		}
	case bool:
		if y, yes := b.(bool); yes {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	case time.Time:
		if y, yes := b.(time.Time); yes {
			return x.Compare(y), true
		}
	case []byte:
		if y, yes := b.([]byte); yes {
			return bytes.Compare(x, y), true
		}
	}
	return 0, false
}

func cmpOrdered[V int64 | float64](a, b V) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// normalizeOperand converts caller literals (int, float32, ...) into the
// canonical types used by CompareValues.
func normalizeOperand(v interface{}) interface{} {
	if v == nil || KindOf(v) != KindInvalid {
		return v
	}
	if n, ok := toInt64(v); ok {
		return n
	}
	if f, ok := toFloat64(v); ok {
		return f
	}
	if t, ok := v.(*time.Time); ok && t != nil {
		return t.UTC()
	}
	if m, ok := v.(map[string]interface{}); ok {
		return JsonObject(m)
	}
	return v
}
