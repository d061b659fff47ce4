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
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the fixed-width text form used to persist time attributes.
// Values are always stored in UTC so that text order equals time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// AttributeKind is the value type of an entity attribute.
type AttributeKind int

const (
	KindInvalid AttributeKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindBytes
	KindJSON
)

var _ BaseEnum = KindString

var kindNames = map[AttributeKind]string{
	KindString: "string",
	KindInt:    "int",
	KindFloat:  "float",
	KindBool:   "bool",
	KindTime:   "time",
	KindBytes:  "bytes",
	KindJSON:   "json",
}

// ParseAttributeKind resolves a kind by name, case-insensitively.
func ParseAttributeKind(s string) (AttributeKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	switch s {
	case "integer", "int64":
		return KindInt, nil
	case "double", "float64":
		return KindFloat, nil
	case "boolean":
		return KindBool, nil
	case "datetime", "timestamp":
		return KindTime, nil
	case "blob", "binary":
		return KindBytes, nil
	}
	return KindInvalid, InvalidArgument("unknown attribute kind %q", s)
}

func (k AttributeKind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k AttributeKind) Number() int {
	if !k.IsValid() {
		return IllegalValue
	}
	return int(k)
}

func (k AttributeKind) String() string { return k.Name() }

func (k AttributeKind) Name() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return IllegalName
}

func (k AttributeKind) Desc() string {
	switch k {
	case KindString:
		return "text value"
	case KindInt:
		return "64-bit signed integer"
	case KindFloat:
		return "64-bit floating point number"
	case KindBool:
		return "boolean flag"
	case KindTime:
		return "UTC timestamp"
	case KindBytes:
		return "binary value"
	case KindJSON:
		return "JSON object"
	default:
		return IllegalDesc
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k AttributeKind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, InvalidArgument("invalid attribute kind %d", int(k))
	}
	return []byte(k.Name()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, used by model files.
func (k *AttributeKind) UnmarshalText(text []byte) error {
	parsed, err := ParseAttributeKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Normalize converts v into the canonical Go value of kind k:
// string, int64, float64, bool, time.Time (UTC), []byte or JsonObject.
// It accepts both caller supplied values and raw driver values.
func (k AttributeKind) Normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	var (
		out interface{}
		ok  bool
	)
	switch k {
	case KindString:
		out, ok = toString(v)
	case KindInt:
		out, ok = toInt64(v)
	case KindFloat:
		out, ok = toFloat64(v)
	case KindBool:
		out, ok = toBool(v)
	case KindTime:
		out, ok = toTime(v)
	case KindBytes:
		out, ok = toBytes(v)
	case KindJSON:
		out, ok = toJSON(v)
	default:
		return nil, InvalidArgument("invalid attribute kind %d", int(k))
	}
	if !ok {
		return nil, InvalidArgument("cannot use %T as %s", v, k)
	}
	return out, nil
}

// Encode converts a normalized value into the form written to the store.
func (k AttributeKind) Encode(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case KindTime:
		t, ok := v.(time.Time)
		if !ok {
			return nil, InvalidArgument("cannot encode %T as %s", v, k)
		}
		return t.UTC().Format(TimeLayout), nil
	case KindJSON:
		obj, ok := v.(JsonObject)
		if !ok {
			return nil, InvalidArgument("cannot encode %T as %s", v, k)
		}
		b, err := json.Marshal(obj)
		if err != nil {
			return nil, InvalidArgument("cannot encode json: %v", err)
		}
		return string(b), nil
	default:
		return v, nil
	}
}

func toString(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return nil, false
}

func toInt64(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return nil, false
		}
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, false
		}
		return int64(x), true
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return nil, false
		}
		return int64(x), true
	case []byte:
		n, err := strconv.ParseInt(string(x), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return nil, false
}

func toFloat64(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case []byte:
		f, err := strconv.ParseFloat(string(x), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	if n, ok := toInt64(v); ok {
		return float64(n.(int64)), true
	}
	return nil, false
}

func toBool(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case []byte:
		b, err := strconv.ParseBool(string(x))
		return b, err == nil
	case string:
		b, err := strconv.ParseBool(x)
		return b, err == nil
	}
	if n, ok := toInt64(v); ok {
		return n.(int64) != 0, true
	}
	return nil, false
}

func toTime(v interface{}) (interface{}, bool) {
	var s string
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), true
	case []byte:
		s = string(x)
	case string:
		s = x
	default:
		return nil, false
	}
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return nil, false
}

func toBytes(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case []byte:
		b := make([]byte, len(x))
		copy(b, x)
		return b, true
	case string:
		return []byte(x), true
	}
	return nil, false
}

func toJSON(v interface{}) (interface{}, bool) {
	var raw []byte
	switch x := v.(type) {
	case JsonObject:
		return x, true
	case map[string]interface{}:
		return JsonObject(x), true
	case []byte:
		raw = x
	case string:
		raw = []byte(x)
	default:
		return nil, false
	}
	var obj JsonObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// KindOf reports the attribute kind whose canonical Go type is the type of v.
func KindOf(v interface{}) AttributeKind {
	switch v.(type) {
	case string:
		return KindString
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case bool:
		return KindBool
	case time.Time:
		return KindTime
	case []byte:
		return KindBytes
	case JsonObject:
		return KindJSON
	}
	return KindInvalid
}

func describe(v interface{}) string {
	if t, ok := v.(time.Time); ok {
		return t.Format(TimeLayout)
	}
	return fmt.Sprintf("%v", v)
}
