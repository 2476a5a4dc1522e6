package labinterp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// RawKind tags the shape a stored field value arrived in.
type RawKind uint8

const (
	RawNull RawKind = iota
	RawScalar
	RawWrappedValue
	RawWrappedResult
)

// RawFieldValue is a stored field value after its container shape has been
// resolved. The zero value is null.
type RawFieldValue struct {
	kind RawKind
	text string
}

// Scalar is a bare string or number stored directly under the field key.
func Scalar(text string) RawFieldValue { return RawFieldValue{kind: RawScalar, text: text} }

// WrappedValue is an object carrying the scalar under "value".
func WrappedValue(text string) RawFieldValue { return RawFieldValue{kind: RawWrappedValue, text: text} }

// WrappedResult is an object carrying the scalar under "result".
func WrappedResult(text string) RawFieldValue { return RawFieldValue{kind: RawWrappedResult, text: text} }

func (v RawFieldValue) Kind() RawKind { return v.kind }
func (v RawFieldValue) Text() string  { return v.text }

var (
	ErrFieldAbsent      = errors.New("field absent")
	ErrUnsupportedValue = errors.New("unsupported raw value")
)

// ResultSource is anything that can hand back a stored value by field key.
// A missing key must return ErrFieldAbsent.
type ResultSource interface {
	Lookup(key string) (RawFieldValue, error)
}

// Getter is the capability exposed by key/value stores.
type Getter interface {
	Get(key string) (any, bool)
}

// MapSource adapts a plain keyed collection.
type MapSource map[string]any

func (m MapSource) Lookup(key string) (RawFieldValue, error) {
	v, ok := m[key]
	if !ok {
		return RawFieldValue{}, ErrFieldAbsent
	}
	return rawFromAny(v)
}

// GetterSource adapts a key/value store.
type GetterSource struct {
	Store Getter
}

// FromGetter wraps a key/value store as a ResultSource.
func FromGetter(g Getter) GetterSource { return GetterSource{Store: g} }

func (s GetterSource) Lookup(key string) (RawFieldValue, error) {
	if s.Store == nil {
		return RawFieldValue{}, ErrFieldAbsent
	}
	v, ok := s.Store.Get(key)
	if !ok {
		return RawFieldValue{}, ErrFieldAbsent
	}
	return rawFromAny(v)
}

// JSONSource adapts the JSON object blob persisted with a lab result.
// Entries are decoded lazily so one malformed field cannot hide the others.
type JSONSource struct {
	fields map[string]json.RawMessage
}

// NewJSONSource parses a raw results blob. An empty or null blob yields an
// empty source.
func NewJSONSource(data []byte) (*JSONSource, error) {
	src := &JSONSource{fields: map[string]json.RawMessage{}}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return src, nil
	}
	if err := json.Unmarshal(trimmed, &src.fields); err != nil {
		return nil, fmt.Errorf("raw results must be a JSON object: %w", err)
	}
	return src, nil
}

// Len returns the number of stored keys.
func (s *JSONSource) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

func (s *JSONSource) Lookup(key string) (RawFieldValue, error) {
	if s == nil {
		return RawFieldValue{}, ErrFieldAbsent
	}
	raw, ok := s.fields[key]
	if !ok {
		return RawFieldValue{}, ErrFieldAbsent
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return RawFieldValue{}, fmt.Errorf("decode field %s: %w", key, err)
	}
	return rawFromAny(v)
}

// rawFromAny resolves the wrapper shape. "value" wins over "result", which
// wins over the entry itself. A null property counts as unpopulated.
func rawFromAny(v any) (RawFieldValue, error) {
	if v == nil {
		return RawFieldValue{}, nil
	}
	if obj, ok := v.(map[string]any); ok {
		if inner, ok := obj["value"]; ok && inner != nil {
			text, err := scalarText(inner)
			if err != nil {
				return RawFieldValue{}, err
			}
			return WrappedValue(text), nil
		}
		if inner, ok := obj["result"]; ok && inner != nil {
			text, err := scalarText(inner)
			if err != nil {
				return RawFieldValue{}, err
			}
			return WrappedResult(text), nil
		}
	}
	text, err := scalarText(v)
	if err != nil {
		return RawFieldValue{}, err
	}
	return Scalar(text), nil
}

func scalarText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	case fmt.Stringer:
		return t.String(), nil
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// Extract returns the scalar stored under key, or false when the value is
// absent, null, empty or unreadable.
func Extract(key string, src ResultSource) (string, bool) {
	text, err := extract(key, src)
	if err != nil {
		return "", false
	}
	return text, true
}

// ExtractErr is Extract with the lookup failure exposed. Absent values report
// ErrFieldAbsent.
func ExtractErr(key string, src ResultSource) (string, error) {
	return extract(key, src)
}

func extract(key string, src ResultSource) (text string, err error) {
	if src == nil {
		return "", ErrFieldAbsent
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("lookup %s panicked: %v", key, r)
		}
	}()
	raw, err := src.Lookup(key)
	if err != nil {
		return "", err
	}
	if raw.kind == RawNull || raw.text == "" {
		return "", ErrFieldAbsent
	}
	return raw.text, nil
}

// Organize walks the catalog in order and keeps the fields whose values are
// present. Every category appears, even when none of its fields do.
func Organize(catalog *Catalog, src ResultSource) OrganizedResults {
	return organize(catalog, src, nil)
}

func organize(catalog *Catalog, src ResultSource, onErr FieldErrorHook) OrganizedResults {
	out := make(OrganizedResults, 0, catalog.Len())
	catalog.each(func(cat *CategoryDefinition) {
		oc := OrganizedCategory{ID: cat.ID, Title: cat.Title, Fields: []ExtractedValue{}}
		for _, f := range cat.Fields {
			text, err := extract(f.Key, src)
			if err != nil {
				if onErr != nil && !errors.Is(err, ErrFieldAbsent) {
					onErr(f.Key, err)
				}
				continue
			}
			oc.Fields = append(oc.Fields, ExtractedValue{
				FieldKey:    f.Key,
				Label:       f.Label,
				Value:       text,
				NormalRange: f.NormalRange,
				Group:       f.Group,
			})
		}
		out = append(out, oc)
	})
	return out
}
