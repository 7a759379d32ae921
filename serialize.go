package datawrapper

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

// detailsTag marks fields omitted from serialized output unless details are
// requested: `expose:"details"`
const detailsTag = "details"

var detailKeysCache sync.Map // reflect.Type -> map[string]struct{}

// ToJSON returns the public representation of model as a map. Unless
// withDetails is set, fields tagged expose:"details" are dropped and so is
// the internal id of objects exposing a non-empty code. Keys starting with
// an underscore are always dropped. Nested objects follow the same rules.
func ToJSON(model any, withDetails bool) (map[string]any, error) {
	data, err := json.Marshal(model)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	prune(out, detailKeys(reflect.TypeOf(model)), withDetails)
	return out, nil
}

// Serialize encodes v, a model or a slice of models, applying the ToJSON
// rules to every object.
//
// Usage:
//
//	body, err := datawrapper.Serialize(products, false)
func Serialize(v any, withDetails bool) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	prune(out, detailKeys(reflect.TypeOf(v)), withDetails)
	return json.Marshal(out)
}

func prune(v any, details map[string]struct{}, withDetails bool) {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			prune(item, details, withDetails)
		}
	case map[string]any:
		for key, item := range val {
			if strings.HasPrefix(key, "_") {
				delete(val, key)
				continue
			}
			if !withDetails {
				if _, ok := details[key]; ok {
					delete(val, key)
					continue
				}
			}
			prune(item, details, withDetails)
		}
		if !withDetails {
			if code, ok := val["code"].(string); ok && code != "" {
				delete(val, "id")
			}
		}
	}
}

// detailKeys collects the JSON names of detail fields reachable from t
func detailKeys(t reflect.Type) map[string]struct{} {
	if t == nil {
		return nil
	}
	if cached, ok := detailKeysCache.Load(t); ok {
		return cached.(map[string]struct{})
	}

	keys := make(map[string]struct{})
	collectDetailKeys(t, keys, make(map[reflect.Type]bool))
	detailKeysCache.Store(t, keys)
	return keys
}

func collectDetailKeys(t reflect.Type, keys map[string]struct{}, seen map[reflect.Type]bool) {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array || t.Kind() == reflect.Map {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || seen[t] {
		return
	}
	seen[t] = true

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		name := tagName(f.Tag.Get("json"))
		if name == "-" {
			continue
		}
		if f.Anonymous && name == "" {
			collectDetailKeys(f.Type, keys, seen)
			continue
		}
		if name == "" {
			name = f.Name
		}

		if f.Tag.Get("expose") == detailsTag {
			keys[name] = struct{}{}
		}
		collectDetailKeys(f.Type, keys, seen)
	}
}
