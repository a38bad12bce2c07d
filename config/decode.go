package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode reads the section under key into a T. Field names come from
// mapstructure tags, fallbacks from default tags, and the result is checked
// against its validate tags.
func Decode[T any](s *Source, key string) (T, error) {
	var out T
	t := reflect.TypeOf(out)
	if t == nil || t.Kind() != reflect.Struct {
		return out, fmt.Errorf("config: %s: target must be a struct, got %T", key, out)
	}
	applyDefaults(s.v, key, t)
	data := buildConfigMap(s.v, key, t)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result: &out,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(data); err != nil {
		return out, fmt.Errorf("config: decode %s: %w", key, err)
	}
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("config: validate %s: %w", key, err)
	}
	return out, nil
}

func applyDefaults(v *viper.Viper, prefix string, t reflect.Type) {
	walkFields(prefix, t, func(fullKey string, field reflect.StructField) {
		def, ok := field.Tag.Lookup("default")
		if !ok {
			return
		}
		v.SetDefault(fullKey, def)
	})
}

func buildConfigMap(v *viper.Viper, prefix string, t reflect.Type) map[string]any {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	out := make(map[string]any)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, skip := fieldName(field)
		if skip {
			continue
		}
		fullKey := joinKey(prefix, name)
		if isNestedStruct(field.Type) {
			nested := buildConfigMap(v, fullKey, field.Type)
			if len(nested) > 0 {
				out[name] = nested
			}
			continue
		}
		if val := v.Get(fullKey); val != nil {
			out[name] = val
		}
	}
	return out
}

func walkFields(prefix string, t reflect.Type, fn func(string, reflect.StructField)) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, skip := fieldName(field)
		if skip {
			continue
		}
		fullKey := joinKey(prefix, name)
		if isNestedStruct(field.Type) {
			walkFields(fullKey, field.Type, fn)
			continue
		}
		fn(fullKey, field)
	}
}

func fieldName(field reflect.StructField) (string, bool) {
	if field.PkgPath != "" {
		return "", true
	}
	name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
	if name == "-" {
		return "", true
	}
	if name == "" {
		name = strings.ToLower(field.Name)
	}
	return name, false
}

func isNestedStruct(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != reflect.TypeOf(time.Time{})
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
