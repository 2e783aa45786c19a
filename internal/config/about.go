package config

import (
	"reflect"
	"strings"
)

// Setting describes one configuration key for --about.
type Setting struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Env         string `json:"env,omitempty"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Settings lists every configuration key in declaration order, with nested
// keys in dotted form.
func Settings() []Setting {
	var out []Setting
	walk(reflect.TypeOf(Target{}), "", &out)
	return out
}

func walk(rt reflect.Type, prefix string, out *[]Setting) {
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		name = prefix + name
		if f.Type.Kind() == reflect.Struct {
			walk(f.Type, name+".", out)
			continue
		}
		*out = append(*out, Setting{
			Name:        name,
			Type:        typeName(f.Type),
			Env:         f.Tag.Get("env"),
			Default:     f.Tag.Get("env-default"),
			Description: f.Tag.Get("env-description"),
		})
	}
}

func typeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "integer"
	case reflect.Float64:
		return "number"
	case reflect.Map:
		return "object"
	default:
		return "string"
	}
}
