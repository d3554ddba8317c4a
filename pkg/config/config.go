// Package config loads struct-tagged configuration from an optional YAML file
// and the process environment.
//
// Supported tags:
//
//	env:"NAME"        environment variable overriding the field
//	default:"value"   applied when the field is still zero after loading
//	required:"true"   error when the field is zero and has no default
//
// Nested structs are walked recursively. Supported kinds are string, bool,
// int/int64, float32/float64, time.Duration and []string (comma separated).
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Validator interface allows config structs to implement custom validation logic.
// It is called after the file, the environment and defaults have been applied.
type Validator interface {
	Validate() error
}

// fieldVisitor is called for every non-struct field reachable from the root.
type fieldVisitor func(field reflect.Value, meta reflect.StructField, key string) error

// walk visits leaf fields depth first. key is "<StructType>.<Field>" so that
// identical field names in different sections do not collide.
func walk(val reflect.Value, visit fieldVisitor) error {
	var result error
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		meta := typ.Field(i)
		if !meta.IsExported() {
			continue
		}
		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := walk(field, visit); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}
		if err := visit(field, meta, typ.Name()+"."+meta.Name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// assign parses raw into field according to the field's type.
func assign(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %q to duration: %w", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to convert %q to int: %w", raw, err)
		}
		field.SetInt(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to convert %q to float: %w", raw, err)
		}
		field.SetFloat(v)
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %q to bool: %w", raw, err)
		}
		field.SetBool(v)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

func isRequired(meta reflect.StructField) bool {
	switch strings.ToLower(meta.Tag.Get("required")) {
	case "true", "1":
		return meta.Tag.Get("default") == ""
	}
	return false
}

// applyEnv overlays environment variables and records which fields they set.
func applyEnv(val reflect.Value) (map[string]bool, error) {
	fromEnv := make(map[string]bool)
	err := walk(val, func(field reflect.Value, meta reflect.StructField, key string) error {
		name := meta.Tag.Get("env")
		if name == "" {
			return nil
		}
		raw := os.Getenv(name)
		if raw == "" {
			return nil
		}
		fromEnv[key] = true
		if err := assign(field, raw); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
		return nil
	})
	return fromEnv, err
}

// applyDefaults fills zero fields from their default tag and reports missing required fields.
func applyDefaults(val reflect.Value, fromEnv map[string]bool) error {
	return walk(val, func(field reflect.Value, meta reflect.StructField, key string) error {
		if !field.IsZero() {
			return nil
		}
		if isRequired(meta) {
			return fmt.Errorf("required field env:%s / yaml:%s is missing", meta.Tag.Get("env"), meta.Tag.Get("yaml"))
		}
		def := meta.Tag.Get("default")
		if def == "" || fromEnv[key] {
			return nil
		}
		if err := assign(field, def); err != nil {
			return fmt.Errorf("default for %s: %w", key, err)
		}
		return nil
	})
}

func validate[T any](dest *T) error {
	if v, ok := any(*dest).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// GetConfigFromEnvVars loads configuration from environment variables only.
//
//	var cfg MyConfig
//	err := GetConfigFromEnvVars(&cfg)
func GetConfigFromEnvVars[T any](dest *T) error {
	val := reflect.ValueOf(dest).Elem()

	fromEnv, err := applyEnv(val)
	if err != nil {
		return err
	}
	if err := applyDefaults(val, fromEnv); err != nil {
		var zero T
		*dest = zero
		return err
	}
	return validate(dest)
}

// GetConfig loads configuration from a YAML file, then overlays environment variables.
// ${VAR} references inside the file are expanded from the environment before parsing.
// If filepath is empty, only environment variables are used. If allowFileErrors is true,
// a missing or malformed file falls back to environment variables only.
func GetConfig[T any](dest *T, filepath string, allowFileErrors bool) error {
	if filepath == "" {
		return GetConfigFromEnvVars(dest)
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), dest); err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return GetConfigFromEnvVars(dest)
}
