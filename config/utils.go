package config

import (
	"bufio"
	"encoding"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/YaCodeDev/YaTgPoster/yalogger"
)

var (
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	durationType        = reflect.TypeFor[time.Duration]()
)

// toScreamingSnakeCase converts a Go identifier to SCREAMING_SNAKE_CASE, keeping
// acronyms together: "HTTPAddr" becomes "HTTP_ADDR", "RedisDB" becomes "REDIS_DB".
func toScreamingSnakeCase(s string) string {
	s = matchFirstCap.ReplaceAllString(s, "${1}_${2}")
	s = matchAllCap.ReplaceAllString(s, "${1}_${2}")

	return strings.ToUpper(s)
}

// loadDotEnv copies KEY=VALUE pairs from the .env file into the process
// environment. Variables that are already set win. A missing file is not an error.
func loadDotEnv(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		parts := strings.SplitN(strings.TrimPrefix(text, "export "), "=", DotEnvKVParts)
		if len(parts) != DotEnvKVParts {
			return fmt.Errorf("%w: line %d", ErrInvalidDotEnvFileFormat, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if _, exists := os.LookupEnv(key); exists {
			continue
		}

		if err = os.Setenv(key, value); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// setFieldFromString parses raw into the field according to its kind.
func setFieldFromString(field reflect.Value, raw string) error {
	if field.CanAddr() && field.Addr().Type().Implements(textUnmarshalerType) {
		return field.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(raw))
	}

	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}

		field.SetInt(int64(d))

		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}

		field.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}

		field.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}

		field.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return err
		}

		field.SetFloat(v)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("%w: %s", ErrUnsupportedFieldType, field.Type())
		}

		parts := strings.Split(raw, ListSeparator)
		slice := reflect.MakeSlice(field.Type(), 0, len(parts))

		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				slice = reflect.Append(slice, reflect.ValueOf(part).Convert(field.Type().Elem()))
			}
		}

		field.Set(slice)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFieldType, field.Type())
	}

	return nil
}

func safetyCheck(log *yalogger.Logger) {
	if *log == nil {
		*log = yalogger.Default()

		(*log).Warn("Logger is nil, using default logger")
	}
}
