package config

import (
	"fmt"
	"net/http"
	"os"
	"reflect"

	"github.com/YaCodeDev/YaTgPoster/yaerrors"
	"github.com/YaCodeDev/YaTgPoster/yalogger"
)

// LoadConfigStructFromEnv fills instance from environment variables and exits the
// program through log.Fatalf on failure.
//
// Field names become SCREAMING_SNAKE_CASE keys; nested structs prefix their fields
// with the parent key. A field that is zero and has no `default` tag is required.
//
// Example usage:
//
//	type Redis struct {
//		Addr string `default:"localhost:6379"`
//		DB   int    `default:"0"`
//	}
//
//	type Config struct {
//		TokenSecret string
//		Redis       Redis           // REDIS_ADDR, REDIS_DB
//		LogLevel    yalogger.Level  `default:"info"`
//		Schedule    string          `default:"@every 1m"`
//	}
//
//	var cfg Config
//	config.LoadConfigStructFromEnv(&cfg, log)
func LoadConfigStructFromEnv[T any](instance *T, log yalogger.Logger) {
	safetyCheck(&log)

	if err := LoadConfigStructFromEnvHandlingError(instance, log); err != nil {
		log.Fatalf("Failed to load config struct from env: %v", err)
	}
}

// LoadConfigStructFromEnvHandlingError is LoadConfigStructFromEnv returning the
// error instead of exiting.
func LoadConfigStructFromEnvHandlingError[T any](instance *T, log yalogger.Logger) yaerrors.Error {
	safetyCheck(&log)

	if err := loadDotEnv(DotEnvFile); err != nil {
		log.Warnf("Error loading .env file: %v", err)
	}

	value := reflect.ValueOf(instance).Elem()
	if value.Kind() != reflect.Struct {
		return yaerrors.FromErrorWithLog(
			http.StatusInternalServerError,
			ErrConfigStructMustBeStruct,
			fmt.Sprintf("config loader, got %T", instance),
			log,
		)
	}

	return loadConfigStructFromEnv(value, "", log)
}

func loadConfigStructFromEnv(
	structValue reflect.Value,
	keyPath string,
	log yalogger.Logger,
) yaerrors.Error {
	structType := structValue.Type()

	for i := range structValue.NumField() {
		field := structType.Field(i)
		fieldVal := structValue.Field(i)

		if !fieldVal.CanSet() {
			log.Warnf("Field %s cannot be set", field.Name)

			continue
		}

		envKey := toScreamingSnakeCase(field.Name)
		if keyPath != "" {
			envKey = keyPath + "_" + envKey
		}

		isPlainStruct := field.Type.Kind() == reflect.Struct &&
			field.Type != durationType &&
			!reflect.PointerTo(field.Type).Implements(textUnmarshalerType)

		if isPlainStruct {
			if err := loadConfigStructFromEnv(fieldVal, envKey, log); err != nil {
				return err.Wrap("failed to load struct field " + field.Name)
			}

			continue
		}

		defaultValStr, hasDefault := field.Tag.Lookup(DefaultTagName)

		raw, exists := os.LookupEnv(envKey)

		switch {
		case exists:
		case !fieldVal.IsZero():
			continue
		case hasDefault:
			raw = defaultValStr
		default:
			return yaerrors.FromErrorWithLog(
				http.StatusInternalServerError,
				ErrValueIsRequired,
				"config loader: "+envKey,
				log,
			)
		}

		if err := setFieldFromString(fieldVal, raw); err != nil {
			return yaerrors.FromErrorWithLog(
				http.StatusInternalServerError,
				err,
				fmt.Sprintf("config loader: field %s (%s)", field.Name, envKey),
				log,
			)
		}
	}

	return nil
}
