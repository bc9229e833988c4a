package yapoststore

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
	"gorm.io/gorm/schema"
)

// SerializerName is the gorm serializer tag value for msgpack encoded columns.
const SerializerName = "msgpack"

//nolint:gochecknoinits
func init() {
	schema.RegisterSerializer(SerializerName, MsgpackSerializer{})
}

// MsgpackSerializer stores a field as a msgpack blob.
type MsgpackSerializer struct{}

// Scan decodes the column value into the field.
func (MsgpackSerializer) Scan(ctx context.Context, field *schema.Field, dst reflect.Value, dbValue any) error {
	fieldValue := reflect.New(field.FieldType)

	if dbValue != nil {
		var raw []byte

		switch v := dbValue.(type) {
		case []byte:
			raw = v
		case string:
			raw = []byte(v)
		default:
			return fmt.Errorf("%w: %T in %s", ErrUnsupportedDBValue, dbValue, field.Name)
		}

		if len(raw) > 0 {
			if err := msgpack.Unmarshal(raw, fieldValue.Interface()); err != nil {
				return err
			}
		}
	}

	field.ReflectValueOf(ctx, dst).Set(fieldValue.Elem())

	return nil
}

// Value encodes the field for storage.
func (MsgpackSerializer) Value(_ context.Context, _ *schema.Field, _ reflect.Value, fieldValue any) (any, error) {
	return msgpack.Marshal(fieldValue)
}
