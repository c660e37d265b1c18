package database

import (
	"database/sql/driver"
	"encoding/json"

	"moff.io/moff-connector/pkg/errors"
)

type JSONBArray []interface{}

func (j JSONBArray) Value() (driver.Value, error) {
	valueString, err := json.Marshal(j)
	return string(valueString), err
}

func (j *JSONBArray) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*j = nil
		return nil
	default:
		return errors.Errorf("unsupported jsonb value %T", value)
	}
	return json.Unmarshal(data, j)
}
