package parser

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrMissingField is wrapped by ParseQuery when a field tagged
// `form:"name,required"` has no non-blank value in the query string.
var ErrMissingField = errors.New("missing required query parameter")

// ParseQuery binds the query string to a struct using the 'form' tag.
// Values are trimmed; a blank value counts as absent.
func ParseQuery(c *fiber.Ctx, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("output must be a pointer to a struct")
	}

	elem := val.Elem()
	typ := elem.Type()

	var missing []string
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("form")
		if tag == "" || tag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			continue
		}

		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			if opts == "required" {
				missing = append(missing, name)
			}
			continue
		}

		if err := setFieldValue(elem.Field(i), raw); err != nil {
			return fmt.Errorf("query parameter %s: %w", name, err)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
