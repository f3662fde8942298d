package service

import (
	"errors"
	"html"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/microcosm-cc/bluemonday"
)

var (
	formDecoder = newFormDecoder()
	textPolicy  = bluemonday.StrictPolicy()
)

func newFormDecoder() *schema.Decoder {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return decoder
}

// NewValidator builds the struct validator used by every service; field errors are reported
// under their form names.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("schema"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return validate
}

// bindForm decodes form into dst, strips markup from its text fields and validates it.
func bindForm(validate *validator.Validate, dst interface{}, form url.Values) error {
	if err := formDecoder.Decode(dst, form); err != nil {
		var multi schema.MultiError
		if errors.As(err, &multi) {
			keys := make([]string, 0, len(multi))
			for key := range multi {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			if len(keys) > 0 {
				return invalid(keys[0], "%s has an invalid value", humanize(keys[0]))
			}
		}
		return invalid("", "the submitted form could not be read")
	}

	cleanStrings(dst)

	if err := validate.Struct(dst); err != nil {
		return fromValidator(err)
	}
	return nil
}

// cleanText removes any markup and surrounding whitespace from user supplied text.
func cleanText(value string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(value)))
}

// cleanStrings applies cleanText to every exported string field not tagged sanitize:"-".
func cleanStrings(dst interface{}) {
	value := reflect.ValueOf(dst)
	if value.Kind() != reflect.Ptr || value.Elem().Kind() != reflect.Struct {
		return
	}
	value = value.Elem()
	for i := 0; i < value.NumField(); i++ {
		field := value.Type().Field(i)
		if !field.IsExported() || field.Tag.Get("sanitize") == "-" {
			continue
		}
		if value.Field(i).Kind() == reflect.String {
			value.Field(i).SetString(cleanText(value.Field(i).String()))
		}
	}
}

// indexedValues collects keys of the form prefix[<id>] into an id keyed map, skipping blanks.
func indexedValues(form url.Values, prefix string) (map[uint]string, error) {
	values := make(map[uint]string)
	for key, raw := range form {
		if !strings.HasPrefix(key, prefix+"[") || !strings.HasSuffix(key, "]") || len(raw) == 0 {
			continue
		}
		idText := strings.TrimSuffix(strings.TrimPrefix(key, prefix+"["), "]")
		id, err := strconv.ParseUint(idText, 10, 64)
		if err != nil || id == 0 {
			return nil, invalid(prefix, "%s contains an invalid student reference", humanize(prefix))
		}
		value := strings.TrimSpace(raw[0])
		if value == "" {
			continue
		}
		values[uint(id)] = value
	}
	return values, nil
}

func sortedIDs(values map[uint]string) []uint {
	ids := make([]uint, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func formID(form url.Values, key string) (uint, error) {
	raw := strings.TrimSpace(form.Get(key))
	if raw == "" {
		return 0, invalid(key, "%s is required", humanize(key))
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, invalid(key, "%s is invalid", humanize(key))
	}
	return uint(id), nil
}
