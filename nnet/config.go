package nnet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Network layer configuration
type Config struct {
	Layers []LayerConfig
}

// Load network config from json file
func LoadConfig(filePath string) (c Config, err error) {
	err = LoadJSON(filePath, &c)
	return
}

// Append layers to the config struct
func (c Config) AddLayers(layers ...ConfigLayer) Config {
	for _, l := range layers {
		c.Layers = append(c.Layers, l.Marshal())
	}
	return c
}

// Save config to JSON file
func (c Config) Save(filePath string) error {
	return SaveJSON(filePath, c)
}

func (c Config) String() string {
	str := []string{}
	for i, layer := range c.Layers {
		str = append(str, fmt.Sprintf("%2d: %s", i, layer))
	}
	return strings.Join(str, "\n")
}

// LoadJSON decodes the file into v.
func LoadJSON(filePath string, v interface{}) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	return errors.Wrapf(json.NewDecoder(f).Decode(v), "decode %s", filePath)
}

// SaveJSON encodes v as indented JSON. It is written to a temporary file first and then renamed
// so a reader never sees a partial file.
func SaveJSON(filePath string, v interface{}) error {
	tmpPath := filepath.Join(filepath.Dir(filePath), "."+filepath.Base(filePath))
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(v); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", filePath)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, filePath)
}

// Fields returns the exported field names of a struct or pointer to struct.
func Fields(v interface{}) []string {
	st := reflect.Indirect(reflect.ValueOf(v)).Type()
	var fld []string
	for i := 0; i < st.NumField(); i++ {
		if st.Field(i).PkgPath == "" {
			fld = append(fld, st.Field(i).Name)
		}
	}
	return fld
}

// Get the value of the named field.
func Get(v interface{}, key string) interface{} {
	s := reflect.Indirect(reflect.ValueOf(v))
	return s.FieldByName(key).Interface()
}

// Tag returns the json name of a field, or the field name if it has no tag.
func Tag(v interface{}, key string) string {
	st := reflect.Indirect(reflect.ValueOf(v)).Type()
	f, ok := st.FieldByName(key)
	if !ok {
		return key
	}
	name := strings.Split(f.Tag.Get("json"), ",")[0]
	if name == "" || name == "-" {
		return key
	}
	return name
}

// Describe formats each field on a separate line.
func Describe(v interface{}) string {
	str := []string{}
	for _, key := range Fields(v) {
		str = append(str, fmt.Sprintf("%-22s: %v", Tag(v, key), Get(v, key)))
	}
	return strings.Join(str, "\n")
}

// Diff returns the names of the fields which differ between a and b, which must have the same type.
func Diff(a, b interface{}) []string {
	var keys []string
	for _, key := range Fields(a) {
		if !reflect.DeepEqual(Get(a, key), Get(b, key)) {
			keys = append(keys, key)
		}
	}
	return keys
}

// SetString parses val according to the type of the named field. v must be a pointer to a struct.
// Slice fields take a comma separated list.
func SetString(v interface{}, key, val string) error {
	f := reflect.ValueOf(v).Elem().FieldByName(key)
	if !f.IsValid() {
		return errors.Errorf("invalid field name: %s", key)
	}
	return setValue(f, val)
}

// SetBool sets the named boolean field. v must be a pointer to a struct.
func SetBool(v interface{}, key string, val bool) error {
	f := reflect.ValueOf(v).Elem().FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.Bool {
		f.SetBool(val)
		return nil
	}
	return errors.Errorf("invalid type for SetBool: %s", key)
}

func setValue(f reflect.Value, val string) error {
	var err error
	switch f.Kind() {
	case reflect.Int, reflect.Int64:
		var x int64
		if x, err = strconv.ParseInt(val, 10, 64); err == nil {
			f.SetInt(x)
		}
	case reflect.Float64:
		var x float64
		if x, err = strconv.ParseFloat(val, 64); err == nil {
			f.SetFloat(x)
		}
	case reflect.Bool:
		var x bool
		if x, err = strconv.ParseBool(val); err == nil {
			f.SetBool(x)
		}
	case reflect.String:
		f.SetString(val)
	case reflect.Slice:
		var items []string
		if val = strings.TrimSpace(val); val != "" {
			items = strings.Split(val, ",")
		}
		s := reflect.MakeSlice(f.Type(), len(items), len(items))
		for i, item := range items {
			if err = setValue(s.Index(i), strings.TrimSpace(item)); err != nil {
				return err
			}
		}
		f.Set(s)
	default:
		return errors.Errorf("invalid type for SetString: %v", f.Kind())
	}
	return err
}
