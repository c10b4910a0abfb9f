package store

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Int coerces the setting's stored string value according to its declared
// type. Mirrors the original system's typed-setting coercion: a setting
// declared "int" always round-trips through strconv, never through JSON.
func (s Setting) Int() (int, error) {
	if s.Type != SettingInt {
		return 0, fmt.Errorf("setting %q is not typed int", s.Key)
	}
	return strconv.Atoi(s.Value)
}

func (s Setting) Float() (float64, error) {
	if s.Type != SettingFloat {
		return 0, fmt.Errorf("setting %q is not typed float", s.Key)
	}
	return strconv.ParseFloat(s.Value, 64)
}

func (s Setting) Bool() (bool, error) {
	if s.Type != SettingBool {
		return false, fmt.Errorf("setting %q is not typed bool", s.Key)
	}
	return strconv.ParseBool(s.Value)
}

func (s Setting) JSON(out any) error {
	if s.Type != SettingJSON {
		return fmt.Errorf("setting %q is not typed json", s.Key)
	}
	return json.Unmarshal([]byte(s.Value), out)
}

// IntSetting builds a Setting from a typed int value.
func IntSetting(key string, v int) Setting {
	return Setting{Key: key, Value: strconv.Itoa(v), Type: SettingInt}
}

func FloatSetting(key string, v float64) Setting {
	return Setting{Key: key, Value: strconv.FormatFloat(v, 'f', -1, 64), Type: SettingFloat}
}

func BoolSetting(key string, v bool) Setting {
	return Setting{Key: key, Value: strconv.FormatBool(v), Type: SettingBool}
}

func StringSetting(key, v string) Setting {
	return Setting{Key: key, Value: v, Type: SettingString}
}
