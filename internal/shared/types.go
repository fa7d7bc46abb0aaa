package shared

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// StringSlice stores a list of labels as a JSON array column. It works with
// both the postgres json type and sqlite's text affinity.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		s = StringSlice{}
	}
	data, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *StringSlice) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan %T into StringSlice", value)
	}

	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("scan StringSlice: %w", err)
	}
	*s = out
	return nil
}

// ContainsFold reports whether any label equals want, ignoring case and
// surrounding spaces.
func (s StringSlice) ContainsFold(want string) bool {
	want = strings.TrimSpace(want)
	for _, label := range s {
		if strings.EqualFold(strings.TrimSpace(label), want) {
			return true
		}
	}
	return false
}

// NewID returns prefix followed by 32 hex characters of a random UUID.
func NewID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
