package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Catalog rows come back as driver-native values whose Go types differ
// between drivers (int32 from pgx, int64 or text from MySQL). These helpers
// read them uniformly.

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func optStr(v any) *string {
	if v == nil {
		return nil
	}
	s := str(v)
	return &s
}

func integer(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case int:
		return int64(x)
	case uint64:
		return int64(x)
	case uint32:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string, []byte:
		n, _ := strconv.ParseInt(strings.TrimSpace(str(x)), 10, 64)
		return n
	}
	return 0
}

// truthy accepts SQL booleans, non-zero integers and YES/TRUE/T/1 text.
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string, []byte:
		switch strings.ToUpper(strings.TrimSpace(str(x))) {
		case "YES", "TRUE", "T", "1":
			return true
		}
		return false
	}
	return integer(v) != 0
}
