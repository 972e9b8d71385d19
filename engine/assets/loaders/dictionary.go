package loaders

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
)

// DictionaryLoader imports TOML documents as dictionaries. Table keys are
// sorted so the result does not depend on map order.
type DictionaryLoader struct{}

func (dl *DictionaryLoader) Import(src codec.Source) (ir.Asset, error) {
	var doc map[string]interface{}
	if err := toml.Unmarshal(src.Data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", src.Path, err)
	}
	entries, err := dictEntries(doc)
	if err != nil {
		return nil, err
	}
	return &ir.Dictionary{Entries: entries}, nil
}

func dictEntries(m map[string]interface{}) ([]ir.DictEntry, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]ir.DictEntry, 0, len(keys))
	for _, k := range keys {
		v, err := dictValue(m[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		entries = append(entries, ir.DictEntry{Key: k, Value: v})
	}
	return entries, nil
}

func dictValue(v interface{}) (ir.Value, error) {
	switch t := v.(type) {
	case string:
		return ir.StringValue(t), nil
	case bool:
		return ir.BoolValue(t), nil
	case int64:
		return ir.IntValue(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return ir.UintValue(t), nil
		}
		return ir.IntValue(int64(t)), nil
	case float64:
		return ir.FloatValue(t), nil
	case time.Time:
		return ir.StringValue(t.Format(time.RFC3339Nano)), nil
	case toml.LocalDate, toml.LocalTime, toml.LocalDateTime:
		return ir.StringValue(fmt.Sprint(t)), nil
	case []interface{}:
		arr := make([]ir.Value, 0, len(t))
		for i, e := range t {
			ev, err := dictValue(e)
			if err != nil {
				return ir.Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			arr = append(arr, ev)
		}
		return ir.Value{Type: ir.ValueArray, Array: arr}, nil
	case map[string]interface{}:
		entries, err := dictEntries(t)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Value{Type: ir.ValueMap, Map: entries}, nil
	}
	return ir.Value{}, fmt.Errorf("unsupported value type %T", v)
}
