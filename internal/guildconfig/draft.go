package guildconfig

import (
	"encoding/json"
	"strings"
)

// Draft accumulates dot-path keyed values for a configuration that has not
// been committed yet.
type Draft struct {
	values map[string]any
}

// NewDraft seeds the collections every committed configuration carries.
func NewDraft() *Draft {
	return &Draft{values: map[string]any{
		"partnership_channels": []string{},
		"report_regex":         []string{},
		"shop_items":           []any{},
		"webhooks":             []any{},
		"starboard": map[string]any{
			"enabled":       false,
			"minimum":       3,
			"reaction_only": true,
		},
	}}
}

func (d *Draft) Set(path string, value any) {
	parts := strings.Split(path, ".")
	node := d.values
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[part] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = value
}

func (d *Draft) Get(path string) (any, bool) {
	parts := strings.Split(path, ".")
	var node any = d.values
	for _, part := range parts {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

func (d *Draft) Has(path string) bool {
	_, ok := d.Get(path)
	return ok
}

// Missing lists the paths that have not been set.
func (d *Draft) Missing(paths []string) []string {
	var missing []string
	for _, path := range paths {
		if !d.Has(path) {
			missing = append(missing, path)
		}
	}
	return missing
}

// Map returns a deep copy of the draft as plain JSON values.
func (d *Draft) Map() map[string]any {
	data, err := json.Marshal(d.values)
	if err != nil {
		return map[string]any{}
	}
	out := make(map[string]any)
	_ = json.Unmarshal(data, &out)
	return out
}
