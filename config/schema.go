package config

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// ParseSchema builds a schema from TOML. A string value is a leaf without default, a table holding
// only "env" and "default" is a leaf, and any other table is a group:
//
//	[web]
//	port = { env = "WEB_PORT", default = 3000 }
//
//	[db]
//	host = "DB_HOST"
func ParseSchema(data []byte) (Group, error) {
	raw := map[string]interface{}{}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return schemaFromMap(raw, "")
}

// LoadSchemaFile reads a TOML schema from disk.
func LoadSchemaFile(path string) (Group, error) {
	raw := map[string]interface{}{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", path, err)
	}
	return schemaFromMap(raw, "")
}

func schemaFromMap(raw map[string]interface{}, prefix string) (Group, error) {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	group := make(Group, len(raw))
	for _, key := range keys {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch value := raw[key].(type) {
		case string:
			group[key] = Env(value)
		case map[string]interface{}:
			if leaf, ok, err := leafFromMap(value, path); err != nil {
				return nil, err
			} else if ok {
				group[key] = leaf
				continue
			}

			nested, err := schemaFromMap(value, path)
			if err != nil {
				return nil, err
			}
			group[key] = nested
		default:
			return nil, fmt.Errorf("schema %s: unsupported value of type %T", path, value)
		}
	}
	return group, nil
}

func leafFromMap(value map[string]interface{}, path string) (Leaf, bool, error) {
	env, hasEnv := value["env"]
	if !hasEnv {
		return Leaf{}, false, nil
	}

	for key := range value {
		if key != "env" && key != "default" {
			return Leaf{}, false, nil
		}
	}

	name, ok := env.(string)
	if !ok || name == "" {
		return Leaf{}, false, fmt.Errorf("schema %s: env must be a non-empty string", path)
	}

	return Leaf{Env: name, Default: value["default"]}, true, nil
}
