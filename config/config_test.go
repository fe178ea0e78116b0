package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func Test_Resolve_Simple(t *testing.T) {
	values := Resolve(Group{
		"foo": Env("FOO"),
		"bar": EnvDefault("BAR", 7),
	}, lookupFrom(map[string]string{"FOO": "hello"}))

	require.Equal(t, Values{"foo": "hello", "bar": 7}, values)
}

func Test_Resolve_Nested(t *testing.T) {
	values := Resolve(Group{
		"web": Group{
			"port": EnvDefault("WEB_PORT", 3000),
		},
		"db": Group{
			"host": Env("DB_HOST"),
			"port": EnvDefault("DB_PORT", 8000),
		},
	}, lookupFrom(map[string]string{"WEB_PORT": "1234", "DB_HOST": "db-host"}))

	require.Equal(t, Values{
		"web": Values{"port": "1234"},
		"db":  Values{"host": "db-host", "port": 8000},
	}, values)
}

func Test_Resolve_EmptyFallsBack(t *testing.T) {
	values := Resolve(Group{
		"foo": Env("FOO"),
		"bar": EnvDefault("BAR", "fallback"),
	}, lookupFrom(map[string]string{"FOO": "", "BAR": ""}))

	require.Equal(t, Values{"foo": nil, "bar": "fallback"}, values)
}

func Test_Load_EnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("FOO=from-file\nBAR=file-bar\n"), 0o600))

	values, err := Load(Group{
		"foo": Env("FOO"),
		"bar": Env("BAR"),
		"baz": EnvDefault("BAZ", true),
	},
		WithEnvFiles(file, filepath.Join(dir, "missing.env")),
		WithLookup(lookupFrom(map[string]string{"BAR": "from-env"})),
	)
	require.NoError(t, err)

	require.Equal(t, Values{"foo": "from-file", "bar": "from-env", "baz": true}, values)
}

func Test_Load_ProcessEnv(t *testing.T) {
	t.Setenv("STOK_CONFIG_TEST", "yes")

	values, err := Load(Group{"flag": Env("STOK_CONFIG_TEST")}, WithEnvFiles())
	require.NoError(t, err)
	require.Equal(t, "yes", values.String("flag"))
}

func Test_Values_Get(t *testing.T) {
	values := Values{
		"db": Values{"host": "db-host", "port": 8000},
	}

	require.Equal(t, "db-host", values.String("db.host"))
	require.Equal(t, "8000", values.String("db.port"))
	require.Equal(t, "", values.String("db.user"))
	require.Equal(t, "", values.String("db.host.name"))

	port, ok := values.Get("db.port")
	require.True(t, ok)
	require.Equal(t, 8000, port)
}

func Test_ParseSchema(t *testing.T) {
	schema, err := ParseSchema([]byte(`
name = "APP_NAME"

[web]
port = { env = "WEB_PORT", default = 3000 }

[db]
host = "DB_HOST"

[db.pool]
size = { env = "DB_POOL_SIZE", default = 4 }
`))
	require.NoError(t, err)

	require.Equal(t, Group{
		"name": Env("APP_NAME"),
		"web":  Group{"port": EnvDefault("WEB_PORT", int64(3000))},
		"db": Group{
			"host": Env("DB_HOST"),
			"pool": Group{"size": EnvDefault("DB_POOL_SIZE", int64(4))},
		},
	}, schema)

	values := Resolve(schema, lookupFrom(map[string]string{"DB_HOST": "db"}))
	require.Equal(t, int64(3000), values["web"].(Values)["port"])
	require.Equal(t, "db", values.String("db.host"))
	require.Nil(t, values["name"])
}

func Test_ParseSchema_Invalid(t *testing.T) {
	_, err := ParseSchema([]byte(`port = 3000`))
	require.Error(t, err)

	_, err = ParseSchema([]byte(`port = { env = 1 }`))
	require.Error(t, err)

	_, err = ParseSchema([]byte(`port = [`))
	require.Error(t, err)
}

func Test_LoadSchemaFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schema.toml")
	require.NoError(t, os.WriteFile(file, []byte("host = \"HOST\"\n"), 0o600))

	schema, err := LoadSchemaFile(file)
	require.NoError(t, err)
	require.Equal(t, Group{"host": Env("HOST")}, schema)

	_, err = LoadSchemaFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
