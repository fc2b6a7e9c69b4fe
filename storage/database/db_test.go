package database

import (
	"database/sql"
	"io/fs"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

func testConfig() *core.Config {
	return &core.Config{
		Database: core.DatabaseConfig{
			Engine:        "postgres",
			Host:          "db.local",
			Port:          5433,
			Name:          "darasa",
			User:          "app",
			Password:      "s3cret",
			AdminUser:     "postgres",
			AdminPassword: "root",
		},
	}
}

func TestURL(t *testing.T) {
	conf := testConfig()

	u, err := url.Parse(URL(conf, conf.Database.Name, false))
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.local:5433", u.Host)
	assert.Equal(t, "/darasa", u.Path)
	assert.Equal(t, "app", u.User.Username())
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	assert.Equal(t, "utc", u.Query().Get("timezone"))

	conf.Database.DisableTLS = true
	u, err = url.Parse(URL(conf, "postgres", true))
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.User.Username())
	pwd, _ := u.User.Password()
	assert.Equal(t, "root", pwd)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))

	conf.Database.AdminUser = ""
	u, err = url.Parse(URL(conf, "postgres", true))
	require.NoError(t, err)
	assert.Equal(t, "app", u.User.Username())
}

func TestMigrate(t *testing.T) {
	origRun := gooseRunFunc
	defer func() { gooseRunFunc = origRun }()

	var gotCmd, gotDir string
	var gotArgs []string
	gooseRunFunc = func(cmd string, _ *sql.DB, fsys fs.FS, dir string, args ...string) error {
		gotCmd, gotDir, gotArgs = cmd, dir, args
		_, err := fs.Stat(fsys, "migrations/00001_users.sql")
		return err
	}

	require.NoError(t, Migrate(nil, "down-to", "3"))
	assert.Equal(t, "down-to", gotCmd)
	assert.Equal(t, "migrations", gotDir)
	assert.Equal(t, []string{"3"}, gotArgs)

	gooseRunFunc = func(string, *sql.DB, fs.FS, string, ...string) error { return errors.New("boom") }
	err := Migrate(nil, "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrating database (up)")
}
