package source

import (
	"path/filepath"
	"testing"

	"github.com/go-credgate/credgate/internal/credentials"
	"github.com/go-credgate/credgate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type sqlCredential struct {
	User     string `gorm:"column:user"`
	Password string `gorm:"column:password"`
	Comment  string `gorm:"column:comment"`
}

func (sqlCredential) TableName() string { return "credentials" }

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

// seedSQLite creates a sqlite credential database and returns its config.
func seedSQLite(t *testing.T) (*SQLConfig, *gorm.DB) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "creds.db")

	db, err := store.Open("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&sqlCredential{}))
	require.NoError(t, db.Create(&sqlCredential{
		User:     "fanny",
		Password: hashPassword(t, "azerty"),
		Comment:  "seeded",
	}).Error)

	cfg := &SQLConfig{Driver: "sqlite", DSN: dsn}
	cfg.Tables.Credentials = QuerySpec{
		TableName: "credentials",
		Select:    "SELECT user, password, comment FROM {tablename}",
	}
	return cfg, db
}

func TestSQLAuthenticator_Check(t *testing.T) {
	cfg, _ := seedSQLite(t)

	auth, err := Resolve(cfg)
	require.NoError(t, err)

	d, err := auth.Check("fanny", "azerty")
	require.NoError(t, err)
	assert.True(t, d.Result)
	assert.True(t, d.Authorized)

	// Rows are force-marked hashed, so the stored hash itself never
	// passes as a plaintext password.
	stored := hashPassword(t, "azerty")
	d, err = auth.Check("fanny", stored)
	require.NoError(t, err)
	assert.False(t, d.Result)

	// Password fields never leak into user info.
	d, err = auth.Check("fanny", "azerty")
	require.NoError(t, err)
	assert.False(t, d.UserInfo.Has(credentials.ColPassword))
	assert.False(t, d.UserInfo.Has(credentials.ColHashed))
	comment, _ := d.UserInfo.Get("comment")
	assert.Equal(t, "seeded", comment)
}

func TestSQLAuthenticator_RefetchesEveryCall(t *testing.T) {
	cfg, db := seedSQLite(t)

	auth, err := Resolve(cfg)
	require.NoError(t, err)

	d, err := auth.Check("victor", "12345")
	require.NoError(t, err)
	assert.False(t, d.Result, "victor not inserted yet")
	assert.False(t, d.Authorized)

	require.NoError(t, db.Create(&sqlCredential{
		User:     "victor",
		Password: hashPassword(t, "12345"),
	}).Error)

	d, err = auth.Check("victor", "12345")
	require.NoError(t, err)
	assert.True(t, d.Result, "row inserted between calls is visible")
}

func TestSQLAuthenticator_QueryErrorPropagates(t *testing.T) {
	cfg, _ := seedSQLite(t)
	cfg.Tables.Credentials.Select = "SELECT * FROM no_such_table"

	auth, err := Resolve(cfg)
	require.NoError(t, err, "validation does not run the query")

	_, err = auth.Check("fanny", "azerty")
	assert.Error(t, err, "backend failures abort the call instead of degrading the decision")
}

func TestSQLConfig_Validate(t *testing.T) {
	valid := func() *SQLConfig {
		cfg := &SQLConfig{Driver: "sqlite", DSN: "creds.db"}
		cfg.Tables.Credentials = QuerySpec{TableName: "credentials", Select: "SELECT * FROM {tablename}"}
		return cfg
	}
	require.NoError(t, valid().Validate())

	cases := []struct {
		name   string
		mutate func(*SQLConfig)
		field  string
	}{
		{"missing driver", func(c *SQLConfig) { c.Driver = "" }, "driver"},
		{"missing dsn", func(c *SQLConfig) { c.DSN = "  " }, "dsn"},
		{"missing tablename", func(c *SQLConfig) { c.Tables.Credentials.TableName = "" }, "tables.credentials.tablename"},
		{"missing select", func(c *SQLConfig) { c.Tables.Credentials.Select = "" }, "tables.credentials.select"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.field, cerr.Field)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestQuerySpec_Render(t *testing.T) {
	q := QuerySpec{TableName: "creds", Select: "SELECT * FROM {tablename} WHERE 1=1"}
	assert.Equal(t, "SELECT * FROM creds WHERE 1=1", q.Render())

	passthrough := QuerySpec{TableName: "creds", Select: "SELECT * FROM fixed_table"}
	assert.Equal(t, "SELECT * FROM fixed_table", passthrough.Render())
}

func TestLoadSQLConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sql.yaml")
	writeFile(t, path, `
driver: postgres
dsn: host=db.internal user=app dbname=auth
tables:
  credentials:
    tablename: app_credentials
    select: SELECT * FROM {tablename}
`)

	cfg, err := LoadSQLConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "app_credentials", cfg.Tables.Credentials.TableName)
	require.NoError(t, cfg.Validate())
}

func TestLoadSQLConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sql.yaml")
	writeFile(t, path, "tables: [not, a, mapping")

	_, err := LoadSQLConfig(path)
	assert.Error(t, err)
}
