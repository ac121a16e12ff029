package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-credgate/credgate/internal/credentials"
	"github.com/go-credgate/credgate/internal/metrics"
	"github.com/go-credgate/credgate/internal/source"
	"github.com/go-credgate/credgate/internal/vault"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassphrase = "admin-test-passphrase"

// newVaultState writes a vault with one seeded user and resolves it so the
// returned state points at it, the way the server does at startup.
func newVaultState(t *testing.T) (*source.State, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "store.vault")
	hash, err := bcrypt.GenerateFromPassword([]byte("azerty"), bcrypt.MinCost)
	require.NoError(t, err)

	table := credentials.NewTable(
		credentials.Record{
			{Name: credentials.ColUser, Value: "fanny"},
			{Name: credentials.ColPassword, Value: string(hash)},
			{Name: credentials.ColHashed, Value: "true"},
		},
	)
	require.NoError(t, vault.Write(path, testPassphrase, map[string]credentials.Table{
		"credentials": table,
	}))

	state := source.NewState()
	_, err = source.Resolve(source.LocalStore{Path: path},
		source.WithPassphrase(testPassphrase),
		source.WithState(state))
	require.NoError(t, err)
	return state, path
}

func setupAdminRouter(state *source.State) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAdminHandler(state, metrics.NewNoopMetrics())
	r.GET("/admin/credentials", h.ListUsers)
	r.POST("/admin/credentials", h.CreateUser)
	return r
}

func TestAdmin_NoLocalVault(t *testing.T) {
	r := setupAdminRouter(source.NewState())

	req := httptest.NewRequest(http.MethodGet, "/admin/credentials", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "no_local_vault")
}

func TestListUsers(t *testing.T) {
	state, _ := newVaultState(t)
	r := setupAdminRouter(state)

	req := httptest.NewRequest(http.MethodGet, "/admin/credentials", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"fanny"`)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "is_hashed_password")
}

func TestCreateUser(t *testing.T) {
	state, path := newVaultState(t)
	r := setupAdminRouter(state)

	w := postJSON(r, "/admin/credentials", `{
		"user": "victor",
		"password": "12345",
		"admin": true,
		"expire_time": "2025-01-01"
	}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "generated_password")

	table, err := vault.Read(path, "credentials", testPassphrase)
	require.NoError(t, err)
	require.Len(t, table.Records, 2)

	rec := table.Records[1]
	user, _ := rec.Get(credentials.ColUser)
	assert.Equal(t, "victor", user)

	stored, _ := rec.Get(credentials.ColPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored), []byte("12345")))

	hashed, _ := rec.Get(credentials.ColHashed)
	assert.Equal(t, "true", hashed)
	admin, _ := rec.Get(credentials.ColAdmin)
	assert.Equal(t, "true", admin)
	expire, _ := rec.Get(credentials.ColExpireTime)
	assert.Equal(t, "2025-01-01", expire)
}

func TestCreateUser_GeneratesPassword(t *testing.T) {
	state, path := newVaultState(t)
	r := setupAdminRouter(state)

	w := postJSON(r, "/admin/credentials", `{"user": "victor"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		User              string `json:"user"`
		GeneratedPassword string `json:"generated_password"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "victor", resp.User)
	require.NotEmpty(t, resp.GeneratedPassword)

	// The generated password must verify against the stored hash.
	table, err := vault.Read(path, "credentials", testPassphrase)
	require.NoError(t, err)
	stored, _ := table.Records[1].Get(credentials.ColPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored), []byte(resp.GeneratedPassword)))
}

func TestCreateUser_Conflicts(t *testing.T) {
	state, _ := newVaultState(t)
	r := setupAdminRouter(state)

	t.Run("existing user", func(t *testing.T) {
		w := postJSON(r, "/admin/credentials", `{"user": "fanny"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "user_exists")
	})

	t.Run("missing user field", func(t *testing.T) {
		w := postJSON(r, "/admin/credentials", `{"password": "12345"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := postJSON(r, "/admin/credentials", `{not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
