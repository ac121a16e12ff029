package handlers

import (
	"log"
	"net/http"

	"github.com/go-credgate/credgate/internal/credentials"
	"github.com/go-credgate/credgate/internal/metrics"
	"github.com/go-credgate/credgate/internal/source"
	"github.com/go-credgate/credgate/internal/util"
	"github.com/go-credgate/credgate/internal/vault"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const generatedPasswordLength = 16

// AdminHandler manages the credential records of the active local vault.
// It reads the resolver's resolution state to find the vault; when the
// active source is not a local vault the surface is unavailable.
type AdminHandler struct {
	state   *source.State
	metrics metrics.Recorder
}

func NewAdminHandler(state *source.State, m metrics.Recorder) *AdminHandler {
	return &AdminHandler{state: state, metrics: m}
}

// CreateUserRequest is the JSON body of POST /admin/credentials. Password
// is optional; a random one is generated and returned once when omitted.
type CreateUserRequest struct {
	User         string `json:"user"`
	Password     string `json:"password"`
	Admin        bool   `json:"admin"`
	StartTime    string `json:"start_time"`
	ExpireTime   string `json:"expire_time"`
	Applications string `json:"applications"`
}

func (h *AdminHandler) activeVault(c *gin.Context) (source.LocalStore, string, bool) {
	ref, passphrase, ok := h.state.LocalVault()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "no_local_vault",
			"message": "active credential source is not a local vault",
		})
		return source.LocalStore{}, "", false
	}
	return ref, passphrase, true
}

// ListUsers returns every credential record of the active vault, password
// fields stripped.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	ref, passphrase, ok := h.activeVault(c)
	if !ok {
		return
	}

	table, err := vault.Read(ref.Path, ref.TableName(), passphrase)
	if err != nil {
		log.Printf("[Admin] Failed to read vault %s: %v", ref.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "vault_read_failed",
			"message": err.Error(),
		})
		return
	}

	users := make([]credentials.Record, 0, len(table.Records))
	for _, rec := range table.Records {
		users = append(users, rec.Without(credentials.ColPassword, credentials.ColHashed))
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// CreateUser appends a credential record to the active vault. The stored
// password is always bcrypt-hashed.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	ref, passphrase, ok := h.activeVault(c)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.User == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "body must be JSON with at least a user field",
		})
		return
	}

	tables, err := vault.ReadAll(ref.Path, passphrase)
	if err != nil {
		h.metrics.RecordVaultWrite(false)
		log.Printf("[Admin] Failed to read vault %s: %v", ref.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "vault_read_failed",
			"message": err.Error(),
		})
		return
	}

	tableName := ref.TableName()
	table := tables[tableName]
	for _, rec := range table.Records {
		if v, _ := rec.Get(credentials.ColUser); v == req.User {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "user_exists",
				"message": "a credential record with this user already exists",
			})
			return
		}
	}

	password := req.Password
	generated := false
	if password == "" {
		password, err = util.CryptoRandomString(generatedPasswordLength)
		if err != nil {
			h.metrics.RecordVaultWrite(false)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "password_generation_failed"})
			return
		}
		generated = true
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.metrics.RecordVaultWrite(false)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password_hash_failed"})
		return
	}

	rec := credentials.Record{
		{Name: credentials.ColUser, Value: req.User},
		{Name: credentials.ColPassword, Value: string(hash)},
		{Name: credentials.ColHashed, Value: "true"},
	}
	if req.Admin {
		rec = rec.Set(credentials.ColAdmin, "true")
	}
	if req.StartTime != "" {
		rec = rec.Set(credentials.ColStartTime, req.StartTime)
	}
	if req.ExpireTime != "" {
		rec = rec.Set(credentials.ColExpireTime, req.ExpireTime)
	}
	if req.Applications != "" {
		rec = rec.Set(credentials.ColApplications, req.Applications)
	}

	if tables == nil {
		tables = make(map[string]credentials.Table)
	}
	tables[tableName] = credentials.NewTable(append(table.Records, rec)...)

	if err := vault.Write(ref.Path, passphrase, tables); err != nil {
		h.metrics.RecordVaultWrite(false)
		log.Printf("[Admin] Failed to write vault %s: %v", ref.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "vault_write_failed",
			"message": err.Error(),
		})
		return
	}
	h.metrics.RecordVaultWrite(true)

	resp := gin.H{"user": req.User}
	if generated {
		// Returned once; only the hash is stored.
		resp["generated_password"] = password
	}
	c.JSON(http.StatusCreated, resp)
}
