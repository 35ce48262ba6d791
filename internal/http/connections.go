package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/JustinD79/diaguard/internal/database/connections"
	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/tokenstore"
)

// ConnectionStore defines database operations for provider connections.
type ConnectionStore interface {
	Connect(userID uint, provider entities.Provider, auth connections.AuthData) (*entities.ProviderConnection, error)
	Disconnect(userID uint, provider entities.Provider) error
	GetActive(userID uint, provider entities.Provider) (*entities.ProviderConnection, error)
	ListForUser(userID uint) ([]entities.ProviderConnection, error)
	GetConfig(connectionID uint, dataType string) (*entities.SyncConfig, error)
	UpdateConfig(connectionID uint, dataType string, update connections.ConfigUpdate) (*entities.SyncConfig, error)
}

type ConnectionsController struct {
	store  ConnectionStore
	tokens *tokenstore.TokenStore
}

func NewConnectionsController(store ConnectionStore, tokens *tokenstore.TokenStore) *ConnectionsController {
	return &ConnectionsController{store: store, tokens: tokens}
}

type connectRequest struct {
	Provider     string     `json:"provider" binding:"required"`
	AccessToken  string     `json:"access_token" binding:"required"`
	RefreshToken string     `json:"refresh_token"`
	TokenExpiry  *time.Time `json:"token_expiry"`
}

// Connect establishes (or reactivates) a provider connection. Tokens are
// encrypted before they touch the database and never appear in responses.
// POST /api/connections
func (cc *ConnectionsController) Connect(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "provider and access_token are required")
		return
	}

	p := entities.Provider(req.Provider)
	if !p.IsValid() {
		respondBadRequest(c, "unsupported provider: "+req.Provider)
		return
	}

	auth, err := cc.tokens.Seal(tokenstore.Credentials{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenExpiry:  req.TokenExpiry,
	})
	if err != nil {
		respondInternalError(c, err, "encrypt credentials")
		return
	}

	conn, err := cc.store.Connect(userID, p, auth)
	if err != nil {
		respondInternalError(c, err, "connect provider")
		return
	}

	respondCreated(c, conn)
}

// Disconnect deactivates a connection and wipes its stored tokens.
// DELETE /api/connections/:provider
func (cc *ConnectionsController) Disconnect(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	p, ok := parseProviderParam(c)
	if !ok {
		return
	}

	if err := cc.store.Disconnect(userID, p); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "connection")
			return
		}
		respondInternalError(c, err, "disconnect provider")
		return
	}

	respondSuccess(c, string(p)+" disconnected")
}

// List returns the user's connections with their sync configurations.
// GET /api/connections
func (cc *ConnectionsController) List(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	conns, err := cc.store.ListForUser(userID)
	if err != nil {
		respondInternalError(c, err, "list connections")
		return
	}

	type connectionView struct {
		entities.ProviderConnection
		SyncConfig *entities.SyncConfig `json:"sync_config,omitempty"`
	}

	views := make([]connectionView, 0, len(conns))
	for _, conn := range conns {
		view := connectionView{ProviderConnection: conn}
		if cfg, err := cc.store.GetConfig(conn.ID, entities.DataTypeNutrition); err == nil {
			view.SyncConfig = cfg
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{"connections": views, "total": len(views)})
}

type configUpdateRequest struct {
	Direction          *entities.SyncDirection  `json:"direction"`
	Enabled            *bool                    `json:"enabled"`
	FrequencyMinutes   *int                     `json:"frequency_minutes"`
	ConflictResolution *entities.ConflictPolicy `json:"conflict_resolution"`
}

// UpdateConfig mutates the nutrition sync settings of an active connection.
// PUT /api/connections/:provider/config
func (cc *ConnectionsController) UpdateConfig(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	p, ok := parseProviderParam(c)
	if !ok {
		return
	}

	var req configUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid config payload")
		return
	}

	if req.Direction != nil {
		switch *req.Direction {
		case entities.SyncDirectionExportOnly, entities.SyncDirectionImportOnly, entities.SyncDirectionBidirectional:
		default:
			respondBadRequest(c, "invalid direction: "+string(*req.Direction))
			return
		}
	}
	if req.FrequencyMinutes != nil && *req.FrequencyMinutes <= 0 {
		respondBadRequest(c, "frequency_minutes must be positive")
		return
	}

	conn, err := cc.store.GetActive(userID, p)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "connection")
			return
		}
		respondInternalError(c, err, "load connection")
		return
	}

	cfg, err := cc.store.UpdateConfig(conn.ID, entities.DataTypeNutrition, connections.ConfigUpdate{
		Direction:          req.Direction,
		Enabled:            req.Enabled,
		FrequencyMinutes:   req.FrequencyMinutes,
		ConflictResolution: req.ConflictResolution,
	})
	if err != nil {
		respondInternalError(c, err, "update sync config")
		return
	}

	c.JSON(http.StatusOK, cfg)
}
