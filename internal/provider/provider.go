// Package provider defines the contract between the sync orchestrator and
// third-party nutrition services, and the registry that maps provider names
// to their HTTP clients.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JustinD79/diaguard/internal/entities"
)

// ErrProviderNotSupported indicates no adapter is registered for a provider.
var ErrProviderNotSupported = errors.New("provider not supported")

// ErrInvalidToken indicates the stored credentials were rejected by the provider.
var ErrInvalidToken = errors.New("invalid or expired provider token")

// ErrRateLimited indicates the provider's API rate limit was exceeded.
var ErrRateLimited = errors.New("provider API rate limit exceeded")

// ServerError represents a 5xx error from a provider's API.
type ServerError struct {
	Provider   entities.Provider
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s server error: HTTP %d", e.Provider, e.StatusCode)
}

// Credentials is the decrypted token material an adapter authenticates with.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Record is one meal as a provider reports it. Adapters normalize their
// wire formats to this shape; the orchestrator never sees provider JSON.
type Record struct {
	ExternalID  string
	FoodName    string
	MealType    entities.MealType
	Calories    float64
	Carbs       float64
	Protein     float64
	Fat         float64
	Fiber       float64
	Sugar       float64
	Sodium      float64
	ServingSize string
	Servings    float64
	Timestamp   time.Time
}

// Entry converts the record to the orchestrator's transient representation.
func (r Record) Entry() entities.NutritionEntry {
	return entities.NutritionEntry{
		ID:          r.ExternalID,
		FoodName:    r.FoodName,
		MealType:    r.MealType,
		Calories:    r.Calories,
		Carbs:       r.Carbs,
		Protein:     r.Protein,
		Fat:         r.Fat,
		Fiber:       r.Fiber,
		Sugar:       r.Sugar,
		Sodium:      r.Sodium,
		ServingSize: r.ServingSize,
		Servings:    r.Servings,
		Timestamp:   r.Timestamp,
		Source:      entities.EntrySourceProvider,
		ExternalID:  r.ExternalID,
	}
}

// Adapter is the per-provider transport contract. Both calls can fail
// per-invocation; the orchestrator treats any error as a single collected
// error string, never a hard abort of the batch.
type Adapter interface {
	// FetchMeals returns the provider's meal records within [start, end].
	FetchMeals(ctx context.Context, creds Credentials, start, end time.Time) ([]Record, error)

	// SendMeal pushes one local meal to the provider and returns the
	// provider-assigned record id.
	SendMeal(ctx context.Context, creds Credentials, entry entities.NutritionEntry) (string, error)
}

// Registry maps providers to their adapters.
type Registry struct {
	adapters map[entities.Provider]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[entities.Provider]Adapter)}
}

// Register installs an adapter for a provider, replacing any existing one.
func (r *Registry) Register(p entities.Provider, a Adapter) {
	r.adapters[p] = a
}

// Get returns the adapter for a provider.
func (r *Registry) Get(p entities.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotSupported, p)
	}
	return a, nil
}
