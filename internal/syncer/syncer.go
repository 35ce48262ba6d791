// Package syncer implements the nutrition sync orchestrator: exporting local
// meals to a connected provider, importing the provider's records, routing
// ambiguous pairs to the conflict store, and recording every pass in the
// sync history log.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/JustinD79/diaguard/internal/database/conflicts"
	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/provider"
	"github.com/JustinD79/diaguard/internal/tokenstore"
)

// DefaultWindow is the trailing window synced when no dates are given.
const DefaultWindow = 24 * time.Hour

// Direction selects which phases of a sync pass run.
type Direction string

const (
	DirectionExport Direction = "export"
	DirectionImport Direction = "import"
	DirectionBoth   Direction = "both"
)

func (d Direction) includesExport() bool { return d == DirectionExport || d == DirectionBoth }
func (d Direction) includesImport() bool { return d == DirectionImport || d == DirectionBoth }

// ConnectionStore is the subset of connection operations the orchestrator needs.
type ConnectionStore interface {
	GetActive(userID uint, p entities.Provider) (*entities.ProviderConnection, error)
	GetConfig(connectionID uint, dataType string) (*entities.SyncConfig, error)
	TouchLastSync(connectionID uint, at time.Time) error
	RecordError(connectionID uint, message string) error
}

// MealStore provides meal log access for export, import, and conflict lookup.
type MealStore interface {
	Create(meal *entities.MealLog) error
	GetByID(id uint) (*entities.MealLog, error)
	Update(meal *entities.MealLog) error
	ListInWindow(userID uint, start, end time.Time) ([]entities.MealLog, error)
	FindNearby(userID uint, ts time.Time, window time.Duration) ([]entities.MealLog, error)
}

// RecordStore holds the idempotence markers for exported/imported records.
type RecordStore interface {
	HasExported(connectionID, localRecordID uint) (bool, error)
	MarkExported(record *entities.ExportedRecord) (bool, error)
	HasImported(connectionID uint, externalRecordID, dataType string) (bool, error)
	MarkImported(record *entities.ImportedRecord) (bool, error)
}

// ConflictStore records and resolves pending conflicts.
type ConflictStore interface {
	Create(conflict *entities.SyncConflict) error
	GetByID(id uint) (*entities.SyncConflict, error)
	ListPending(userID uint) ([]conflicts.PendingConflict, error)
	PendingExists(connectionID uint, externalRecordID string) (bool, error)
	Resolve(id uint, resolvedBy, resolutionData string) error
}

// HistoryStore appends and finalizes sync history entries.
type HistoryStore interface {
	Open(userID, connectionID uint, syncType entities.SyncType, direction string) (*entities.SyncHistory, error)
	Close(id uint, status entities.HistoryStatus, processed, succeeded int) error
}

// Settings tune the orchestrator's time windows. Zero values fall back to
// the package defaults.
type Settings struct {
	// DefaultWindow is the trailing window synced when a pass gives no dates.
	DefaultWindow time.Duration
	// ConflictWindow is the timestamp proximity for duplicate detection.
	ConflictWindow time.Duration
}

// Service drives sync passes for (user, provider) pairs. All collaborators
// are injected so tests can substitute fakes for the provider adapters while
// running the real repositories against a test database.
type Service struct {
	conns     ConnectionStore
	meals     MealStore
	records   RecordStore
	conflicts ConflictStore
	history   HistoryStore
	registry  *provider.Registry
	tokens    *tokenstore.TokenStore

	defaultWindow  time.Duration
	conflictWindow time.Duration
}

// NewService creates a sync orchestrator.
func NewService(
	conns ConnectionStore,
	meals MealStore,
	records RecordStore,
	conflictStore ConflictStore,
	historyStore HistoryStore,
	registry *provider.Registry,
	tokens *tokenstore.TokenStore,
	settings Settings,
) *Service {
	if settings.DefaultWindow <= 0 {
		settings.DefaultWindow = DefaultWindow
	}
	if settings.ConflictWindow <= 0 {
		settings.ConflictWindow = ConflictWindow
	}
	return &Service{
		conns:          conns,
		meals:          meals,
		records:        records,
		conflicts:      conflictStore,
		history:        historyStore,
		registry:       registry,
		tokens:         tokens,
		defaultWindow:  settings.DefaultWindow,
		conflictWindow: settings.ConflictWindow,
	}
}

// Options control one sync pass. Zero values mean: both directions over the
// trailing 24 hours, recorded as a manual sync.
type Options struct {
	StartDate time.Time
	EndDate   time.Time
	Direction Direction
	SyncType  entities.SyncType
}

func (o *Options) applyDefaults(window time.Duration) {
	if o.EndDate.IsZero() {
		o.EndDate = time.Now()
	}
	if o.StartDate.IsZero() {
		o.StartDate = o.EndDate.Add(-window)
	}
	if o.SyncType == "" {
		o.SyncType = entities.SyncTypeManual
	}
}

// Result is the well-formed outcome of a sync pass. Success is true iff no
// errors occurred; conflicts count separately and do not fail a pass.
type Result struct {
	Success   bool      `json:"success"`
	Exported  int       `json:"exported"`
	Imported  int       `json:"imported"`
	Conflicts int       `json:"conflicts"`
	Errors    []string  `json:"errors"`
	SyncedAt  time.Time `json:"synced_at"`
}

// SyncNutritionData runs one sync pass for (user, provider). It never
// returns a Go error: connection problems, per-record failures, and
// anything unexpected all land in the result's error list, so callers
// need no error handling around a sync call.
func (s *Service) SyncNutritionData(ctx context.Context, userID uint, p entities.Provider, opts Options) Result {
	opts.applyDefaults(s.defaultWindow)
	result := Result{Errors: []string{}, SyncedAt: time.Now()}

	conn, err := s.conns.GetActive(userID, p)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.Errors = append(result.Errors, fmt.Sprintf("no active %s connection for user %d", p, userID))
		} else {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to load %s connection: %v", p, err))
		}
		return result
	}

	// An unset direction falls back to what the connection's sync config
	// allows; a caller-supplied direction overrides it.
	if opts.Direction == "" {
		opts.Direction = s.configuredDirection(conn.ID)
	}

	// The history entry is opened before any data movement so partial
	// failures are always recorded.
	entry, err := s.history.Open(userID, conn.ID, opts.SyncType, string(opts.Direction))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to open sync history: %v", err))
		return result
	}

	processed, succeeded := s.runPhases(ctx, conn, entry.ID, opts, &result)

	status := statusFor(len(result.Errors), succeeded)
	if err := s.history.Close(entry.ID, status, processed, succeeded); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to close sync history: %v", err))
	}

	// The watermark advances even after a partial sync; the next pass's
	// default window starts from here.
	if err := s.conns.TouchLastSync(conn.ID, result.SyncedAt); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to update last sync time: %v", err))
	}

	if len(result.Errors) > 0 {
		_ = s.conns.RecordError(conn.ID, result.Errors[len(result.Errors)-1])
	}

	result.Success = len(result.Errors) == 0
	log.Printf("Nutrition sync: user=%d provider=%s exported=%d imported=%d conflicts=%d errors=%d status=%s",
		userID, p, result.Exported, result.Imported, result.Conflicts, len(result.Errors), status)
	return result
}

// runPhases executes the export then import phase sequentially and returns
// (processed, succeeded) counts across both.
func (s *Service) runPhases(ctx context.Context, conn *entities.ProviderConnection, historyID uint, opts Options, result *Result) (int, int) {
	adapter, err := s.registry.Get(conn.Provider)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return 0, 0
	}

	creds, err := s.openCredentials(conn)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return 0, 0
	}

	var processed, succeeded int

	if opts.Direction.includesExport() {
		p, s2 := s.exportPhase(ctx, adapter, creds, conn, historyID, opts, result)
		processed += p
		succeeded += s2
	}

	if opts.Direction.includesImport() {
		_, p, s2 := s.importPhase(ctx, adapter, creds, conn, historyID, opts, result)
		processed += p
		succeeded += s2
	}

	return processed, succeeded
}

// exportPhase sends local meals in the window that have no export marker yet.
// One bad record does not abort the batch; each successful export is
// individually durable via its marker row.
func (s *Service) exportPhase(ctx context.Context, adapter provider.Adapter, creds provider.Credentials, conn *entities.ProviderConnection, historyID uint, opts Options, result *Result) (processed, succeeded int) {
	localMeals, err := s.meals.ListInWindow(conn.UserID, opts.StartDate, opts.EndDate)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to list local meals: %v", err))
		return 0, 0
	}

	for i := range localMeals {
		meal := &localMeals[i]

		exported, err := s.records.HasExported(conn.ID, meal.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to check export marker for meal %d: %v", meal.ID, err))
			processed++
			continue
		}
		if exported {
			continue
		}

		processed++
		entry := entities.FromMealLog(meal)

		externalID, err := adapter.SendMeal(ctx, creds, entry)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to export meal %q: %v", meal.FoodName, err))
			continue
		}

		payload, _ := json.Marshal(entry)
		inserted, err := s.records.MarkExported(&entities.ExportedRecord{
			LocalRecordID:    meal.ID,
			ConnectionID:     conn.ID,
			SyncHistoryID:    historyID,
			ExternalRecordID: externalID,
			ExportedData:     string(payload),
			Status:           entities.RecordStatusConfirmed,
			ExportedAt:       time.Now(),
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to record export of meal %d: %v", meal.ID, err))
			continue
		}
		if inserted {
			result.Exported++
			succeeded++
		}
	}

	return processed, succeeded
}

// importPhase pulls the provider's records for the window, skipping already
// imported ones and routing plausible duplicates to the conflict store
// instead of importing them. Returns the entries that were actually
// persisted alongside the attempt counters.
func (s *Service) importPhase(ctx context.Context, adapter provider.Adapter, creds provider.Credentials, conn *entities.ProviderConnection, historyID uint, opts Options, result *Result) (imported []entities.NutritionEntry, processed, succeeded int) {
	external, err := adapter.FetchMeals(ctx, creds, opts.StartDate, opts.EndDate)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to fetch meals from %s: %v", conn.Provider, err))
		return nil, 0, 0
	}

	for _, record := range external {
		alreadyImported, err := s.records.HasImported(conn.ID, record.ExternalID, entities.DataTypeNutrition)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to check import marker for record %s: %v", record.ExternalID, err))
			processed++
			continue
		}
		if alreadyImported {
			continue
		}

		processed++
		entry := record.Entry()

		match, err := s.findConflictingMeal(conn.UserID, entry)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed conflict lookup for record %s: %v", record.ExternalID, err))
			continue
		}
		if match != nil {
			// The record stays blocked, but an unresolved conflict for
			// it is only recorded once across passes.
			pending, err := s.conflicts.PendingExists(conn.ID, entry.ExternalID)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("failed pending-conflict lookup for record %s: %v", entry.ExternalID, err))
				continue
			}
			if !pending {
				if err := s.recordConflict(conn, historyID, match, entry); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("failed to record conflict for %q: %v", entry.FoodName, err))
					continue
				}
			}
			result.Conflicts++
			continue
		}

		meal := entry.ToMealLog(conn.UserID)
		if err := s.meals.Create(&meal); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to save imported meal %q: %v", entry.FoodName, err))
			continue
		}

		payload, _ := json.Marshal(entry)
		if _, err := s.records.MarkImported(&entities.ImportedRecord{
			ExternalRecordID: record.ExternalID,
			ConnectionID:     conn.ID,
			SyncHistoryID:    historyID,
			DataType:         entities.DataTypeNutrition,
			LocalRecordID:    meal.ID,
			ImportedData:     string(payload),
			Status:           entities.RecordStatusConfirmed,
			ImportedAt:       time.Now(),
		}); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to record import of %s: %v", record.ExternalID, err))
			continue
		}

		result.Imported++
		succeeded++
		imported = append(imported, entry)
	}

	return imported, processed, succeeded
}

// configuredDirection maps the connection's sync config direction to the
// phases to run. Missing config means bidirectional.
func (s *Service) configuredDirection(connectionID uint) Direction {
	cfg, err := s.conns.GetConfig(connectionID, entities.DataTypeNutrition)
	if err != nil {
		return DirectionBoth
	}
	switch cfg.Direction {
	case entities.SyncDirectionExportOnly:
		return DirectionExport
	case entities.SyncDirectionImportOnly:
		return DirectionImport
	default:
		return DirectionBoth
	}
}

func (s *Service) openCredentials(conn *entities.ProviderConnection) (provider.Credentials, error) {
	creds, err := s.tokens.Open(conn)
	if err != nil {
		return provider.Credentials{}, fmt.Errorf("failed to decrypt %s credentials: %w", conn.Provider, err)
	}
	return provider.Credentials{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	}, nil
}

// statusFor maps error/success counts to the terminal history status:
// completed when nothing failed, partial when some records made it,
// failed when errors occurred and nothing succeeded.
func statusFor(errorCount, succeeded int) entities.HistoryStatus {
	switch {
	case errorCount == 0:
		return entities.HistoryStatusCompleted
	case succeeded > 0:
		return entities.HistoryStatusPartial
	default:
		return entities.HistoryStatusFailed
	}
}
