// Package myfitnesspal implements the provider adapter for the MyFitnessPal
// diary API.
package myfitnesspal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/provider"
)

const (
	defaultBaseURL = "https://api.myfitnesspal.com/v2"

	defaultTimeout     = 30 * time.Second
	maxRetries         = 3
	initialRetryDelay  = 1 * time.Second
	maxRetryDelay      = 30 * time.Second
	retryBackoffFactor = 2
)

// Client interfaces with the MyFitnessPal diary API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ provider.Adapter = (*Client)(nil)

// NewClient creates a new MyFitnessPal API client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint (tests).
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

// diaryResponse is the wire format of GET /diary.
type diaryResponse struct {
	Items []diaryEntry `json:"items"`
}

type diaryEntry struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	MealName    string    `json:"meal_name"`
	Energy      nutrient  `json:"energy"`
	Carbohydrates float64 `json:"carbohydrates"`
	Protein     float64   `json:"protein"`
	Fat         float64   `json:"fat"`
	Fiber       float64   `json:"fiber"`
	Sugar       float64   `json:"sugar"`
	Sodium      float64   `json:"sodium"`
	ServingSize string    `json:"serving_size"`
	Servings    float64   `json:"servings"`
	LoggedAt    time.Time `json:"logged_at"`
}

type nutrient struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type createEntryRequest struct {
	Description string    `json:"description"`
	MealName    string    `json:"meal_name"`
	Energy      nutrient  `json:"energy"`
	Carbohydrates float64 `json:"carbohydrates"`
	Protein     float64   `json:"protein"`
	Fat         float64   `json:"fat"`
	Fiber       float64   `json:"fiber,omitempty"`
	Sugar       float64   `json:"sugar,omitempty"`
	Sodium      float64   `json:"sodium,omitempty"`
	ServingSize string    `json:"serving_size,omitempty"`
	Servings    float64   `json:"servings,omitempty"`
	LoggedAt    time.Time `json:"logged_at"`
}

type createEntryResponse struct {
	ID string `json:"id"`
}

// FetchMeals returns diary entries logged within [start, end].
func (c *Client) FetchMeals(ctx context.Context, creds provider.Credentials, start, end time.Time) ([]provider.Record, error) {
	u, err := url.Parse(c.baseURL + "/diary")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("entry_date_from", start.Format(time.RFC3339))
	q.Set("entry_date_to", end.Format(time.RFC3339))
	q.Set("types", "diary_meal")
	u.RawQuery = q.Encode()

	var resp *diaryResponse
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateRetryDelay(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, lastErr = c.doFetchRequest(ctx, u.String(), creds.AccessToken)
		if lastErr == nil {
			break
		}

		// Only retry on rate limits or server errors
		if !isRetryableError(lastErr) {
			return nil, lastErr
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
	}

	records := make([]provider.Record, 0, len(resp.Items))
	for _, item := range resp.Items {
		records = append(records, convertEntry(item))
	}
	return records, nil
}

// SendMeal creates a diary entry and returns its id.
func (c *Client) SendMeal(ctx context.Context, creds provider.Credentials, entry entities.NutritionEntry) (string, error) {
	payload := createEntryRequest{
		Description:   entry.FoodName,
		MealName:      mealNameFor(entry.MealType),
		Energy:        nutrient{Value: entry.Calories, Unit: "calories"},
		Carbohydrates: entry.Carbs,
		Protein:       entry.Protein,
		Fat:           entry.Fat,
		Fiber:         entry.Fiber,
		Sugar:         entry.Sugar,
		Sodium:        entry.Sodium,
		ServingSize:   entry.ServingSize,
		Servings:      entry.Servings,
		LoggedAt:      entry.Timestamp,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/diary", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var created createEntryResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return created.ID, nil
}

func (c *Client) doFetchRequest(ctx context.Context, url, token string) (*diaryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var diary diaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&diary); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &diary, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return provider.ErrInvalidToken
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.ErrRateLimited
	case resp.StatusCode >= 500:
		return &provider.ServerError{Provider: entities.ProviderMyFitnessPal, StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func convertEntry(item diaryEntry) provider.Record {
	return provider.Record{
		ExternalID:  item.ID,
		FoodName:    item.Description,
		MealType:    mealTypeFor(item.MealName),
		Calories:    item.Energy.Value,
		Carbs:       item.Carbohydrates,
		Protein:     item.Protein,
		Fat:         item.Fat,
		Fiber:       item.Fiber,
		Sugar:       item.Sugar,
		Sodium:      item.Sodium,
		ServingSize: item.ServingSize,
		Servings:    item.Servings,
		Timestamp:   item.LoggedAt,
	}
}

func mealTypeFor(mealName string) entities.MealType {
	switch mealName {
	case "Breakfast":
		return entities.MealTypeBreakfast
	case "Lunch":
		return entities.MealTypeLunch
	case "Dinner":
		return entities.MealTypeDinner
	default:
		return entities.MealTypeSnack
	}
}

func mealNameFor(mealType entities.MealType) string {
	switch mealType {
	case entities.MealTypeBreakfast:
		return "Breakfast"
	case entities.MealTypeLunch:
		return "Lunch"
	case entities.MealTypeDinner:
		return "Dinner"
	default:
		return "Snacks"
	}
}

func calculateRetryDelay(attempt int) time.Duration {
	delay := initialRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= time.Duration(retryBackoffFactor)
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func isRetryableError(err error) bool {
	if err == provider.ErrRateLimited {
		return true
	}
	if _, ok := err.(*provider.ServerError); ok {
		return true
	}
	return false
}
