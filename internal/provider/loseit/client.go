// Package loseit implements the provider adapter for the Lose It! API.
package loseit

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
	defaultBaseURL = "https://api.loseit.com/v2"
	defaultTimeout = 30 * time.Second
	dateFormat     = "2006-01-02"
)

// Client interfaces with the Lose It! food log API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ provider.Adapter = (*Client)(nil)

// NewClient creates a new Lose It! API client.
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

type foodLogEntry struct {
	LogID       string  `json:"log_id"`
	Name        string  `json:"name"`
	Meal        string  `json:"meal"`
	Calories    float64 `json:"calories"`
	Carbs       float64 `json:"carbohydrates"`
	Protein     float64 `json:"protein"`
	Fat         float64 `json:"fat"`
	Fiber       float64 `json:"fiber"`
	Sugar       float64 `json:"sugar"`
	Sodium      float64 `json:"sodium"`
	ServingSize string  `json:"serving_size"`
	Quantity    float64 `json:"quantity"`
	// LoggedAt is RFC 3339 in the Lose It! export format.
	LoggedAt time.Time `json:"logged_at"`
}

// FetchMeals returns food log entries within [start, end].
func (c *Client) FetchMeals(ctx context.Context, creds provider.Credentials, start, end time.Time) ([]provider.Record, error) {
	u, err := url.Parse(c.baseURL + "/food-logs")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("start_date", start.Format(dateFormat))
	q.Set("end_date", end.Format(dateFormat))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var items []foodLogEntry
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	records := make([]provider.Record, 0, len(items))
	for _, item := range items {
		// The date-granular API can return entries just outside the window.
		if item.LoggedAt.Before(start) || item.LoggedAt.After(end) {
			continue
		}
		records = append(records, provider.Record{
			ExternalID:  item.LogID,
			FoodName:    item.Name,
			MealType:    mealTypeFor(item.Meal),
			Calories:    item.Calories,
			Carbs:       item.Carbs,
			Protein:     item.Protein,
			Fat:         item.Fat,
			Fiber:       item.Fiber,
			Sugar:       item.Sugar,
			Sodium:      item.Sodium,
			ServingSize: item.ServingSize,
			Servings:    item.Quantity,
			Timestamp:   item.LoggedAt,
		})
	}
	return records, nil
}

// SendMeal creates a food log entry and returns its id.
func (c *Client) SendMeal(ctx context.Context, creds provider.Credentials, entry entities.NutritionEntry) (string, error) {
	payload := foodLogEntry{
		Name:        entry.FoodName,
		Meal:        string(entry.MealType),
		Calories:    entry.Calories,
		Carbs:       entry.Carbs,
		Protein:     entry.Protein,
		Fat:         entry.Fat,
		Fiber:       entry.Fiber,
		Sugar:       entry.Sugar,
		Sodium:      entry.Sodium,
		ServingSize: entry.ServingSize,
		Quantity:    entry.Servings,
		LoggedAt:    entry.Timestamp,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/food-logs", bytes.NewReader(body))
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

	var created struct {
		LogID string `json:"log_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return created.LogID, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return provider.ErrInvalidToken
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.ErrRateLimited
	case resp.StatusCode >= 500:
		return &provider.ServerError{Provider: entities.ProviderLoseIt, StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func mealTypeFor(meal string) entities.MealType {
	switch meal {
	case "breakfast":
		return entities.MealTypeBreakfast
	case "lunch":
		return entities.MealTypeLunch
	case "dinner":
		return entities.MealTypeDinner
	default:
		return entities.MealTypeSnack
	}
}
