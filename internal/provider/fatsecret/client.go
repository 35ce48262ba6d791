// Package fatsecret implements the provider adapter for the FatSecret
// platform API.
package fatsecret

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/provider"
)

const (
	defaultBaseURL = "https://platform.fatsecret.com/rest/server.api"
	defaultTimeout = 30 * time.Second
)

// Client interfaces with the FatSecret platform API. FatSecret exposes a
// single endpoint with a method parameter rather than REST paths.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ provider.Adapter = (*Client)(nil)

// NewClient creates a new FatSecret API client.
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

type foodEntriesResponse struct {
	FoodEntries struct {
		Entries []foodEntry `json:"food_entry"`
	} `json:"food_entries"`
}

// foodEntry is FatSecret's wire format: every field is a string.
type foodEntry struct {
	ID       string `json:"food_entry_id"`
	Name     string `json:"food_entry_name"`
	Meal     string `json:"meal"`
	Calories string `json:"calories"`
	Carbs    string `json:"carbohydrate"`
	Protein  string `json:"protein"`
	Fat      string `json:"fat"`
	Fiber    string `json:"fiber"`
	Sugar    string `json:"sugar"`
	Sodium   string `json:"sodium"`
	// DateInt is days since the epoch, FatSecret's date encoding.
	DateInt string `json:"date_int"`
}

// FetchMeals returns food entries within [start, end]. FatSecret serves one
// day per call, so the window is walked a day at a time.
func (c *Client) FetchMeals(ctx context.Context, creds provider.Credentials, start, end time.Time) ([]provider.Record, error) {
	var records []provider.Record

	for day := start.Truncate(24 * time.Hour); !day.After(end); day = day.Add(24 * time.Hour) {
		entries, err := c.fetchDay(ctx, creds.AccessToken, day)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			rec, err := convertEntry(e)
			if err != nil {
				return nil, err
			}
			if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
				continue
			}
			records = append(records, rec)
		}
	}

	return records, nil
}

// SendMeal creates a food entry and returns its id.
func (c *Client) SendMeal(ctx context.Context, creds provider.Credentials, entry entities.NutritionEntry) (string, error) {
	form := url.Values{}
	form.Set("method", "food_entry.create")
	form.Set("format", "json")
	form.Set("food_entry_name", entry.FoodName)
	form.Set("meal", string(entry.MealType))
	form.Set("calories", strconv.FormatFloat(entry.Calories, 'f', -1, 64))
	form.Set("carbohydrate", strconv.FormatFloat(entry.Carbs, 'f', -1, 64))
	form.Set("protein", strconv.FormatFloat(entry.Protein, 'f', -1, 64))
	form.Set("fat", strconv.FormatFloat(entry.Fat, 'f', -1, 64))
	form.Set("date_int", strconv.FormatInt(int64(entry.Timestamp.Unix()/86400), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var created struct {
		FoodEntryID struct {
			Value string `json:"value"`
		} `json:"food_entry_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return created.FoodEntryID.Value, nil
}

func (c *Client) fetchDay(ctx context.Context, token string, day time.Time) ([]foodEntry, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("method", "food_entries.get")
	q.Set("format", "json")
	q.Set("date_int", strconv.FormatInt(day.Unix()/86400, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
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

	var parsed foodEntriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return parsed.FoodEntries.Entries, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return provider.ErrInvalidToken
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.ErrRateLimited
	case resp.StatusCode >= 500:
		return &provider.ServerError{Provider: entities.ProviderFatSecret, StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func convertEntry(e foodEntry) (provider.Record, error) {
	dateInt, err := strconv.ParseInt(e.DateInt, 10, 64)
	if err != nil {
		return provider.Record{}, fmt.Errorf("invalid date_int %q: %w", e.DateInt, err)
	}

	return provider.Record{
		ExternalID: e.ID,
		FoodName:   e.Name,
		MealType:   mealTypeFor(e.Meal),
		Calories:   parseFloat(e.Calories),
		Carbs:      parseFloat(e.Carbs),
		Protein:    parseFloat(e.Protein),
		Fat:        parseFloat(e.Fat),
		Fiber:      parseFloat(e.Fiber),
		Sugar:      parseFloat(e.Sugar),
		Sodium:     parseFloat(e.Sodium),
		Timestamp:  time.Unix(dateInt*86400, 0).UTC(),
	}, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func mealTypeFor(meal string) entities.MealType {
	switch strings.ToLower(meal) {
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
