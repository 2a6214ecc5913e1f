package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"attendance-guard/internal/models"
)

const (
	pbTimeLayout = "2006-01-02 15:04:05.000Z"
	maxPerPage   = 500
)

// PocketBase implements every store of this package against the
// PocketBase REST API
type PocketBase struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPocketBase creates the REST store
func NewPocketBase(baseURL, authToken string, timeout time.Duration, logger *zap.Logger) *PocketBase {
	return &PocketBase{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// APIError is a non-2xx PocketBase response
type APIError struct {
	Status  int                       `json:"status"`
	Message string                    `json:"message"`
	Data    map[string]map[string]any `json:"data"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pocketbase: %d %s", e.Status, e.Message)
}

// NotUnique reports whether the error is a unique constraint violation
func (e *APIError) NotUnique() bool {
	for _, field := range e.Data {
		if field["code"] == "validation_not_unique" {
			return true
		}
	}
	return false
}

func (r *PocketBase) collectionURL(collection string) string {
	return fmt.Sprintf("%s/api/collections/%s/records", r.baseURL, collection)
}

func (r *PocketBase) do(ctx context.Context, method, apiURL string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.authToken != "" {
		req.Header.Set("Authorization", r.authToken)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Error("PocketBase request failed", zap.String("method", method), zap.String("url", apiURL), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	r.logger.Debug("PocketBase response",
		zap.String("method", method),
		zap.String("url", apiURL),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode == http.StatusNotFound {
		return models.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
		_ = json.Unmarshal(respBody, apiErr)
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health calls the PocketBase health endpoint
func (r *PocketBase) Health(ctx context.Context) error {
	return r.do(ctx, http.MethodGet, r.baseURL+"/api/health", nil, nil)
}

// listRecords fetches the first page of a filtered, sorted collection
func listRecords[T any](ctx context.Context, r *PocketBase, collection, filter, sort string, perPage int) ([]T, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	if sort != "" {
		q.Set("sort", sort)
	}
	q.Set("perPage", fmt.Sprint(perPage))
	q.Set("skipTotal", "1")

	var result struct {
		Items []T `json:"items"`
	}
	if err := r.do(ctx, http.MethodGet, r.collectionURL(collection)+"?"+q.Encode(), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	return result.Items, nil
}

func getRecord[T any](ctx context.Context, r *PocketBase, collection, id string) (*T, error) {
	var out T
	if err := r.do(ctx, http.MethodGet, r.collectionURL(collection)+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", collection, id, err)
	}
	return &out, nil
}

func (r *PocketBase) create(ctx context.Context, collection string, data map[string]any) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := r.do(ctx, http.MethodPost, r.collectionURL(collection), data, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (r *PocketBase) update(ctx context.Context, collection, id string, data map[string]any) error {
	if err := r.do(ctx, http.MethodPatch, r.collectionURL(collection)+"/"+url.PathEscape(id), data, nil); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", collection, id, err)
	}
	return nil
}

// quote renders s as a PocketBase filter string literal
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(pbTimeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// DateTime decodes PocketBase datetime fields, which are empty strings
// when unset
type DateTime struct {
	time.Time
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{pbTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("bad datetime %q", s)
}

// Ptr returns nil for an unset datetime
func (d DateTime) Ptr() *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// isNotUnique unwraps err looking for a unique violation
func isNotUnique(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotUnique()
}
