package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jwebster45206/museum-guide/internal/handlers"
	"github.com/jwebster45206/museum-guide/pkg/hunt"
)

// apiClient talks to the Museum Guide API on behalf of one profile
type apiClient struct {
	baseURL   string
	client    *http.Client
	profileID uuid.UUID
}

func (c *apiClient) profileURL(format string, args ...any) string {
	return fmt.Sprintf("%s/v1/profiles/%s", c.baseURL, c.profileID) + fmt.Sprintf(format, args...)
}

func (c *apiClient) testConnection() bool {
	resp, err := c.client.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *apiClient) do(method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *apiClient) listHunts() ([]handlers.HuntSummary, error) {
	var hunts []handlers.HuntSummary
	err := c.do(http.MethodGet, c.baseURL+"/v1/hunts", nil, &hunts)
	return hunts, err
}

func (c *apiClient) status(huntID string) (hunt.Status, error) {
	var st hunt.Status
	err := c.do(http.MethodGet, c.profileURL("/hunts/%s/progress", huntID), nil, &st)
	return st, err
}

func (c *apiClient) clue(huntID string, step int) (handlers.ClueView, error) {
	var clue handlers.ClueView
	err := c.do(http.MethodGet, c.profileURL("/hunts/%s/clues/%d", huntID, step), nil, &clue)
	return clue, err
}

func (c *apiClient) submitAnswer(huntID string, step int, answer string) (hunt.AnswerResult, error) {
	var result hunt.AnswerResult
	err := c.do(http.MethodPost, c.profileURL("/hunts/%s/steps/%d/answer", huntID, step),
		handlers.AnswerRequest{Answer: answer}, &result)
	return result, err
}

func (c *apiClient) advance(huntID string, step int) (handlers.AdvanceResponse, error) {
	var resp handlers.AdvanceResponse
	err := c.do(http.MethodPost, c.profileURL("/hunts/%s/steps/%d/advance?wait=true", huntID, step), nil, &resp)
	return resp, err
}

func (c *apiClient) markVisited(exhibitID string) error {
	return c.do(http.MethodPost, c.profileURL("/visits"),
		handlers.VisitRequest{Kind: "exhibit", ID: exhibitID}, nil)
}
