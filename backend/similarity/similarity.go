// Package similarity talks to the external before/after evidence comparison
// service. Its answer is advisory.
package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cleanproof/backend/model"

	"github.com/apex/log"
)

// Verdict is the collaborator's answer for one pair of evidence references.
type Verdict struct {
	Signal model.Signal
	Score  float64
}

// Policy decides how an unavailable signal counts toward verification.
type Policy string

const (
	// PolicyPass treats an unavailable comparison as passed so the service is
	// never fully blocked on the collaborator.
	PolicyPass Policy = "pass"
	// PolicyFlag sends every unavailable comparison to manual review.
	PolicyFlag Policy = "flag"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyPass:
		return PolicyPass, nil
	case PolicyFlag:
		return PolicyFlag, nil
	}
	return "", fmt.Errorf("unknown similarity unavailable policy %q", s)
}

// Passed resolves a signal to the boolean used by the trust decision.
func (p Policy) Passed(s model.Signal) bool {
	switch s {
	case model.SignalPass:
		return true
	case model.SignalUnavailable:
		return p == PolicyPass
	}
	return false
}

// Disabled is used when no comparison service is configured.
type Disabled struct{}

func (Disabled) Compare(ctx context.Context, beforeRef, afterRef string) (Verdict, error) {
	return Verdict{Signal: model.SignalUnavailable},
		model.CollaboratorUnavailable("similarity service", fmt.Errorf("not configured"))
}

// Client handles communication with the comparison service
type Client struct {
	baseURL    string
	threshold  float64
	httpClient *http.Client
}

// NewClient creates a new comparison client
func NewClient(baseURL string, threshold float64, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		threshold: threshold,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CompareRequest represents the request body of the comparison service
type CompareRequest struct {
	BeforeRef string `json:"before_ref"`
	AfterRef  string `json:"after_ref"`
}

// CompareResponse represents the comparison service answer
type CompareResponse struct {
	Score float64 `json:"score"`
}

// Compare asks the service to score a before/after pair. Any transport or
// protocol failure yields an unavailable verdict together with a
// CollaboratorUnavailable error.
func (c *Client) Compare(ctx context.Context, beforeRef, afterRef string) (Verdict, error) {
	unavailable := func(err error) (Verdict, error) {
		return Verdict{Signal: model.SignalUnavailable}, model.CollaboratorUnavailable("similarity service", err)
	}

	jsonData, err := json.Marshal(CompareRequest{BeforeRef: beforeRef, AfterRef: afterRef})
	if err != nil {
		return unavailable(fmt.Errorf("failed to marshal request: %w", err))
	}

	url := c.baseURL + "/api/v1/compare"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return unavailable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailable(fmt.Errorf("failed to call similarity service: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return unavailable(fmt.Errorf("similarity service returned status %d: %s", resp.StatusCode, string(body)))
	}

	var result CompareResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return unavailable(fmt.Errorf("failed to decode response: %w", err))
	}

	log.Debugf("Similarity score %.3f for %s -> %s", result.Score, beforeRef, afterRef)

	if result.Score >= c.threshold {
		return Verdict{Signal: model.SignalPass, Score: result.Score}, nil
	}
	return Verdict{Signal: model.SignalFail, Score: result.Score}, nil
}
