// Package backend is the HTTP client for the facility-management API.
// The agent only consumes these endpoints; geofence math, attendance
// records and credentials all live server-side.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lizzahq/attendd/internal/attendance"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 8 * time.Second},
	}
}

type profileResponse struct {
	FullName            string `json:"full_name"`
	Email               string `json:"email"`
	ShiftStart          string `json:"shift_start"`
	ShiftEnd            string `json:"shift_end"`
	BlockchainID        string `json:"blockchain_id"`
	ForcePasswordChange bool   `json:"force_password_change"`
}

// Profile fetches the employee's shift profile. Called once per session.
func (c *Client) Profile(ctx context.Context, email string) (attendance.ShiftProfile, error) {
	u := c.baseURL + "/api/user/profile?email=" + url.QueryEscape(email)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return attendance.ShiftProfile{}, err
	}

	var resp profileResponse
	if err := c.do(req, &resp); err != nil {
		return attendance.ShiftProfile{}, fmt.Errorf("fetching profile: %w", err)
	}

	return attendance.ShiftProfile{
		Email:               resp.Email,
		FullName:            resp.FullName,
		ShiftStart:          resp.ShiftStart,
		ShiftEnd:            resp.ShiftEnd,
		BlockchainID:        resp.BlockchainID,
		ForcePasswordChange: resp.ForcePasswordChange,
	}, nil
}

type evaluationResponse struct {
	Status         string `json:"status"`
	IsInside       bool   `json:"is_inside"`
	WarningSeconds int    `json:"warning_seconds"`
	Message        string `json:"message"`
}

// Evaluate submits a sample to the geofence evaluator and returns its
// verdict. Pure given its inputs plus the round-trip; no other state.
func (c *Client) Evaluate(ctx context.Context, email string, sample attendance.Sample) (attendance.Evaluation, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("lat", strconv.FormatFloat(sample.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(sample.Lon, 'f', -1, 64))
	u := c.baseURL + "/api/user/update-location?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return attendance.Evaluation{}, err
	}

	var resp evaluationResponse
	if err := c.do(req, &resp); err != nil {
		return attendance.Evaluation{}, fmt.Errorf("evaluating location: %w", err)
	}

	return attendance.Evaluation{
		Status:         resp.Status,
		IsInside:       resp.IsInside,
		WarningSeconds: resp.WarningSeconds,
		Message:        resp.Message,
	}, nil
}

type changePasswordRequest struct {
	Email       string `json:"email"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword forwards a password change to the backend.
func (c *Client) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	body, err := json.Marshal(changePasswordRequest{
		Email:       email,
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/change-password", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, &struct{}{}); err != nil {
		return fmt.Errorf("changing password: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		// The backend reports errors as {"detail": "..."}.
		var detail struct {
			Detail string `json:"detail"`
		}
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if json.Unmarshal(data, &detail) == nil && detail.Detail != "" {
			return fmt.Errorf("%s %s: %s (status %d)", req.Method, req.URL.Path, detail.Detail, res.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
