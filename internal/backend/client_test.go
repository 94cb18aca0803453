package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lizzahq/attendd/internal/attendance"
)

func TestProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/user/profile" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("email"); got != "maria.lopez@lizza.com" {
			t.Errorf("email = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"full_name":             "Maria Lopez",
			"email":                 "maria.lopez@lizza.com",
			"shift_start":           "09:00",
			"shift_end":             "18:00",
			"blockchain_id":         "LIZZA-ABCDEF1234",
			"force_password_change": true,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	profile, err := c.Profile(context.Background(), "maria.lopez@lizza.com")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}

	if profile.FullName != "Maria Lopez" {
		t.Errorf("FullName = %q", profile.FullName)
	}
	if profile.ShiftStart != "09:00" || profile.ShiftEnd != "18:00" {
		t.Errorf("shift = %q-%q", profile.ShiftStart, profile.ShiftEnd)
	}
	if profile.BlockchainID != "LIZZA-ABCDEF1234" {
		t.Errorf("BlockchainID = %q", profile.BlockchainID)
	}
	if !profile.ForcePasswordChange {
		t.Error("ForcePasswordChange not decoded")
	}
}

func TestEvaluate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/user/update-location" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("email") != "maria.lopez@lizza.com" || q.Get("lat") != "12.9716" || q.Get("lon") != "77.5946" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":          "warning",
			"is_inside":       false,
			"warning_seconds": 120,
			"message":         "Return to Zone!",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	sample := attendance.Sample{Lat: 12.9716, Lon: 77.5946, At: time.Now()}
	eval, err := c.Evaluate(context.Background(), "maria.lopez@lizza.com", sample)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if eval.Status != "warning" || eval.WarningSeconds != 120 {
		t.Errorf("eval = %+v", eval)
	}
	if eval.Message != "Return to Zone!" {
		t.Errorf("Message = %q", eval.Message)
	}
}

func TestEvaluateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "User or office not found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Evaluate(context.Background(), "nobody@lizza.com", attendance.Sample{})
	if err == nil {
		t.Fatal("want error on 404")
	}
}

func TestEvaluateMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Evaluate(context.Background(), "maria.lopez@lizza.com", attendance.Sample{})
	if err == nil {
		t.Fatal("want error on malformed body")
	}
}

func TestChangePassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/change-password" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "maria.lopez@lizza.com" || body["old_password"] != "old" || body["new_password"] != "newpassword1" {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "Password updated successfully"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.ChangePassword(context.Background(), "maria.lopez@lizza.com", "old", "newpassword1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
}

func TestChangePasswordRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect current password"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.ChangePassword(context.Background(), "maria.lopez@lizza.com", "wrong", "newpassword1")
	if err == nil {
		t.Fatal("want error on rejection")
	}
}
