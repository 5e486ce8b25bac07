package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/david/estate-finder/internal/auth"
)

type jobStatus struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Duration string         `json:"duration"`
	Result   map[string]any `json:"result"`
	Error    string         `json:"error"`
}

// Starts a scrape on a running server and optionally waits for it.
// The token is minted from JWT_SECRET when set, otherwise obtained by
// logging in with ADMIN_PASSWORD.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	wait := flag.Bool("wait", false, "Poll the job until it finishes")
	pollEvery := flag.Duration("poll", 15*time.Second, "Poll interval with -wait")
	flag.Parse()

	api := strings.TrimRight(*baseURL, "/") + "/api/v1"
	client := &http.Client{Timeout: 30 * time.Second}

	token, err := adminToken(client, api)
	if err != nil {
		fmt.Printf("Error getting admin token: %v\n", err)
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodPost, api+"/admin/runs", nil)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var started map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&started)
	fmt.Printf("Response Status: %s %v\n", resp.Status, started)
	if resp.StatusCode != http.StatusAccepted {
		os.Exit(1)
	}
	if !*wait {
		return
	}

	jobID, _ := started["job_id"].(string)
	for {
		time.Sleep(*pollEvery)
		st, err := poll(client, api+"/admin/jobs/"+jobID, token)
		if err != nil {
			fmt.Printf("Error polling job %s: %v\n", jobID, err)
			os.Exit(1)
		}
		if st.Status == "running" {
			fmt.Printf("job %s still running...\n", jobID)
			continue
		}
		fmt.Printf("job %s %s after %s: %v %s\n", st.ID, st.Status, st.Duration, st.Result, st.Error)
		if st.Status != "completed" {
			os.Exit(1)
		}
		return
	}
}

func adminToken(client *http.Client, api string) (string, error) {
	if secret := strings.TrimSpace(os.Getenv("JWT_SECRET")); secret != "" {
		return auth.IssueToken(secret, auth.AdminSubject, time.Hour)
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		return "", fmt.Errorf("set JWT_SECRET or ADMIN_PASSWORD")
	}

	body, _ := json.Marshal(auth.LoginRequest{Password: password})
	resp, err := client.Post(api+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed: %s", resp.Status)
	}
	var out auth.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func poll(client *http.Client, url, token string) (*jobStatus, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var st jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}
