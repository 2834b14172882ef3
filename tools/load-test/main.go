package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Hammers the timer with concurrent start-work calls per employee and checks
// that each employee ends up with exactly one running work session.

func main() {
	baseURL := flag.String("url", "http://localhost:8080/api/v1", "API base URL")
	secret := flag.String("secret", "local-dev-secret", "JWT signing secret")
	numEmployees := flag.Int("employees", 500, "number of employees")
	requestsPerEmployee := flag.Int("requests", 10, "concurrent start-work calls per employee")
	concurrency := flag.Int("concurrency", 50, "employees processed at the same time")
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}
	totalRequests := *numEmployees * (*requestsPerEmployee + 1)

	fmt.Printf("Starting load test: %d employees (%d start-work calls each) against %s with concurrency %d\n",
		*numEmployees, *requestsPerEmployee, *baseURL, *concurrency)

	var wg sync.WaitGroup
	sem := make(chan struct{}, *concurrency)

	var successCount, failCount, violations int64
	startTime := time.Now()

	for i := 0; i < *numEmployees; i++ {
		wg.Add(1)
		sem <- struct{}{}

		employeeID := fmt.Sprintf("load-test-emp-%d", i)
		go func(empID string) {
			defer wg.Done()
			defer func() { <-sem }()

			token, err := mintToken(*secret, empID)
			if err != nil {
				atomic.AddInt64(&failCount, int64(*requestsPerEmployee+1))
				return
			}

			if post(client, *baseURL+"/attendance/check-in-out", token, `{"action":"in"}`) {
				atomic.AddInt64(&successCount, 1)
			} else {
				atomic.AddInt64(&failCount, 1)
			}

			var inner sync.WaitGroup
			for j := 0; j < *requestsPerEmployee; j++ {
				inner.Add(1)
				go func(j int) {
					defer inner.Done()
					body := fmt.Sprintf(`{"project_id":"p-%d","memo":"load %d"}`, j%3+1, j)
					if post(client, *baseURL+"/timer/start-work", token, body) {
						atomic.AddInt64(&successCount, 1)
					} else {
						atomic.AddInt64(&failCount, 1)
					}
				}(j)
			}
			inner.Wait()

			if !isWorking(client, *baseURL+"/timer/status", token) {
				atomic.AddInt64(&violations, 1)
			}
		}(employeeID)
	}

	wg.Wait()
	duration := time.Since(startTime)

	fmt.Println("\n--- Load Test Results ---")
	fmt.Printf("Total Duration: %v\n", duration)
	fmt.Printf("Total Requests: %d\n", totalRequests)
	fmt.Printf("Successful:     %d\n", successCount)
	fmt.Printf("Failed:         %d\n", failCount)
	fmt.Printf("Requests/Sec:   %.2f\n", float64(totalRequests)/duration.Seconds())
	fmt.Printf("Bad end states: %d\n", violations)
}

func mintToken(secret, employeeID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": employeeID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func post(client *http.Client, url, token, body string) bool {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func isWorking(client *http.Client, url, token string) bool {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var status struct {
		IsWorking bool `json:"is_working"`
		IsOnBreak bool `json:"is_on_break"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false
	}
	return status.IsWorking && !status.IsOnBreak
}
