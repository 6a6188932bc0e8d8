// Package main is a smoke-test utility for a running gateway. It checks /health and
// asks the access check whether an anonymous visitor may open the dashboard, which
// must be denied.
//
// Usage: smoke [base-url]
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	base := "http://localhost:8080"
	if len(os.Args) > 1 {
		base = os.Args[1]
	}
	client := &http.Client{Timeout: 10 * time.Second}

	failed := false
	if status, body, err := get(client, base+"/health"); err != nil || status != http.StatusOK {
		fmt.Printf("health: FAIL status=%d err=%v body=%s\n", status, err, body)
		failed = true
	} else {
		fmt.Println("health: ok")
	}

	status, body, err := get(client, base+"/api/v1/access/check?path=/dashboard")
	var check struct {
		Granted bool   `json:"granted"`
		Reason  string `json:"reason"`
	}
	switch {
	case err != nil || status != http.StatusOK:
		fmt.Printf("access check: FAIL status=%d err=%v\n", status, err)
		failed = true
	case json.Unmarshal(body, &check) != nil || check.Granted:
		fmt.Printf("access check: FAIL anonymous visitor granted: %s\n", body)
		failed = true
	default:
		fmt.Printf("access check: ok (%s)\n", check.Reason)
	}

	if failed {
		os.Exit(1)
	}
}

func get(client *http.Client, url string) (int, []byte, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}
