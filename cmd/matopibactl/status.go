package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

type healthResponse struct {
	Status string `json:"status"`
}

type metadataResponse struct {
	RunLabel         string  `json:"run_label"`
	UpdatedAtUTC     string  `json:"updated_at_utc"`
	NextUpdateUTC    string  `json:"next_update_utc"`
	NCitiesAttempted int     `json:"n_cities_attempted"`
	NCitiesSucceeded int     `json:"n_cities_succeeded"`
	SuccessRate      float64 `json:"success_rate"`
	Version          string  `json:"version"`
}

func cmdStatus(addr string) {
	client := &http.Client{Timeout: 5 * time.Second}

	health, err := fetchJSON[healthResponse](client, addr+"/health")
	if err != nil {
		log.Fatalf("health check failed: %v", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Health", health.Status})

	meta, err := fetchJSON[metadataResponse](client, addr+"/metadata")
	if err != nil {
		fmt.Printf("Metadata unavailable: %v\n", err)
		table.Render()
		return
	}

	updatedAt, parseErr := time.Parse("2006-01-02T15:04:05Z", meta.UpdatedAtUTC)
	age := "unknown"
	if parseErr == nil {
		age = humanize.Time(updatedAt)
	}

	table.Append([]string{"Run label", meta.RunLabel})
	table.Append([]string{"Updated", meta.UpdatedAtUTC + " (" + age + ")"})
	table.Append([]string{"Next update", meta.NextUpdateUTC})
	table.Append([]string{"Cities succeeded", fmt.Sprintf("%d / %d", meta.NCitiesSucceeded, meta.NCitiesAttempted)})
	table.Append([]string{"Success rate", fmt.Sprintf("%.1f%%", meta.SuccessRate*100)})
	table.Append([]string{"Version", meta.Version})
	table.Render()
}

func fetchJSON[T any](client *http.Client, url string) (T, error) {
	var out T
	resp, err := client.Get(url)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return out, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
