package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
)

type dayResponse struct {
	Date             string  `json:"date"`
	TMaxC            float64 `json:"t_max_c"`
	TMinC            float64 `json:"t_min_c"`
	EtoModelMMDay    float64 `json:"eto_model_mm_day"`
	EtoProviderMMDay float64 `json:"eto_provider_mm_day"`
}

type cityResponse struct {
	CityName string        `json:"city_name"`
	State    string        `json:"state"`
	Days     []dayResponse `json:"days"`
}

type forecastsResponse struct {
	Forecasts map[string]cityResponse `json:"forecasts"`
}

func cmdQuerySnapshot(addr, cityFilter string) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := fetchJSON[forecastsResponse](client, addr+"/forecasts")
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}

	codes := make([]string, 0, len(resp.Forecasts))
	for code := range resp.Forecasts {
		if cityFilter != "" && code != cityFilter {
			continue
		}
		codes = append(codes, code)
	}
	sort.Strings(codes)

	if len(codes) == 0 {
		fmt.Println("No matching cities in the latest snapshot.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Code", "City", "State", "Date", "T max", "T min", "ETo model", "ETo provider"})
	for _, code := range codes {
		city := resp.Forecasts[code]
		for _, day := range city.Days {
			table.Append([]string{
				code,
				city.CityName,
				city.State,
				day.Date,
				fmt.Sprintf("%.1f", day.TMaxC),
				fmt.Sprintf("%.1f", day.TMinC),
				fmt.Sprintf("%.2f", day.EtoModelMMDay),
				fmt.Sprintf("%.2f", day.EtoProviderMMDay),
			})
		}
	}
	table.Render()
}
