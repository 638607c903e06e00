package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// InspectionType mirrors the API's inspection type names.
type InspectionType struct {
	Type                  string `json:"type"`
	DefaultFrequencyWeeks int    `json:"default_frequency_weeks"`
}

// SeriesRequest is the body posted to /schedules/series.
type SeriesRequest struct {
	VehicleID             string `json:"vehicle_id"`
	InspectionType        string `json:"inspection_type"`
	StartDate             string `json:"start_date,omitempty"`
	FrequencyWeeks        int    `json:"frequency_weeks,omitempty"`
	MaintenanceProviderID string `json:"maintenance_provider_id,omitempty"`
	Notes                 string `json:"notes,omitempty"`
}

// SeriesResponse is the subset of the series response the generator reads.
type SeriesResponse struct {
	Created []json.RawMessage `json:"created"`
	Skipped int               `json:"skipped"`
	Errors  []string          `json:"errors"`
}

// MaintainResponse is the subset of the horizon report the generator reads.
type MaintainResponse struct {
	SeriesProcessed   int      `json:"series_processed"`
	SchedulesCreated  int      `json:"schedules_created"`
	DuplicatesSkipped int      `json:"duplicates_skipped"`
	Errors            []string `json:"errors"`
}

var fallbackTypes = []InspectionType{
	{Type: "safety_inspection", DefaultFrequencyWeeks: 6},
	{Type: "tax", DefaultFrequencyWeeks: 52},
	{Type: "mot", DefaultFrequencyWeeks: 52},
	{Type: "tacho_calibration", DefaultFrequencyWeeks: 104},
}

var providers = []string{"northside-garage", "fleetcare-depot", "city-test-centre", ""}

var authToken string

var httpClient = &http.Client{Timeout: 10 * time.Second}

func authorizedRequest(method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	return httpClient.Do(req)
}

func fetchInspectionTypes(apiURL string) ([]InspectionType, error) {
	resp, err := authorizedRequest(http.MethodGet, apiURL+"/inspection-types", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inspection types: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inspection types request failed with status: %d", resp.StatusCode)
	}
	var types []InspectionType
	if err := json.NewDecoder(resp.Body).Decode(&types); err != nil {
		return nil, fmt.Errorf("failed to decode inspection types: %w", err)
	}
	return types, nil
}

// randomSeries picks a first due date within one frequency period of today so
// the demo fleet has a realistic spread of overdue and upcoming items.
func randomSeries(vehicleID string, it InspectionType, today time.Time) SeriesRequest {
	freq := it.DefaultFrequencyWeeks
	if freq <= 0 {
		freq = 52
	}
	offsetDays := rand.Intn(freq*7) - 7
	return SeriesRequest{
		VehicleID:             vehicleID,
		InspectionType:        it.Type,
		StartDate:             today.AddDate(0, 0, offsetDays).Format("2006-01-02"),
		FrequencyWeeks:        freq,
		MaintenanceProviderID: providers[rand.Intn(len(providers))],
	}
}

func createSeries(apiURL string, series SeriesRequest) (int, error) {
	data, err := json.Marshal(series)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal series: %w", err)
	}

	resp, err := authorizedRequest(http.MethodPost, apiURL+"/schedules/series", bytes.NewBuffer(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create series: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusMultiStatus {
		return 0, fmt.Errorf("series creation failed with status: %d", resp.StatusCode)
	}

	var result SeriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	log.WithFields(log.Fields{
		"vehicle_id":      series.VehicleID,
		"inspection_type": series.InspectionType,
		"start_date":      series.StartDate,
		"created":         len(result.Created),
		"skipped":         result.Skipped,
	}).Info("Created inspection series")

	if len(result.Errors) > 0 {
		return len(result.Created), fmt.Errorf("series partially created: %v", result.Errors)
	}
	return len(result.Created), nil
}

func triggerMaintain(apiURL string) (MaintainResponse, error) {
	var report MaintainResponse
	resp, err := authorizedRequest(http.MethodPost, apiURL+"/schedules/maintain", nil)
	if err != nil {
		return report, fmt.Errorf("failed to trigger maintenance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusMultiStatus {
		return report, fmt.Errorf("maintenance failed with status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return report, fmt.Errorf("failed to decode report: %w", err)
	}
	return report, nil
}

// generateFleet creates one series per inspection type for each vehicle and
// returns the number of schedules created.
func generateFleet(apiURL string, fleetSize int, types []InspectionType, today time.Time) (int, int) {
	created, failures := 0, 0
	for i := 0; i < fleetSize; i++ {
		vehicleID := fmt.Sprintf("vehicle-%03d", i+1)
		for _, it := range types {
			n, err := createSeries(apiURL, randomSeries(vehicleID, it, today))
			created += n
			if err != nil {
				failures++
				log.WithError(err).WithField("vehicle_id", vehicleID).Error("Failed to create series")
			}
		}
	}
	return created, failures
}

func main() {
	authToken = os.Getenv("LOADGEN_AUTH_TOKEN")

	fleetSize := 10
	if val := os.Getenv("FLEET_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			fleetSize = n
		}
	}

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    apiURL,
	}).Info("Starting schedule load generation")

	types, err := fetchInspectionTypes(apiURL)
	if err != nil {
		log.WithError(err).Warn("Using built-in inspection types")
		types = fallbackTypes
	}

	created, failures := generateFleet(apiURL, fleetSize, types, time.Now().UTC())
	log.WithFields(log.Fields{"created": created, "failures": failures}).Info("Series creation completed")
	if created == 0 && failures > 0 {
		log.Error("No schedules created. Ensure LOADGEN_AUTH_TOKEN is valid and API is reachable. Exiting.")
		os.Exit(1)
	}

	report, err := triggerMaintain(apiURL)
	if err != nil {
		log.WithError(err).Fatal("Horizon maintenance failed")
	}
	log.WithFields(log.Fields{
		"series_processed":   report.SeriesProcessed,
		"schedules_created":  report.SchedulesCreated,
		"duplicates_skipped": report.DuplicatesSkipped,
		"errors":             len(report.Errors),
	}).Info("Horizon maintenance completed")
}
