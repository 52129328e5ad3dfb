package model

import "time"

// Overall service states
const (
	OverallOperational    = "operational"
	OverallIssuesDetected = "issues_detected"
)

// Dependency probe states
const (
	DependencyOK           = "ok"
	DependencyError        = "error"
	DependencyNotAvailable = "N/A"
)

// ServiceStatus reports the verification service and its dependencies
type ServiceStatus struct {
	OverallStatus string             `json:"overall_status"`
	Timestamp     time.Time          `json:"timestamp"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// DependencyStatus describes one external dependency
type DependencyStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Enabled    bool   `json:"enabled"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}
