// Package api contains the JSON request/response structs of the Jason API.
// This package is shared between the client library and the CLI.
package api

import (
	"fmt"
	"strconv"
	"strings"
)

// ProcessType selects what the remote service does with a submission.
type ProcessType string

const (
	ProcessTypeGNSS       ProcessType = "GNSS"
	ProcessTypeConversion ProcessType = "CONVERSION"
)

// Process states reported by the service.
const (
	StatusPending  = "PENDING"
	StatusRunning  = "RUNNING"
	StatusFinished = "FINISHED"
	StatusError    = "ERROR"
)

// ResultTypeZip tags the downloadable result archive.
const ResultTypeZip = "zip"

// Dynamics describes how the rover moved during the observation.
type Dynamics string

const (
	DynamicsStatic  Dynamics = "static"
	DynamicsDynamic Dynamics = "dynamic"
)

// ParseDynamics validates a dynamics mode. Empty means dynamic.
func ParseDynamics(s string) (Dynamics, error) {
	switch Dynamics(s) {
	case "":
		return DynamicsDynamic, nil
	case DynamicsStatic, DynamicsDynamic:
		return Dynamics(s), nil
	}
	return "", fmt.Errorf("invalid dynamics %q (want static or dynamic)", s)
}

// Strategy forces a positioning strategy. StrategyAuto lets the service choose.
type Strategy string

const (
	StrategyAuto Strategy = "auto"
	StrategyPPP  Strategy = "PPP"
	StrategyPPK  Strategy = "PPK"
	StrategySPP  Strategy = "SPP"
)

// ParseStrategy validates a strategy name. Empty means auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyAuto, nil
	case StrategyAuto, StrategyPPP, StrategyPPK, StrategySPP:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("invalid strategy %q (want auto, PPP, PPK or SPP)", s)
}

// BasePosition is the known position of the base station.
type BasePosition struct {
	Latitude  float64
	Longitude float64
	Height    float64
}

// String formats the position as "lat,lon,height", the form the service expects.
func (p BasePosition) String() string {
	return strings.Join([]string{
		strconv.FormatFloat(p.Latitude, 'f', -1, 64),
		strconv.FormatFloat(p.Longitude, 'f', -1, 64),
		strconv.FormatFloat(p.Height, 'f', -1, 64),
	}, ",")
}

// NewBasePosition builds a position from a lat, lon, height triple.
func NewBasePosition(values []float64) (*BasePosition, error) {
	if len(values) != 3 {
		return nil, fmt.Errorf("base position needs 3 values (lat,lon,height), got %d", len(values))
	}
	return &BasePosition{Latitude: values[0], Longitude: values[1], Height: values[2]}, nil
}

// Process is a remote processing job as reported by the service.
type Process struct {
	ID         ID     `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	SourceFile string `json:"source_file"`
	Created    string `json:"created"`
}

// Result is one downloadable artifact of a finished process.
type Result struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// ProcessStatus is the response body of GET /processes/{id}.
type ProcessStatus struct {
	Process Process  `json:"process"`
	Results []Result `json:"results,omitempty"`
	Message string   `json:"message,omitempty"`
}

// ResultOfType returns the first result whose type matches exactly.
func (s *ProcessStatus) ResultOfType(resultType string) (Result, bool) {
	for _, r := range s.Results {
		if r.Type == resultType {
			return r, true
		}
	}
	return Result{}, false
}

// SubmitResponse is the response body of POST /processes.
type SubmitResponse struct {
	ID      ID     `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProcessSummary is the reduced view of a process printed by list.
type ProcessSummary struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	SourceFile string `json:"source_file"`
	Created    string `json:"created"`
}

// SummaryFields is the column order of ProcessSummary.
var SummaryFields = []string{"id", "type", "status", "source_file", "created"}

// Values returns the summary columns in SummaryFields order.
func (s ProcessSummary) Values() []string {
	return []string{s.ID, s.Type, s.Status, s.SourceFile, s.Created}
}
