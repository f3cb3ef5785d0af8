// Package ingest normalizes heterogeneous collector output into the two
// canonical record types consumed by the rest of the engine.
package ingest

import "time"

// Source identifies where a cost record originated.
type Source string

const (
	SourceAzure      Source = "azure"
	SourceKubernetes Source = "kubernetes"
)

// DefaultCurrency is used when a collector row carries no currency.
const DefaultCurrency = "USD"

// CostRecord is a normalized billing line item. Records are immutable once
// ingested; identity is (source, resource_name, timestamp, service_name).
type CostRecord struct {
	Source        Source            `json:"source"`
	Namespace     string            `json:"namespace,omitempty"`
	ResourceGroup string            `json:"resource_group,omitempty"`
	ServiceName   string            `json:"service_name,omitempty"`
	ResourceName  string            `json:"resource_name"`
	ResourceType  string            `json:"resource_type"`
	Cost          float64           `json:"cost"`
	Currency      string            `json:"currency"`
	Timestamp     time.Time         `json:"timestamp"`
	BillingPeriod string            `json:"billing_period,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// ResourceFigures holds requests, limits and observed usage for one
// resource dimension. Units are cores for CPU and bytes for memory/storage.
type ResourceFigures struct {
	Requests float64 `json:"requests"`
	Limits   float64 `json:"limits"`
	Usage    float64 `json:"usage"`
}

// UsageSample is a normalized pod resource sample. Immutable.
type UsageSample struct {
	Namespace      string            `json:"namespace"`
	PodName        string            `json:"pod_name"`
	DeploymentName string            `json:"deployment_name"`
	ClusterName    string            `json:"cluster_name"`
	CPU            ResourceFigures   `json:"cpu"`
	Memory         ResourceFigures   `json:"memory"`
	Storage        ResourceFigures   `json:"storage"`
	Timestamp      time.Time         `json:"timestamp"`
	Labels         map[string]string `json:"labels,omitempty"`
}
