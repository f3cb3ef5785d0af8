// Package aggregate groups cost records into period cost views.
package aggregate

import (
	"strings"

	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
)

// Category is the closed breakdown bucket set. Unknown resource types fall
// into CategoryOther so the breakdown never drifts open-ended.
type Category string

const (
	CategoryCompute Category = "compute"
	CategoryMemory  Category = "memory"
	CategoryStorage Category = "storage"
	CategoryNetwork Category = "network"
	CategoryOther   Category = "other"
)

// Categories lists all buckets in stable order.
func Categories() []Category {
	return []Category{CategoryCompute, CategoryMemory, CategoryStorage, CategoryNetwork, CategoryOther}
}

// azureServiceCategories maps Azure service names to breakdown buckets.
var azureServiceCategories = map[string]Category{
	"virtual machines":         CategoryCompute,
	"azure kubernetes service": CategoryCompute,
	"container instances":      CategoryCompute,
	"app service":              CategoryCompute,
	"functions":                CategoryCompute,
	"storage":                  CategoryStorage,
	"storage accounts":         CategoryStorage,
	"managed disks":            CategoryStorage,
	"bandwidth":                CategoryNetwork,
	"virtual network":          CategoryNetwork,
	"load balancer":            CategoryNetwork,
	"azure dns":                CategoryNetwork,
}

// kubernetesResourceCategories maps kubernetes resource dimensions.
var kubernetesResourceCategories = map[string]Category{
	"cpu":     CategoryCompute,
	"memory":  CategoryMemory,
	"storage": CategoryStorage,
	"network": CategoryNetwork,
}

// Classify returns the breakdown bucket for a cost record using the fixed
// classification table keyed on resource_type, then service_name.
func Classify(rec ingest.CostRecord) Category {
	if rec.Source == ingest.SourceKubernetes {
		if c, ok := kubernetesResourceCategories[strings.ToLower(rec.ResourceType)]; ok {
			return c
		}
		return CategoryOther
	}
	if c, ok := azureServiceCategories[strings.ToLower(rec.ServiceName)]; ok {
		return c
	}
	if c, ok := azureServiceCategories[strings.ToLower(rec.ResourceType)]; ok {
		return c
	}
	return CategoryOther
}
