package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
)

const (
	azureLoginURL      = "https://login.microsoftonline.com"
	azureManagementURL = "https://management.azure.com"
	costQueryVersion   = "2023-03-01"
)

// AzureCostClient queries the Azure Cost Management API with client
// credential authentication. Implements BillingClient.
type AzureCostClient struct {
	subscriptionID string
	tenantID       string
	clientID       string
	clientSecret   string
	httpClient     *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewAzureCostClient creates a client for one subscription.
func NewAzureCostClient(subscriptionID, tenantID, clientID, clientSecret string) (*AzureCostClient, error) {
	if subscriptionID == "" || tenantID == "" || clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("azure credentials incomplete")
	}
	return &AzureCostClient{
		subscriptionID: subscriptionID,
		tenantID:       tenantID,
		clientID:       clientID,
		clientSecret:   clientSecret,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// accessToken returns a cached AAD token, refreshing when within a minute of
// expiry.
func (c *AzureCostClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {azureManagementURL + "/.default"},
	}

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", azureLoginURL, c.tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.token = body.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return c.token, nil
}

// costQuery is the Cost Management query payload: daily actual cost grouped
// by resource.
type costQuery struct {
	Type       string `json:"type"`
	Timeframe  string `json:"timeframe"`
	TimePeriod struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"timePeriod"`
	Dataset struct {
		Granularity string `json:"granularity"`
		Aggregation map[string]struct {
			Name     string `json:"name"`
			Function string `json:"function"`
		} `json:"aggregation"`
		Grouping []struct {
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"grouping"`
	} `json:"dataset"`
}

// costQueryResponse is the columnar response shape of the query API.
type costQueryResponse struct {
	Properties struct {
		Columns []struct {
			Name string `json:"name"`
		} `json:"columns"`
		Rows [][]interface{} `json:"rows"`
	} `json:"properties"`
}

// UsageRows implements BillingClient: actual daily costs per resource for
// the window.
func (c *AzureCostClient) UsageRows(ctx context.Context, from, to time.Time) ([]ingest.BillingRow, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	query := costQuery{Type: "ActualCost", Timeframe: "Custom"}
	query.TimePeriod.From = from.Format(time.RFC3339)
	query.TimePeriod.To = to.Format(time.RFC3339)
	query.Dataset.Granularity = "Daily"
	query.Dataset.Aggregation = map[string]struct {
		Name     string `json:"name"`
		Function string `json:"function"`
	}{
		"totalCost": {Name: "Cost", Function: "Sum"},
	}
	query.Dataset.Grouping = []struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}{
		{Type: "Dimension", Name: "ResourceId"},
		{Type: "Dimension", Name: "ResourceGroupName"},
		{Type: "Dimension", Name: "ServiceName"},
	}

	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cost query: %w", err)
	}

	endpoint := fmt.Sprintf(
		"%s/subscriptions/%s/providers/Microsoft.CostManagement/query?api-version=%s",
		azureManagementURL, c.subscriptionID, costQueryVersion,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build cost query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cost query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cost query returned %d", resp.StatusCode)
	}

	var body costQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode cost query response: %w", err)
	}

	return c.parseRows(body)
}

// parseRows converts the columnar response into billing rows.
func (c *AzureCostClient) parseRows(body costQueryResponse) ([]ingest.BillingRow, error) {
	cols := make(map[string]int, len(body.Properties.Columns))
	for i, col := range body.Properties.Columns {
		cols[strings.ToLower(col.Name)] = i
	}

	rows := make([]ingest.BillingRow, 0, len(body.Properties.Rows))
	for _, raw := range body.Properties.Rows {
		row := ingest.BillingRow{SubscriptionID: c.subscriptionID}

		if i, ok := cols["cost"]; ok {
			row.Cost = toFloat(raw[i])
		}
		if i, ok := cols["currency"]; ok {
			row.Currency, _ = raw[i].(string)
		}
		if i, ok := cols["resourceid"]; ok {
			if id, ok := raw[i].(string); ok {
				row.ResourceName = resourceNameFromID(id)
				row.ResourceType = resourceTypeFromID(id)
			}
		}
		if i, ok := cols["resourcegroupname"]; ok {
			row.ResourceGroup, _ = raw[i].(string)
		}
		if i, ok := cols["servicename"]; ok {
			row.ServiceName, _ = raw[i].(string)
		}
		if i, ok := cols["usagedate"]; ok {
			row.Date = parseUsageDate(raw[i])
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

// parseUsageDate handles the API's numeric yyyymmdd date encoding.
func parseUsageDate(v interface{}) time.Time {
	var s string
	switch d := v.(type) {
	case float64:
		s = strconv.FormatInt(int64(d), 10)
	case string:
		s = d
	default:
		return time.Time{}
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// resourceNameFromID returns the last segment of an ARM resource ID.
func resourceNameFromID(id string) string {
	parts := strings.Split(strings.TrimSuffix(id, "/"), "/")
	if len(parts) == 0 {
		return id
	}
	return parts[len(parts)-1]
}

// resourceTypeFromID returns the provider/type segment of an ARM resource ID.
func resourceTypeFromID(id string) string {
	parts := strings.Split(id, "/providers/")
	if len(parts) < 2 {
		return ""
	}
	segs := strings.Split(parts[len(parts)-1], "/")
	if len(segs) < 2 {
		return segs[0]
	}
	return segs[0] + "/" + segs[1]
}
