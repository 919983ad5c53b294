package tagexport

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"azure-cost-alerts/internal/fetcher"
)

const (
	// Unknown is reported for resource types missing from the support table.
	Unknown = "Unknown"

	defaultResourcesAPI = "2021-04-01"
	maxResourcePages    = 200
)

// Resource is one ARM resource with its tags.
type Resource struct {
	ID   string            `json:"id"`
	Name string            `json:"name"`
	Type string            `json:"type"`
	Tags map[string]string `json:"tags"`
}

// Row is one (resource, tag) pair enriched with tag support information.
type Row struct {
	Subscription string
	ResourceName string
	Provider     string
	ResourceType string
	TagKey       string
	TagValue     string
	SupportsTags string
}

// Header lists the column names for Row values.
func Header() []string {
	return []string{"Subscription", "Resource Name", "Provider", "Resource Type", "Tag Key", "Tag Value", "Supports Tags"}
}

// Values renders the row in Header order.
func (r Row) Values() []string {
	return []string{r.Subscription, r.ResourceName, r.Provider, r.ResourceType, r.TagKey, r.TagValue, r.SupportsTags}
}

// SupportTable maps "provider/resourcetype" (lower case) to the support flag.
type SupportTable map[string]string

// LoadSupportTable reads a CSV with providerName, resourceType and supportsTags columns.
func LoadSupportTable(path string) (SupportTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tag support table: %w", err)
	}
	defer file.Close()
	return ReadSupportTable(file)
}

// ReadSupportTable parses tag support rows; columns are located by header name.
func ReadSupportTable(r io.Reader) (SupportTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read tag support header: %w", err)
	}
	provider, rtype, supports := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "providername", "provider":
			provider = i
		case "resourcetype":
			rtype = i
		case "supportstags":
			supports = i
		}
	}
	if provider < 0 || rtype < 0 || supports < 0 {
		return nil, errors.New("tag support table needs providerName, resourceType and supportsTags columns")
	}

	table := make(SupportTable)
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(fields) <= provider || len(fields) <= rtype || len(fields) <= supports {
			continue
		}
		table[supportKey(fields[provider], fields[rtype])] = normaliseSupport(fields[supports])
	}
	return table, nil
}

// Lookup returns the support flag for a resource type, or Unknown.
func (t SupportTable) Lookup(provider, resourceType string) string {
	if v, ok := t[supportKey(provider, resourceType)]; ok {
		return v
	}
	return Unknown
}

func supportKey(provider, resourceType string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + "/" + strings.ToLower(strings.TrimSpace(resourceType))
}

func normaliseSupport(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true":
		return "Yes"
	case "no", "false":
		return "No"
	case "":
		return Unknown
	default:
		return strings.TrimSpace(raw)
	}
}

// SplitResourceType separates "Microsoft.Compute/virtualMachines" into provider and type.
func SplitResourceType(full string) (string, string) {
	provider, rest, found := strings.Cut(full, "/")
	if !found {
		return full, ""
	}
	return provider, rest
}

// Rows flattens resources into tag rows sorted by resource then tag key. Untagged resources are skipped.
func Rows(subscription string, resources []Resource, table SupportTable) []Row {
	var rows []Row
	for _, res := range resources {
		provider, rtype := SplitResourceType(res.Type)
		support := table.Lookup(provider, rtype)
		for key, value := range res.Tags {
			rows = append(rows, Row{
				Subscription: subscription,
				ResourceName: res.Name,
				Provider:     provider,
				ResourceType: rtype,
				TagKey:       key,
				TagValue:     value,
				SupportsTags: support,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ResourceName != rows[j].ResourceName {
			return rows[i].ResourceName < rows[j].ResourceName
		}
		return rows[i].TagKey < rows[j].TagKey
	})
	return rows
}

// Lister enumerates resources through the management API.
type Lister struct {
	client     *fetcher.Client
	baseURL    string
	apiVersion string
	logger     zerolog.Logger
}

// NewLister builds a resource lister on the shared management client.
func NewLister(client *fetcher.Client, managementURL, apiVersion string, logger zerolog.Logger) *Lister {
	baseURL := strings.TrimRight(managementURL, "/")
	if baseURL == "" {
		baseURL = "https://management.azure.com"
	}
	if apiVersion == "" {
		apiVersion = defaultResourcesAPI
	}
	return &Lister{
		client:     client,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		logger:     logger.With().Str("component", "tag_lister").Logger(),
	}
}

// ListResources returns every resource of the subscription, following nextLink.
func (l *Lister) ListResources(ctx context.Context, subscriptionID, token string) ([]Resource, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/resources?api-version=%s", l.baseURL, subscriptionID, l.apiVersion)

	var resources []Resource
	for page := 0; url != "" && page < maxResourcePages; page++ {
		payload, err := l.client.Do(ctx, http.MethodGet, url, token, nil)
		if err != nil {
			return nil, err
		}
		var res struct {
			Value    []Resource `json:"value"`
			NextLink string     `json:"nextLink"`
		}
		if err := json.Unmarshal(payload, &res); err != nil {
			return nil, fmt.Errorf("%w: decode resources: %v", fetcher.ErrUpstreamRequest, err)
		}
		resources = append(resources, res.Value...)
		url = res.NextLink
	}
	if url != "" {
		return nil, fmt.Errorf("%w: resource list exceeds %d pages", fetcher.ErrUpstreamRequest, maxResourcePages)
	}

	l.logger.Debug().Str("subscription_id", subscriptionID).Int("resources", len(resources)).Msg("resources listed")
	return resources, nil
}
