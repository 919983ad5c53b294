package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"

	"azure-cost-alerts/internal/fetcher"
)

// AzureLister lists subscriptions through Azure Resource Manager.
type AzureLister struct {
	client *armsubscriptions.Client
}

// NewAzureLister builds a lister for the given credential.
func NewAzureLister(cred azcore.TokenCredential) (*AzureLister, error) {
	client, err := armsubscriptions.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create subscriptions client: %w", err)
	}
	return &AzureLister{client: client}, nil
}

// List pages through every subscription the credential can see.
func (l *AzureLister) List(ctx context.Context) ([]Subscription, error) {
	var subs []Subscription
	pager := l.client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classifyAzureError(err)
		}
		for _, s := range page.Value {
			if s == nil || s.SubscriptionID == nil {
				continue
			}
			name := *s.SubscriptionID
			if s.DisplayName != nil {
				name = *s.DisplayName
			}
			subs = append(subs, Subscription{Name: name, ID: *s.SubscriptionID})
		}
	}
	return subs, nil
}

func classifyAzureError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == http.StatusUnauthorized || respErr.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: list subscriptions: %v", fetcher.ErrUpstreamAuth, err)
		}
	}
	return fmt.Errorf("%w: list subscriptions: %v", fetcher.ErrUpstreamRequest, err)
}

var _ Lister = (*AzureLister)(nil)
