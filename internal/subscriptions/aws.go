package subscriptions

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"azure-cost-alerts/internal/fetcher"
)

// CallerIdentityAPI is the subset of the STS client used here.
type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSLister reports the caller's account as the only subscription.
type AWSLister struct {
	api  CallerIdentityAPI
	name string
}

// LoadAWSConfig loads shared AWS configuration for an optional profile and region.
func LoadAWSConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("%w: load aws config: %v", fetcher.ErrUpstreamAuth, err)
	}
	return cfg, nil
}

// NewAWSLister builds a lister from a loaded config. name overrides the account id as display name.
func NewAWSLister(cfg aws.Config, name string) *AWSLister {
	return NewAWSListerWithAPI(sts.NewFromConfig(cfg), name)
}

// NewAWSListerWithAPI builds a lister over any STS implementation.
func NewAWSListerWithAPI(api CallerIdentityAPI, name string) *AWSLister {
	return &AWSLister{api: api, name: name}
}

// List returns the calling account.
func (l *AWSLister) List(ctx context.Context) ([]Subscription, error) {
	out, err := l.api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("%w: get caller identity: %v", fetcher.ErrUpstreamAuth, err)
	}
	account := aws.ToString(out.Account)
	name := l.name
	if name == "" {
		name = account
	}
	return []Subscription{{Name: name, ID: account}}, nil
}

var _ Lister = (*AWSLister)(nil)
