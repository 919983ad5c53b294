package subscriptions

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azure-cost-alerts/internal/fetcher"
)

type staticLister struct {
	subs []Subscription
	err  error
}

func (s staticLister) List(context.Context) ([]Subscription, error) {
	return s.subs, s.err
}

var sample = []Subscription{
	{Name: "corp-dev", ID: "1"},
	{Name: "corp-prod", ID: "2"},
	{Name: "lab-sandbox", ID: "3"},
}

func TestFilterByPrefix(t *testing.T) {
	got := FilterByPrefix(sample, "corp-")
	require.Len(t, got, 2)
	assert.Equal(t, "corp-dev", got[0].Name)
	assert.Equal(t, "corp-prod", got[1].Name)

	assert.Len(t, FilterByPrefix(sample, ""), 3)
	assert.Empty(t, FilterByPrefix(sample, "nope"))
}

func TestDiscover(t *testing.T) {
	subs, err := Discover(context.Background(), staticLister{subs: sample}, "corp", zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	_, err = Discover(context.Background(), staticLister{subs: sample}, "finance", zerolog.Nop())
	require.ErrorIs(t, err, ErrEmptySubscriptionSet)

	upstream := errors.New("boom")
	_, err = Discover(context.Background(), staticLister{err: upstream}, "corp", zerolog.Nop())
	require.ErrorIs(t, err, upstream)
}

func TestCommonPrefixAndShortName(t *testing.T) {
	matched := FilterByPrefix(sample, "corp")
	prefix := CommonPrefix(matched)
	assert.Equal(t, "corp-", prefix)
	assert.Equal(t, "dev", ShortName("corp-dev", prefix))

	assert.Equal(t, "", CommonPrefix(sample))
	assert.Equal(t, "", CommonPrefix(nil))

	single := []Subscription{{Name: "corp-dev"}}
	assert.Equal(t, "corp-dev", ShortName("corp-dev", CommonPrefix(single)))
}

type fakeSTS struct {
	account string
	err     error
}

func (f fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

func TestAWSLister(t *testing.T) {
	subs, err := NewAWSListerWithAPI(fakeSTS{account: "123456789012"}, "").List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Subscription{{Name: "123456789012", ID: "123456789012"}}, subs)

	subs, err = NewAWSListerWithAPI(fakeSTS{account: "123456789012"}, "billing-prod").List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "billing-prod", subs[0].Name)

	_, err = NewAWSListerWithAPI(fakeSTS{err: errors.New("expired")}, "").List(context.Background())
	require.ErrorIs(t, err, fetcher.ErrUpstreamAuth)
}
