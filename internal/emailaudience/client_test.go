package emailaudience

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	createInputs []*sesv2.CreateContactInput
	updateInputs []*sesv2.UpdateContactInput
	createErr    error
}

func (f *fakeSES) CreateContact(_ context.Context, params *sesv2.CreateContactInput, _ ...func(*sesv2.Options)) (*sesv2.CreateContactOutput, error) {
	f.createInputs = append(f.createInputs, params)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &sesv2.CreateContactOutput{}, nil
}

func (f *fakeSES) UpdateContact(_ context.Context, params *sesv2.UpdateContactInput, _ ...func(*sesv2.Options)) (*sesv2.UpdateContactOutput, error) {
	f.updateInputs = append(f.updateInputs, params)
	return &sesv2.UpdateContactOutput{}, nil
}

func TestAddContactOptsIntoTopic(t *testing.T) {
	ses := &fakeSES{}
	client := NewClientWithAPI(ses, "matchwell-members")

	err := client.AddContact(context.Background(), "trial-power-users", "ana@example.com", "Ana")
	require.NoError(t, err)
	require.Len(t, ses.createInputs, 1)

	in := ses.createInputs[0]
	assert.Equal(t, "matchwell-members", *in.ContactListName)
	assert.Equal(t, "ana@example.com", *in.EmailAddress)
	assert.Contains(t, *in.AttributesData, "Ana")
	require.Len(t, in.TopicPreferences, 1)
	assert.Equal(t, "trial-power-users", *in.TopicPreferences[0].TopicName)
	assert.Equal(t, types.SubscriptionStatusOptIn, in.TopicPreferences[0].SubscriptionStatus)
	assert.Empty(t, ses.updateInputs)
}

func TestAddContactUpdatesExisting(t *testing.T) {
	ses := &fakeSES{createErr: &types.AlreadyExistsException{}}
	client := NewClientWithAPI(ses, "matchwell-members")

	err := client.AddContact(context.Background(), "trial-power-users", "ana@example.com", "Ana")
	require.NoError(t, err)
	require.Len(t, ses.updateInputs, 1)
	assert.Equal(t, "ana@example.com", *ses.updateInputs[0].EmailAddress)
}
