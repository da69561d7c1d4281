// Package emailaudience enrolls people into email marketing audiences,
// modeled as topics on an SES v2 contact list.
package emailaudience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/matchwell/growth-plane/internal/pkg/logger"
)

// Config holds SES contact list settings.
type Config struct {
	Region          string `yaml:"region"`
	AccessKey       string `yaml:"access_key"`
	SecretKey       string `yaml:"secret_key"`
	ContactListName string `yaml:"contact_list_name"`
	Enabled         bool   `yaml:"enabled"`
}

// sesAPI is the slice of the SES v2 client the audience client uses.
type sesAPI interface {
	CreateContact(ctx context.Context, params *sesv2.CreateContactInput, optFns ...func(*sesv2.Options)) (*sesv2.CreateContactOutput, error)
	UpdateContact(ctx context.Context, params *sesv2.UpdateContactInput, optFns ...func(*sesv2.Options)) (*sesv2.UpdateContactOutput, error)
}

// Client manages contacts on one SES contact list. An audience ID is a topic
// name on that list; adding a contact opts them into the topic.
type Client struct {
	api      sesAPI
	listName string
}

// NewClient creates an email audience client backed by SES v2.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Client{
		api:      sesv2.NewFromConfig(awsCfg),
		listName: cfg.ContactListName,
	}, nil
}

// NewClientWithAPI wires a pre-built SES API, for tests.
func NewClientWithAPI(api sesAPI, listName string) *Client {
	return &Client{api: api, listName: listName}
}

type contactAttributes struct {
	FirstName string `json:"first_name,omitempty"`
}

// AddContact creates the contact opted into the audience topic. Retries are
// safe: an existing contact is updated in place.
func (c *Client) AddContact(ctx context.Context, audienceID, email, firstName string) error {
	attrs, err := json.Marshal(contactAttributes{FirstName: firstName})
	if err != nil {
		return fmt.Errorf("marshal contact attributes: %w", err)
	}

	prefs := []types.TopicPreference{{
		TopicName:          aws.String(audienceID),
		SubscriptionStatus: types.SubscriptionStatusOptIn,
	}}

	_, err = c.api.CreateContact(ctx, &sesv2.CreateContactInput{
		ContactListName:  aws.String(c.listName),
		EmailAddress:     aws.String(email),
		AttributesData:   aws.String(string(attrs)),
		TopicPreferences: prefs,
	})
	if err == nil {
		logger.Info("contact added to email audience", "audience_id", audienceID, "email", email)
		return nil
	}

	var exists *types.AlreadyExistsException
	if !errors.As(err, &exists) {
		return fmt.Errorf("create contact: %w", err)
	}

	_, err = c.api.UpdateContact(ctx, &sesv2.UpdateContactInput{
		ContactListName:  aws.String(c.listName),
		EmailAddress:     aws.String(email),
		AttributesData:   aws.String(string(attrs)),
		TopicPreferences: prefs,
	})
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	logger.Info("contact updated in email audience", "audience_id", audienceID, "email", email)
	return nil
}
