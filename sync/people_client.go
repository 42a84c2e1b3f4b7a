// ABOUTME: Google People binding for the mirror engine
// ABOUTME: Pages connections and other contacts, and creates contacts in the destination
package sync

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

const (
	partitionConnections   = "connections"
	partitionOtherContacts = "otherContacts"
	connectionsItemCap     = 1000
	otherContactsItemCap   = 2000
	contactsTotalCap       = 2000
	contactFields          = "names,emailAddresses"
)

// ContactLimits bounds contact enumeration. When other contacts adds anything,
// the merged list keeps the first contact per key, so a person in both
// sub-lists is counted once.
func ContactLimits() Limits[Contact] {
	return Limits[Contact]{TotalCap: contactsTotalCap, Dedupe: ContactKey}
}

// PeopleOptions tunes the contacts binding.
type PeopleOptions struct {
	// Endpoint overrides the API base URL.
	Endpoint string
}

// PeopleCollection implements RemoteCollection[Contact] over People v1.
type PeopleCollection struct {
	service *people.Service
}

// NewPeopleCollection creates a contacts binding that calls through client.
func NewPeopleCollection(ctx context.Context, client *http.Client, opts PeopleOptions) (*PeopleCollection, error) {
	if client == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(client)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	service, err := people.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create People service: %w", err)
	}

	return &PeopleCollection{service: service}, nil
}

// ListPartitions returns the primary connection list and the supplementary
// "other contacts" list. The latter is optional.
func (c *PeopleCollection) ListPartitions(_ context.Context) ([]Partition, error) {
	return []Partition{
		{ID: partitionConnections, Label: "Contacts", ItemCap: connectionsItemCap},
		{ID: partitionOtherContacts, Label: "Other contacts", ItemCap: otherContactsItemCap, Optional: true},
	}, nil
}

// ListPage fetches one page of people from a partition.
func (c *PeopleCollection) ListPage(ctx context.Context, partition Partition, cursor string) (Page[Contact], error) {
	var (
		persons []*people.Person
		next    string
	)

	switch partition.ID {
	case partitionConnections:
		call := c.service.People.Connections.List("people/me").
			PersonFields(contactFields).
			PageSize(PageSize)
		if cursor != "" {
			call = call.PageToken(cursor)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return Page[Contact]{}, describeAPIError("people_connections", "", err)
		}
		persons, next = resp.Connections, resp.NextPageToken

	case partitionOtherContacts:
		call := c.service.OtherContacts.List().
			ReadMask(contactFields).
			PageSize(PageSize)
		if cursor != "" {
			call = call.PageToken(cursor)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return Page[Contact]{}, describeAPIError("people_other_contacts", "", err)
		}
		persons, next = resp.OtherContacts, resp.NextPageToken

	default:
		return Page[Contact]{}, fmt.Errorf("unknown contacts partition %q", partition.ID)
	}

	page := Page[Contact]{NextCursor: next}
	for _, person := range persons {
		contact, ok := convertPerson(person)
		if !ok {
			continue
		}
		page.Records = append(page.Records, contact)
	}

	return page, nil
}

// Create creates a contact with the first display name and the key address.
func (c *PeopleCollection) Create(ctx context.Context, contact Contact) error {
	email := ContactKey(contact)
	if email == "" {
		return fmt.Errorf("contact has no email address")
	}

	body := &people.Person{
		EmailAddresses: []*people.EmailAddress{{Value: email}},
	}
	if name := contact.DisplayName(); name != "" {
		body.Names = []*people.Name{{DisplayName: name}}
	}

	if _, err := c.service.People.CreateContact(body).Context(ctx).Do(); err != nil {
		return describeAPIError("people_create", "", err)
	}
	return nil
}

// convertPerson converts a People API Person to a Contact. People without any
// email address cannot be deduplicated and are dropped.
func convertPerson(person *people.Person) (Contact, bool) {
	if person == nil {
		return Contact{}, false
	}

	contact := Contact{ResourceName: person.ResourceName}
	for _, email := range person.EmailAddresses {
		if email == nil {
			continue
		}
		if n := normalizeEmail(email.Value); n != "" {
			contact.Emails = append(contact.Emails, n)
		}
	}
	if len(contact.Emails) == 0 {
		return Contact{}, false
	}

	for _, name := range person.Names {
		if name != nil && name.DisplayName != "" {
			contact.Names = append(contact.Names, name.DisplayName)
		}
	}

	return contact, true
}
