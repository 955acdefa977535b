package org

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	OrganizationStatusActive = "Active"

	maxNameLength     = 255
	maxIndustryLength = 100
)

// Organization is the tenant root
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Industry  string    `json:"industry"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrganization creates an active organization
func NewOrganization(name, industry string) (*Organization, error) {
	o := &Organization{
		ID:     uuid.New(),
		Status: OrganizationStatusActive,
	}
	if err := o.Rename(name, industry); err != nil {
		return nil, err
	}
	o.CreatedAt = o.UpdatedAt
	return o, nil
}

// Rename replaces the organization's descriptive fields
func (o *Organization) Rename(name, industry string) error {
	name = strings.TrimSpace(name)
	industry = strings.TrimSpace(industry)
	if name == "" || len(name) > maxNameLength || len(industry) > maxIndustryLength {
		return ErrInvalidOrganization
	}
	o.Name = name
	o.Industry = industry
	o.UpdatedAt = time.Now().UTC()
	return nil
}
