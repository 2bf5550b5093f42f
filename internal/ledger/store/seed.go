package store

import (
	"context"
	"fmt"

	"las/internal/ledger/models"
)

// Seeder is the provisioning surface shared by both stores.
type Seeder interface {
	CreateInstance(ctx context.Context, inst *models.Instance) error
	CreateUser(ctx context.Context, user *models.User) error
	CreateLiabilityType(ctx context.Context, lt *models.LiabilityType) error
}

// Demo is what SeedDemo provisioned.
type Demo struct {
	Instance models.Instance
	User     models.User
	Internal models.LiabilityType
	External models.LiabilityType
}

// SeedDemo creates a demo instance with one API user and one internal and one
// external liability type. Instances are otherwise provisioned out of band.
func SeedDemo(ctx context.Context, s Seeder) (*Demo, error) {
	d := &Demo{Instance: models.Instance{Name: "demo"}}
	if err := s.CreateInstance(ctx, &d.Instance); err != nil {
		return nil, fmt.Errorf("seed instance: %w", err)
	}

	d.User = models.User{Username: "demo-client", InstanceID: d.Instance.ID}
	if err := s.CreateUser(ctx, &d.User); err != nil {
		return nil, fmt.Errorf("seed user: %w", err)
	}

	d.Internal = models.LiabilityType{
		InstanceID:  d.Instance.ID,
		Name:        "Guarantee limit",
		Postfix:     "limit",
		TypeRunning: models.TypeRunningInternal,
		IsDefault:   true,
	}
	if err := s.CreateLiabilityType(ctx, &d.Internal); err != nil {
		return nil, fmt.Errorf("seed internal liability type: %w", err)
	}

	d.External = models.LiabilityType{
		InstanceID:  d.Instance.ID,
		Name:        "External registry",
		Postfix:     "external",
		TypeRunning: models.TypeRunningExternal,
	}
	if err := s.CreateLiabilityType(ctx, &d.External); err != nil {
		return nil, fmt.Errorf("seed external liability type: %w", err)
	}
	return d, nil
}
