package domain

import (
	"fmt"
	"time"
)

// Project groups a user's documents into one retrieval scope.
type Project struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
}

// ValidateProject validates a Project instance.
func ValidateProject(p *Project) error {
	if p == nil {
		return fmt.Errorf("project cannot be nil")
	}
	if p.ID == "" {
		return fmt.Errorf("project ID is required")
	}
	if p.OwnerID == "" {
		return fmt.Errorf("project OwnerID is required")
	}
	if p.Name == "" {
		return fmt.Errorf("project Name is required")
	}
	return nil
}
