package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
)

// PrincipalRepository implements repositories.PrincipalRepository
type PrincipalRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.Principal
	byEmail map[string]uuid.UUID
}

// NewPrincipalRepository creates an empty repository
func NewPrincipalRepository() *PrincipalRepository {
	return &PrincipalRepository{
		byID:    make(map[uuid.UUID]*models.Principal),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *PrincipalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("principal: %w", repositories.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (r *PrincipalRepository) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	r.mu.RLock()
	id, ok := r.byEmail[models.NormalizeEmail(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("principal: %w", repositories.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r *PrincipalRepository) Create(ctx context.Context, principal *models.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := models.NormalizeEmail(principal.Email)
	if _, exists := r.byEmail[email]; exists {
		return fmt.Errorf("failed to create principal: %w", repositories.ErrDuplicate)
	}
	if _, exists := r.byID[principal.ID]; exists {
		return fmt.Errorf("failed to create principal: %w", repositories.ErrDuplicate)
	}
	stored := *principal
	stored.Email = email
	r.byID[stored.ID] = &stored
	r.byEmail[email] = stored.ID
	return nil
}

// SetStatus changes a principal's status
func (r *PrincipalRepository) SetStatus(id uuid.UUID, status models.PrincipalStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.Status = status
	}
}

// FacultyRepository implements repositories.FacultyRepository
type FacultyRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*models.Faculty
}

// NewFacultyRepository creates an empty repository
func NewFacultyRepository() *FacultyRepository {
	return &FacultyRepository{byID: make(map[uuid.UUID]*models.Faculty)}
}

// Add stores a faculty
func (r *FacultyRepository) Add(f *models.Faculty) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *f
	r.byID[f.ID] = &c
}

func (r *FacultyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Faculty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("faculty %s: %w", id, repositories.ErrNotFound)
	}
	c := *f
	return &c, nil
}

func (r *FacultyRepository) List(ctx context.Context) ([]*models.Faculty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	faculties := make([]*models.Faculty, 0, len(r.byID))
	for _, f := range r.byID {
		c := *f
		faculties = append(faculties, &c)
	}
	sort.Slice(faculties, func(i, j int) bool { return faculties[i].Code < faculties[j].Code })
	return faculties, nil
}
