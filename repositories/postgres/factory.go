package postgres

import (
	"context"

	"github.com/upb/faculty-auth/config"
	"github.com/upb/faculty-auth/repositories"
	"github.com/upb/faculty-auth/tenancy"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory opens the database and, when configured, migrates it
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrations(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &RepositoryFactory{db: db, logger: logger}, nil
}

// NewRepositoryFactoryFromDB builds a factory around an open DB
func NewRepositoryFactoryFromDB(db *DB, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{db: db, logger: logger}
}

// NewRepositories creates all repository instances. Tenant-owned
// repositories share enforcer.
func (f *RepositoryFactory) NewRepositories(enforcer *tenancy.Enforcer) *repositories.Repositories {
	return &repositories.Repositories{
		RefreshTokens: NewRefreshTokenRepository(f.db, f.logger),
		Principals:    NewPrincipalRepository(f.db, f.logger),
		Faculties:     NewFacultyRepository(f.db, f.logger),
		Courses:       NewCourseRepository(f.db, enforcer, f.logger),
		Students:      NewStudentRepository(f.db, enforcer, f.logger),
		AuditLogs:     NewAuditRepository(f.db, f.logger),
	}
}

// GetTransactionManager returns a transaction manager
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return NewTransactionManager(f.db, f.logger)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
