package service

import (
	"hostbot/internal/catalog"
	"hostbot/internal/model"

	"github.com/rs/zerolog"
)

// packageService implements PackageService over a loaded catalogue.
type packageService struct {
	catalog catalog.Catalog
	logger  zerolog.Logger
}

// NewPackageService creates a new package service.
func NewPackageService(c catalog.Catalog, logger zerolog.Logger) PackageService {
	return &packageService{
		catalog: c,
		logger:  logger.With().Str("service", "package").Logger(),
	}
}

// ListPackages returns the packages currently on sale.
func (s *packageService) ListPackages() []model.Package {
	return s.catalog.List()
}

// GetPackage returns an active package by key.
func (s *packageService) GetPackage(key string) (model.Package, error) {
	p, err := catalog.Resolve(s.catalog, key)
	if err != nil {
		s.logger.Debug().Err(err).Str("package", key).Msg("package lookup failed")
		return model.Package{}, err
	}
	return p, nil
}
