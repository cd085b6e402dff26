package service

import (
	"context"
	"fmt"

	domainauth "github.com/target/ward-console/internal/domain/auth"
	"github.com/target/ward-console/internal/ports"
)

// DefaultProfilePath is the hospital API endpoint returning the caller's profile.
const DefaultProfilePath = "/users/me"

// ProfileServiceOptions groups dependencies for ProfileService.
type ProfileServiceOptions struct {
	API  API
	Path string // defaults to DefaultProfilePath
}

// ProfileService loads the server-confirmed role profile for the signed-in identity.
type ProfileService struct {
	api  API
	path string
}

var _ ports.ProfileFetcher = (*ProfileService)(nil)

// NewProfileService constructs a ProfileService.
func NewProfileService(opts ProfileServiceOptions) *ProfileService {
	if opts.API == nil {
		panic("API is required")
	}
	path := opts.Path
	if path == "" {
		path = DefaultProfilePath
	}
	return &ProfileService{api: opts.API, path: path}
}

// FetchProfile performs GET on the profile path. The request is authenticated by
// the client, so the identity is only used to annotate errors.
func (s *ProfileService) FetchProfile(ctx context.Context, id domainauth.Identity) (*domainauth.RoleProfile, error) {
	var p domainauth.RoleProfile
	if err := s.api.Get(ctx, s.path, nil, &p); err != nil {
		return nil, fmt.Errorf("fetch profile for %s: %w", id.UID, err)
	}
	if p.Email == "" {
		p.Email = id.Email
	}
	return &p, nil
}
