// Package mocks provides gomock implementations of the identity and session ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	profiles := mocks.NewMockProfileFetcher(ctrl)
//	profiles.EXPECT().FetchProfile(gomock.Any(), gomock.Any()).Return(profile, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=profile_fetcher_mock.go github.com/target/ward-console/internal/ports ProfileFetcher
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_source_mock.go github.com/target/ward-console/internal/ports TokenSource
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_store_mock.go github.com/target/ward-console/internal/ports CredentialStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_provider_mock.go github.com/target/ward-console/internal/ports IdentityProvider
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=api_mock.go github.com/target/ward-console/internal/service API
