package auth

import "os"

// EnvironmentStore implements CredentialStore backed by environment
// variables. It is read-only and always reports the same single account.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrInvalidCredentials
}

// Retrieve gets credentials from environment variables. The name argument is
// ignored; the environment describes exactly one account.
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	apiKey := os.Getenv("FLICKRDUMP_API_KEY")
	oauthToken := os.Getenv("FLICKRDUMP_OAUTH_TOKEN")
	if apiKey == "" || oauthToken == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Name:             "environment",
		APIKey:           apiKey,
		APISecret:        os.Getenv("FLICKRDUMP_API_SECRET"),
		OAuthToken:       oauthToken,
		OAuthTokenSecret: os.Getenv("FLICKRDUMP_OAUTH_TOKEN_SECRET"),
	}, nil
}

// List returns the environment account if one is configured
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrCredentialsNotFound
}

// Exists checks if environment credentials are configured
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
