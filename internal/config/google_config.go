package config

type GoogleConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleIssuer() string
	GetGoogleAuthURL() string
	GetGoogleTokenURL() string
	GetGoogleUserInfoURL() string
}

type Google struct{}

var _ GoogleConfig = Google{}

func (Google) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (Google) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

func (Google) GetGoogleIssuer() string {
	return GetEnv("GOOGLE_ISSUER", "https://accounts.google.com")
}

// The three endpoint overrides below bypass OIDC discovery when all are set.
// Production leaves them empty; tests point them at a stub server.

func (Google) GetGoogleAuthURL() string {
	return GetEnv("GOOGLE_AUTH_URL", "")
}

func (Google) GetGoogleTokenURL() string {
	return GetEnv("GOOGLE_TOKEN_URL", "")
}

func (Google) GetGoogleUserInfoURL() string {
	return GetEnv("GOOGLE_USERINFO_URL", "")
}
