package models

type AuthConfig struct {
	Provider string           `json:"provider" yaml:"provider"`
	Clerk    *ClerkAuthConfig `json:"clerk,omitempty" yaml:"clerk,omitempty"`
}

type ClerkAuthConfig struct {
	SecretKey string `json:"secret_key" yaml:"secret_key"`
}
