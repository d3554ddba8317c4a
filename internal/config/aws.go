package config

// AWSConfig holds settings shared by every AWS client.
type AWSConfig struct {
	Region  string `env:"AWS_REGION" yaml:"region"`
	Profile string `env:"AWS_PROFILE" yaml:"profile"`
}
