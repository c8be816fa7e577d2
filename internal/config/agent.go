package config

import "github.com/JaimeStill/ldaa/internal/judge"

// Environment variables for the judgment service connection under [agent].
const (
	EnvAgentProvider    = "LDAA_AGENT_PROVIDER"
	EnvAgentModel       = "LDAA_AGENT_MODEL"
	EnvAgentBaseURL     = "LDAA_AGENT_BASE_URL"
	EnvAgentToken       = "LDAA_AGENT_TOKEN"
	EnvAgentTemperature = "LDAA_AGENT_TEMPERATURE"
	EnvAgentMaxTokens   = "LDAA_AGENT_MAX_TOKENS"
	EnvAgentTimeout     = "LDAA_AGENT_TIMEOUT"
)

var agentEnv = &judge.Env{
	Provider:    EnvAgentProvider,
	Model:       EnvAgentModel,
	BaseURL:     EnvAgentBaseURL,
	Token:       EnvAgentToken,
	Temperature: EnvAgentTemperature,
	MaxTokens:   EnvAgentMaxTokens,
	Timeout:     EnvAgentTimeout,
}
