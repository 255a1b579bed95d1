// Package config provides centralized environment configuration.
// The agent process owns session and credential state; this layer is the
// narrow read interface onto the environment variables it honors.
package config

import (
	"os"
	"sync"
)

// AgentEnv holds the environment collaborators for the agent process.
type AgentEnv struct {
	// AgentBin is the agent executable name or path (HANDOFF_AGENT_BIN).
	AgentBin string

	// Model is the default model identifier (HANDOFF_DEFAULT_MODEL).
	Model string

	// AnthropicKey is the service credential (ANTHROPIC_API_KEY).
	AnthropicKey string

	// AnthropicBaseURL overrides the service endpoint (ANTHROPIC_BASE_URL).
	AnthropicBaseURL string
}

var (
	env     *AgentEnv
	envOnce sync.Once
)

// DefaultAgentBin is the conventional name of the agent CLI.
const DefaultAgentBin = "claude"

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *AgentEnv {
	envOnce.Do(func() {
		env = &AgentEnv{
			AgentBin:         getEnvDefault("HANDOFF_AGENT_BIN", DefaultAgentBin),
			Model:            os.Getenv("HANDOFF_DEFAULT_MODEL"),
			AnthropicKey:     os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicBaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ThirdPartyConfigured reports whether a service endpoint or credential
// override is present. When both are set the agent process ignores an
// explicit model selection; handoff forwards the option regardless and
// only surfaces this for diagnostics.
func ThirdPartyConfigured() bool {
	e := Env()
	return e.AnthropicBaseURL != "" || e.AnthropicKey != ""
}
