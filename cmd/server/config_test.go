package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) envLookup {
	return func(key string) string { return vars[key] }
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil, env(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.Equal(t, ModeClient, cfg.Mode)
	assert.Equal(t, []string{"mock"}, cfg.Models)
	assert.Equal(t, 3, cfg.RateLimit)
	assert.Equal(t, "translator", cfg.DNSNamespace)
	assert.Equal(t, "translator:inflight", cfg.CounterKey)
	assert.Equal(t, time.Duration(0), cfg.PeerAddressTTL)
	assert.Equal(t, "en", cfg.DefaultLanguage)
	assert.Equal(t, "whatlang", cfg.Detector)
	assert.False(t, cfg.Preload)
}

func TestParseConfigFromEnv(t *testing.T) {
	cfg, err := parseConfig(nil, env(map[string]string{
		"TRANSLATOR_MODE":             "proxy",
		"TRANSLATOR_CLIENTS":          "gpu-1, gpu-2,,",
		"TRANSLATOR_RATE_LIMIT":       "0",
		"TRANSLATOR_PRELOAD_MODELS":   "true",
		"TRANSLATOR_PEER_ADDRESS_TTL": "1m",
		"TRANSLATOR_DNS_NAMESPACE":    "mt.svc.cluster.local",
	}))
	require.NoError(t, err)

	assert.Equal(t, ModeProxy, cfg.Mode)
	assert.Equal(t, []string{"gpu-1", "gpu-2"}, cfg.Clients)
	assert.Equal(t, 0, cfg.RateLimit)
	assert.True(t, cfg.Preload)
	assert.Equal(t, time.Minute, cfg.PeerAddressTTL)
	assert.Equal(t, "mt.svc.cluster.local", cfg.DNSNamespace)
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	cfg, err := parseConfig(
		[]string{"-models", "opus-mt,wmt-19", "-port", "9000"},
		env(map[string]string{"TRANSLATOR_MODELS": "mock", "TRANSLATOR_PORT": "8081"}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"opus-mt", "wmt-19"}, cfg.Models)
	assert.Equal(t, 9000, cfg.Port)
}

func TestParseConfigErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"proxy without clients": {"TRANSLATOR_MODE": "PROXY"},
		"unknown mode":          {"TRANSLATOR_MODE": "SIDECAR"},
		"unknown detector":      {"TRANSLATOR_DETECTOR": "cld3"},
		"malformed int":         {"TRANSLATOR_RATE_LIMIT": "three"},
		"malformed bool":        {"TRANSLATOR_PRELOAD_MODELS": "maybe"},
		"malformed duration":    {"TRANSLATOR_PEER_ADDRESS_TTL": "5"},
		"no models":             {"TRANSLATOR_MODELS": " , "},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseConfig(nil, env(vars))
			assert.Error(t, err)
		})
	}
}
