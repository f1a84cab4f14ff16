package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	data, err := generateSchema()
	require.NoError(t, err)

	var schema struct {
		Schema     string `json:"$schema"`
		Title      string `json:"title"`
		Properties map[string]struct {
			Properties map[string]struct {
				Type  string            `json:"type"`
				OneOf []json.RawMessage `json:"oneOf"`
			} `json:"properties"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, "https://json-schema.org/draft/2020-12/schema", schema.Schema)
	assert.Equal(t, "dirserve Configuration", schema.Title)

	for _, section := range []string{"logging", "server", "access_log", "metrics", "telemetry"} {
		assert.Contains(t, schema.Properties, section)
	}

	server := schema.Properties["server"].Properties
	assert.Equal(t, "integer", server["port"].Type)
	assert.Equal(t, "string", server["read_timeout"].Type)
	assert.Len(t, server["request_buffer_size"].OneOf, 2)
}

func TestEnabledString(t *testing.T) {
	assert.Equal(t, "enabled", enabledString(true))
	assert.Equal(t, "disabled", enabledString(false))
	assert.Equal(t, "0.0.0.0", bindOrAll(""))
	assert.Equal(t, "127.0.0.1", bindOrAll("127.0.0.1"))
}
