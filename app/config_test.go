package huddle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "0.0.0.0", config.Hostname)
	assert.Equal(t, ":memory:", config.SQLite.File)
	assert.Equal(t, "general", config.Chat.DefaultRoom)
	assert.Equal(t, 1000, config.Chat.HistoryLimit)
	assert.Equal(t, []string{"*"}, config.AllowedOrigins)

	require.NoError(t, config.Validate())
}

func Test_Config_Validate(t *testing.T) {
	config, err := LoadConfig()
	require.NoError(t, err)

	config.Port = -1
	err = config.Validate()
	require.Error(t, err)
	assert.NotEmpty(t, FormatValidationErrors(err))

	config.Port = 8080
	config.Chat.HistoryLimit = 0
	assert.Error(t, config.Validate())
}
