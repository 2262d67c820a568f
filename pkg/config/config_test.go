package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ethwallet/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Malformed(t *testing.T) {
	reader := strings.NewReader(`{ "networks": [`)
	_, err := LoadConfig(reader, false)
	if err == nil {
		t.Error("Expected error loading malformed config, got nil")
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	cfg, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig_TableDriven(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		content     string
		yaml        bool
		expectError bool
		validate    func(*testing.T, Config)
	}{
		{
			name: "Custom networks",
			content: `{
				"networks": [
					{"id": "mainnet", "display_name": "Main", "chain_id": 1, "rpc_url": "http://main", "explorer_url": "http://scan"},
					{"id": "holesky", "display_name": "Holesky", "chain_id": 17000, "rpc_url": "http://holesky", "explorer_url": "http://scan2"}
				],
				"fetch_base_delay_ms": 250
			}`,
			validate: func(t *testing.T, c Config) {
				require.Len(t, c.Networks, 2)
				assert.Equal(t, models.NetworkID("holesky"), c.Networks[1].ID)
				assert.Equal(t, int64(17000), c.Networks[1].ChainID)
				assert.Equal(t, 250*time.Millisecond, c.FetchBaseDelay)
			},
		},
		{
			name:    "Partial config keeps defaults",
			content: `{"history_limit": 5}`,
			validate: func(t *testing.T, c Config) {
				assert.Equal(t, 5, c.HistoryLimit)
				assert.Equal(t, 3, c.FetchMaxAttempts)
				assert.Equal(t, 7*time.Second, c.DetectTimeout)
				assert.Len(t, c.Networks, 2)
			},
		},
		{
			name: "YAML overrides",
			yaml: true,
			content: `
market_url: http://market.local/api
explorer_rps: 2.5
`,
			validate: func(t *testing.T, c Config) {
				assert.Equal(t, "http://market.local/api", c.MarketURL)
				assert.Equal(t, 2.5, c.ExplorerRPS)
			},
		},
		{
			name:        "Malformed JSON",
			content:     `{ "networks": [ unclosed_array`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := LoadConfig(strings.NewReader(tt.content), tt.yaml)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.Networks = cfg.Networks[:1]
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Networks = append(cfg.Networks, cfg.Networks[0])
	problems := cfg.StructureErrors()
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "declared twice")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ETHWALLET_SEPOLIA_RPC_URL", "http://sepolia.local")
	t.Setenv("ETHWALLET_EXPLORER_URL", "http://proxy.local/explorer")

	base := Default()
	cfg, err := ApplyEnv(base)
	require.NoError(t, err)

	assert.Equal(t, "http://proxy.local/explorer", cfg.ExplorerProxyURL)
	assert.Equal(t, "http://sepolia.local", cfg.Networks[1].RPCURL)
	// the input catalog is not mutated
	assert.NotEqual(t, "http://sepolia.local", base.Networks[1].RPCURL)
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.HistoryLimit = 20
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20, loaded.HistoryLimit)
	assert.Equal(t, cfg.Networks, loaded.Networks)
	assert.Equal(t, cfg.FetchBaseDelay, loaded.FetchBaseDelay)

	// second save leaves a backup next to the file
	require.NoError(t, SaveConfig(cfg, path))
	matches, err := filepath.Glob(path + ".*.bak")
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestSaveConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveConfig(Default(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "networks:")

	loaded, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Networks, loaded.Networks)
}

func TestSaveConfig_Invalid(t *testing.T) {
	cfg := Default()
	cfg.Networks = nil
	err := SaveConfig(cfg, filepath.Join(t.TempDir(), "config.json"))
	assert.Error(t, err)
}

func FuzzLoadConfig(f *testing.F) {
	f.Add([]byte(`{"networks":[{"id":"mainnet","chain_id":1,"rpc_url":"http://eth"}],"port":9000}`), false)
	f.Add([]byte("networks:\n  - id: sepolia\n    chain_id: 11155111\n"), true)

	f.Fuzz(func(t *testing.T, data []byte, yamlFormat bool) {
		_, _ = LoadConfig(strings.NewReader(string(data)), yamlFormat)
	})
}
