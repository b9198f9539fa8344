package commands

import (
	"testing"

	"holders-api/internal/browser"
	"holders-api/internal/clients_api/solscan"
	"holders-api/internal/csvholders"
	"holders-api/internal/infra/config"
	"holders-api/internal/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSource(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    any
		wantErr error
	}{
		{name: "solscan", cfg: config.Config{Scraper: config.ScraperConfig{Source: "solscan"}}, want: &solscan.Client{}},
		{name: "browser", cfg: config.Config{Scraper: config.ScraperConfig{Source: "browser"}}, want: &browser.ExportSource{}},
		{name: "csv path wins", cfg: config.Config{Scraper: config.ScraperConfig{Source: "browser", CSVPath: "holders.csv"}}, want: &csvholders.FileSource{}},
		{name: "unknown", cfg: config.Config{Scraper: config.ScraperConfig{Source: "carrier-pigeon"}}, wantErr: scraper.ErrNoSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := buildSource(&tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, src)
		})
	}
}

func TestBuildController_RejectsBadProxy(t *testing.T) {
	cfg := config.Config{
		Scraper: config.ScraperConfig{Source: "csv", CSVPath: "holders.csv", MaxRetries: 1},
		Proxy:   config.ProxyConfig{List: []string{"not-a-proxy"}},
	}
	_, err := buildController(&cfg, nil, nil)
	assert.Error(t, err)
}

func TestRootRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "scrape", "export", "backup"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("token"))
	assert.NotNil(t, exportCmd.Flags().Lookup("format"))
}
