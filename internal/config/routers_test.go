package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routerJSON = `{
  "Roshcor": {"api_url": "https://10.2.2.2/rest", "username": "api", "password": "pw", "router_ip": "10.2.2.2", "dhcp_range": "100.64.20.0/24"},
  "comment": "ignored",
  "Milpark": {"api_url": "https://10.1.1.1/rest", "router_ip": "10.1.1.1", "dhcp_range": "100.64.16.21-100.64.17.254"},
  "Alpha": {"api_url": "https://10.3.3.3/rest"}
}`

func TestParseRouterJSON_PreservesOrder(t *testing.T) {
	srcs, err := ParseRouterJSON([]byte(routerJSON))
	require.NoError(t, err)
	require.Len(t, srcs, 3)

	assert.Equal(t, "Roshcor", srcs[0].Site)
	assert.Equal(t, "Milpark", srcs[1].Site)
	assert.Equal(t, "Alpha", srcs[2].Site)

	assert.Equal(t, "https://10.2.2.2/rest", srcs[0].APIURL)
	assert.Equal(t, "api", srcs[0].Username)
	assert.Equal(t, "pw", srcs[0].Password)
	assert.Equal(t, "10.2.2.2", srcs[0].RouterIP)
	assert.Equal(t, "100.64.16.21-100.64.17.254", srcs[1].DHCPRange)
}

func TestParseRouterJSON_RejectsNonObject(t *testing.T) {
	_, err := ParseRouterJSON([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = ParseRouterJSON([]byte(`{"a": {`))
	assert.Error(t, err)
}

func TestParseRouterYAML_PreservesOrder(t *testing.T) {
	doc := `
Zulu:
  api_url: https://10.9.9.9/rest
  dhcp_range: 10.9.0.0/16
notes: free text
Alpha:
  api_url: https://10.1.1.1/rest
  router_ip: 10.1.1.1
`
	srcs, err := ParseRouterYAML([]byte(doc))
	require.NoError(t, err)
	require.Len(t, srcs, 2)
	assert.Equal(t, "Zulu", srcs[0].Site)
	assert.Equal(t, "10.9.0.0/16", srcs[0].DHCPRange)
	assert.Equal(t, "Alpha", srcs[1].Site)
	assert.Equal(t, "10.1.1.1", srcs[1].RouterIP)
}

func TestLoadRouterFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "nas_config.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(routerJSON), 0o600))
	srcs, err := LoadRouterFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, srcs, 3)

	yamlPath := filepath.Join(dir, "nas_config.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("Lab:\n  api_url: http://lab.example\n"), 0o600))
	srcs, err = LoadRouterFile(yamlPath)
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	assert.Equal(t, "Lab", srcs[0].Site)

	_, err = LoadRouterFile(filepath.Join(dir, "absent.json"))
	assert.True(t, errors.Is(err, ErrRouterFileNotFound))
}

func TestLoadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nas_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"Site A": {"api_url": "https://10.0.0.1/rest/", "router_ip": "10.0.0.1", "dhcp_range": "100.64.16.0/24"},
		"Site B": {"api_url": "https://10.0.0.2/rest", "dhcp_range": "100.64.17.10-100.64.17.200"}
	}`), 0o600))

	d, err := LoadDirectory(path, nil)
	require.NoError(t, err)
	site, r, ok := d.Resolve("100.64.17.50")
	require.True(t, ok)
	assert.Equal(t, "Site B", site)
	assert.Equal(t, "Site B", r.Name)
	assert.Equal(t, "100.64.17.0/24", r.Networks[0].String())

	site, r, ok = d.Resolve("100.64.16.50")
	require.True(t, ok)
	assert.Equal(t, "Site A", site)
	assert.Equal(t, "https://10.0.0.1/rest", r.Endpoint)
}
