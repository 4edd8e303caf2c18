package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSources() []Source {
	return []Source{
		{Site: "Milpark", APIURL: "https://10.1.1.1/rest/", Username: "api", Password: "pw", RouterIP: "10.1.1.1", DHCPRange: "100.64.16.0/24"},
		{Site: "Roshcor", APIURL: "https://10.2.2.2/rest", RouterIP: "10.2.2.2", DHCPRange: "100.64.20.10-100.64.20.200"},
	}
}

func TestResolve_Match(t *testing.T) {
	d, err := New(testSources(), nil)
	require.NoError(t, err)

	site, r, ok := d.Resolve("100.64.16.50")
	require.True(t, ok)
	assert.Equal(t, "Milpark", site)
	assert.Equal(t, "10.1.1.1", r.Name)
	assert.Equal(t, "https://10.1.1.1/rest", r.Endpoint)

	site, r, ok = d.Resolve("100.64.20.77")
	require.True(t, ok)
	assert.Equal(t, "Roshcor", site)
	assert.Equal(t, "10.2.2.2", r.Name)
}

func TestResolve_Unknown(t *testing.T) {
	d, err := New(testSources(), nil)
	require.NoError(t, err)

	for _, ip := range []string{"203.0.113.9", "not-an-ip", ""} {
		site, r, ok := d.Resolve(ip)
		assert.False(t, ok, ip)
		assert.Nil(t, r, ip)
		assert.Equal(t, UnknownSite, site, ip)
	}
}

func TestResolve_OverlapFirstMatchIsStable(t *testing.T) {
	sources := []Source{
		{Site: "Wide", APIURL: "https://a.example", DHCPRange: "10.0.0.0/16"},
		{Site: "Narrow", APIURL: "https://b.example", DHCPRange: "10.0.5.0/24"},
	}
	d, err := New(sources, nil)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		site, _, ok := d.Resolve("10.0.5.9")
		require.True(t, ok)
		require.Equal(t, "Wide", site)
	}
	require.Len(t, d.Warnings(), 1)
	assert.Contains(t, d.Warnings()[0], "overlap")
}

func TestResolve_IPv4MappedIPv6(t *testing.T) {
	d, err := New(testSources(), nil)
	require.NoError(t, err)

	site, _, ok := d.Resolve("::ffff:100.64.16.50")
	require.True(t, ok)
	assert.Equal(t, "Milpark", site)
}

func TestNew_NameDefaultsToSite(t *testing.T) {
	d, err := New([]Source{{Site: "Lab", APIURL: "http://lab.example", DHCPRange: "192.0.2.0/24"}}, nil)
	require.NoError(t, err)
	require.Len(t, d.Routers(), 1)
	assert.Equal(t, "Lab", d.Routers()[0].Name)
}

func TestNew_SkipsEntriesWithoutAPIURL(t *testing.T) {
	d, err := New([]Source{{Site: "Ghost", DHCPRange: "192.0.2.0/24"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, d.Routers())
	assert.Len(t, d.Warnings(), 1)
}

func TestNew_FallbackIsFlagged(t *testing.T) {
	d, err := New([]Source{{Site: "Broken", APIURL: "http://x.example", DHCPRange: "10.0.0.x-10.0.0.9"}}, nil)
	require.NoError(t, err)
	require.Len(t, d.Warnings(), 1)
	assert.Contains(t, d.Warnings()[0], "0.0.0.0/0")

	site, _, ok := d.Resolve("8.8.8.8")
	assert.True(t, ok)
	assert.Equal(t, "Broken", site)
}

func TestNew_InvalidEndpoint(t *testing.T) {
	_, err := New([]Source{{Site: "Bad", APIURL: "not a url", DHCPRange: "192.0.2.0/24"}}, nil)
	assert.Error(t, err)
}

func TestNew_EmptyRangeNeverMatches(t *testing.T) {
	d, err := New([]Source{{Site: "Empty", APIURL: "http://x.example"}}, nil)
	require.NoError(t, err)
	require.Len(t, d.Routers(), 1)

	_, _, ok := d.Resolve("192.0.2.1")
	assert.False(t, ok)
}
