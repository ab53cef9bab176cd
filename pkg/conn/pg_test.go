package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	testCases := []struct {
		desc     string
		opt      Option
		expected string
	}{
		{
			desc:     "defaults",
			opt:      Option{},
			expected: "postgres://localhost:5432?sslmode=disable",
		},
		{
			desc: "full",
			opt: Option{
				Host:     "db",
				Port:     6543,
				User:     "quoter",
				Password: "p@ss",
				Database: "journal",
				SSLMode:  "require",
				Params:   map[string]string{"application_name": "quoter", "": "ignored"},
			},
			expected: "postgres://quoter:p%40ss@db:6543/journal?application_name=quoter&sslmode=require",
		},
		{
			desc:     "user without password",
			opt:      Option{User: "quoter", Database: "journal"},
			expected: "postgres://quoter@localhost:5432/journal?sslmode=disable",
		},
		{
			desc:     "conn string wins",
			opt:      Option{ConnString: "postgres://x", Host: "ignored"},
			expected: "postgres://x",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			dsn, err := tc.opt.dsn()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, dsn)
		})
	}
}

func TestDSNInvalidPort(t *testing.T) {
	_, err := Option{Port: -1}.dsn()
	assert.Error(t, err)
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.Nil(t, c.DB())
	assert.NoError(t, c.Close())
}
