package config_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/taskd/internal/config"
)

func TestYAMLLoaderLoad(t *testing.T) {
	tests := map[string]struct {
		files   fstest.MapFS
		path    string
		expCfg  *config.Server
		expErr  bool
		errMsg  string
	}{
		"Valid full config": {
			files: fstest.MapFS{
				"taskd.yaml": &fstest.MapFile{Data: []byte(`
listen_addr: ":9090"
internal_auth_token: "super-secret"
dispatch_trigger_url: "https://runner.test/trigger"
db_path: "/var/lib/taskd/taskd.db"
`)},
			},
			path: "taskd.yaml",
			expCfg: &config.Server{
				ListenAddr:         ":9090",
				InternalAuthToken:  "super-secret",
				DispatchTriggerURL: "https://runner.test/trigger",
				DBPath:             "/var/lib/taskd/taskd.db",
			},
		},

		"Missing internal auth token fails validation": {
			files: fstest.MapFS{
				"taskd.yaml": &fstest.MapFile{Data: []byte(`
dispatch_trigger_url: "https://runner.test/trigger"
`)},
			},
			path:   "taskd.yaml",
			expErr: true,
			errMsg: "internal_auth_token is required",
		},

		"Missing dispatch trigger url fails validation": {
			files: fstest.MapFS{
				"taskd.yaml": &fstest.MapFile{Data: []byte(`
internal_auth_token: "super-secret"
`)},
			},
			path:   "taskd.yaml",
			expErr: true,
			errMsg: "dispatch_trigger_url is required",
		},

		"Invalid YAML fails": {
			files: fstest.MapFS{
				"taskd.yaml": &fstest.MapFile{Data: []byte(`{not yaml`)},
			},
			path:   "taskd.yaml",
			expErr: true,
			errMsg: "parsing YAML",
		},

		"Missing file fails": {
			files:  fstest.MapFS{},
			path:   "taskd.yaml",
			expErr: true,
			errMsg: "reading config file",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			loader := config.NewYAMLLoader(test.files)

			cfg, err := loader.Load(context.Background(), test.path)

			if test.expErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.errMsg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.expCfg, cfg)
			}
		})
	}
}
