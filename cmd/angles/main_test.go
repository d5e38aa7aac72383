package main

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	for _, name := range []string{"archive", "cleanup", "report", "serve", "version", "versions"} {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, cmd.Name())
		})
	}
}

func TestRootCmd_LogLevel(t *testing.T) {
	saved := logLevel
	savedLevel := log.GetLevel()

	t.Cleanup(func() {
		logLevel = saved
		log.SetLevel(savedLevel)
	})

	tests := []struct {
		name    string
		level   string
		want    logrus.Level
		wantErr bool
	}{
		{name: "debug", level: "debug", want: logrus.DebugLevel},
		{name: "warn", level: "warn", want: logrus.WarnLevel},
		{name: "unknown", level: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logLevel = tt.level

			err := rootCmd.PersistentPreRunE(rootCmd, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "--log-level")

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, log.GetLevel())
		})
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer

	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "angles "+version)
	assert.Contains(t, out.String(), "commit "+commit)
}
