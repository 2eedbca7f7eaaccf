package main

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "dev (commit: none")
}

func TestBindFlags(t *testing.T) {
	flags := crawlCmd.Flags()
	flags.AddFlagSet(rootCmd.PersistentFlags())
	require.NoError(t, flags.Parse([]string{"--target", "12", "--mode", "pagerank", "--ignore-robots", "--log-level", "debug"}))

	v := viper.New()
	require.NoError(t, bindFlags(v, flags))

	assert.Equal(t, 12, v.GetInt("crawler.target"))
	assert.Equal(t, "pagerank", v.GetString("crawler.mode"))
	assert.False(t, v.GetBool("robots.respect"))
	assert.Equal(t, "debug", v.GetString("logging.level"))
}

func TestCrawlRequiresSeed(t *testing.T) {
	rootCmd.SetArgs([]string{"crawl"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	assert.Error(t, rootCmd.Execute())
}
