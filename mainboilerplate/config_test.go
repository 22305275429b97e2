package mainboilerplate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Service ServiceConfig `group:"Service" namespace:"service" env-namespace:"SERVICE"`
	Log     LogConfig     `group:"Logging" namespace:"log" env-namespace:"LOG"`
}

func TestParseConfigFileSearchesDirs(t *testing.T) {
	var empty, dir = t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.ini"), []byte(`
[Service]
ID = a-process
Port = 1234

[Logging]
Level = debug

[Unknown]
other = ignored
`), 0644))

	var cfg testConfig
	var parser = flags.NewParser(&cfg, flags.Default)

	var path, err = ParseConfigFile(parser, "test.ini", []string{empty, dir})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "test.ini"), path)
	require.Equal(t, flags.Options(flags.Default), parser.Options)

	require.Equal(t, "a-process", cfg.Service.ID)
	require.Equal(t, "a-process", cfg.Service.ProcessID())
	require.Equal(t, uint16(1234), cfg.Service.Port)
	require.Equal(t, "debug", cfg.Log.Level)

	// No file is found.
	path, err = ParseConfigFile(parser, "missing.ini", []string{empty})
	require.NoError(t, err)
	require.Equal(t, "", path)
}

func TestParseConfigFileError(t *testing.T) {
	var dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.ini"), []byte("[Service]\nPort = not-a-number\n"), 0644))

	var cfg testConfig
	var _, err = ParseConfigFile(flags.NewParser(&cfg, flags.Default), "bad.ini", []string{dir})
	require.Error(t, err)
}

func TestConfigDirs(t *testing.T) {
	t.Setenv("HOME", "/home/user")
	t.Setenv("UserProfile", "")
	t.Setenv(ConfigRootEnv, "/etc/sqlkv")

	require.Equal(t, []string{".", "/home/user/.config/sqlkv", "/etc/sqlkv"}, ConfigDirs())
}

func TestGeneratedProcessID(t *testing.T) {
	require.NotEmpty(t, ServiceConfig{}.ProcessID())
}
