package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaths(t *testing.T) {
	paths := DefaultPaths()

	assert.Equal(t, "/usr/share/fex-emu/layers", paths.LayersDir)
	assert.Equal(t, "/var/lib/fex-emu/layers", paths.MountsDir)
	assert.Equal(t, "/var/lib/fex-emu/rootfs", paths.RootfsDir)
	assert.Equal(t, "/var/lib/fex-emu/writable", paths.WritableDir)
	assert.Equal(t, "/var/lib/fex-emu/workdir", paths.WorkDir)
	require.NoError(t, paths.Validate())
}

func TestPaths_LayerHelpers(t *testing.T) {
	paths := Paths{LayersDir: "/L", MountsDir: "/M"}

	assert.Equal(t, "/M/a", paths.LayerMountPoint("a"))
	assert.Equal(t, "/L/a.squashfs", paths.LayerSource("a.squashfs"))
	assert.Equal(t, "/M/.hidden", paths.LayerMountPoint(".hidden"))
}

func TestPaths_Validate(t *testing.T) {
	valid := func() Paths {
		return Paths{
			LayersDir:   "/L",
			MountsDir:   "/M",
			RootfsDir:   "/R",
			WritableDir: "/W",
			WorkDir:     "/K",
		}
	}

	tests := []struct {
		name      string
		mutate    func(p *Paths)
		wantError bool
	}{
		{name: "all absolute", mutate: func(p *Paths) {}},
		{name: "empty mounts dir", mutate: func(p *Paths) { p.MountsDir = "" }, wantError: true},
		{name: "relative work dir", mutate: func(p *Paths) { p.WorkDir = "var/lib/work" }, wantError: true},
		{name: "relative layers dir", mutate: func(p *Paths) { p.LayersDir = "./layers" }, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths := valid()
			tt.mutate(&paths)

			err := paths.Validate()
			if tt.wantError {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}

	t.Run("cleans paths", func(t *testing.T) {
		paths := valid()
		paths.MountsDir = "/var//lib/fex-emu/layers/"

		require.NoError(t, paths.Validate())
		assert.Equal(t, "/var/lib/fex-emu/layers", paths.MountsDir)
	})
}

func TestParseDuplicatePolicy(t *testing.T) {
	tests := []struct {
		in        string
		want      DuplicatePolicy
		wantError bool
	}{
		{in: "reject", want: DuplicateReject},
		{in: "keep-first", want: DuplicateKeepFirst},
		{in: " Keep-Last ", want: DuplicateKeepLast},
		{in: "overwrite", wantError: true},
		{in: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuplicatePolicy(tt.in)
			if tt.wantError {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDuplicatePolicy_FlagValue(t *testing.T) {
	var policy DuplicatePolicy
	assert.Equal(t, string(DefaultDuplicatePolicy), policy.String())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Var(&policy, "on-duplicate", "")

	require.NoError(t, flags.Parse([]string{"--on-duplicate", "reject"}))
	assert.Equal(t, DuplicateReject, policy)
	assert.Equal(t, "policy", policy.Type())

	require.Error(t, flags.Parse([]string{"--on-duplicate", "bogus"}))
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("", nil)
		require.NoError(t, err)

		assert.Equal(t, DefaultPaths(), cfg.Paths)
		assert.Equal(t, DefaultDuplicatePolicy, cfg.OnDuplicate)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("FEX_ROOTFS_LAYERS_DIR", "/srv/layers")
		t.Setenv("FEX_ROOTFS_ON_DUPLICATE", "reject")
		t.Setenv("SYSTEMD_LOG_LEVEL", "debug")
		t.Setenv("SYSTEMD_LOG_TARGET", "journal")

		cfg, err := Load("", nil)
		require.NoError(t, err)

		assert.Equal(t, "/srv/layers", cfg.LayersDir)
		assert.Equal(t, DefaultMountsDir, cfg.MountsDir)
		assert.Equal(t, DuplicateReject, cfg.OnDuplicate)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "journal", cfg.LogTarget)
	})

	t.Run("config file", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "generator.yaml")
		content := "mounts_dir: /run/fex/layers\non_duplicate: keep-first\n"
		require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

		cfg, err := Load(configFile, nil)
		require.NoError(t, err)

		assert.Equal(t, "/run/fex/layers", cfg.MountsDir)
		assert.Equal(t, DefaultRootfsDir, cfg.RootfsDir)
		assert.Equal(t, DuplicateKeepFirst, cfg.OnDuplicate)
	})

	t.Run("flags take precedence over environment", func(t *testing.T) {
		t.Setenv("FEX_ROOTFS_ON_DUPLICATE", "reject")

		policy := DefaultDuplicatePolicy
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.Var(&policy, "on-duplicate", "")
		flags.String("rootfs-dir", DefaultRootfsDir, "")
		require.NoError(t, flags.Parse([]string{"--on-duplicate=keep-first", "--rootfs-dir=/mnt/rootfs"}))

		cfg, err := Load("", flags)
		require.NoError(t, err)

		assert.Equal(t, DuplicateKeepFirst, cfg.OnDuplicate)
		assert.Equal(t, "/mnt/rootfs", cfg.RootfsDir)
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
		require.Error(t, err)
	})

	t.Run("invalid policy", func(t *testing.T) {
		t.Setenv("FEX_ROOTFS_ON_DUPLICATE", "overwrite")

		_, err := Load("", nil)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("relative path", func(t *testing.T) {
		t.Setenv("FEX_ROOTFS_WORK_DIR", "workdir")

		_, err := Load("", nil)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}
