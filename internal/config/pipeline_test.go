package config

import (
	"testing"
	"time"

	"github.com/Veraticus/pickpath/internal/cluster"
	"github.com/Veraticus/pickpath/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadEstimatorOptions(t *testing.T) {
	v := newViper()
	opts, err := LoadEstimatorOptions(v)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, opts.Sentinel)
	assert.Equal(t, 10.0, opts.Tolerance)
	assert.Equal(t, 3, opts.CollapseAfter)
	assert.False(t, opts.StickyThreshold)

	v.Set("estimator.collapse_after", 0)
	_, err = LoadEstimatorOptions(v)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLoadClusterParams(t *testing.T) {
	tests := []struct {
		name      string
		set       map[string]any
		wantCount int
		wantCut   float64
		wantErr   bool
	}{
		{"defaults to cutoff", nil, 0, 60, false},
		{"count replaces default cutoff", map[string]any{"cluster.hierarchical.n_clusters": 8}, 8, 0, false},
		{"explicit cutoff", map[string]any{"cluster.hierarchical.distance_threshold": 25.0}, 0, 25, false},
		{"both set", map[string]any{
			"cluster.hierarchical.n_clusters":         8,
			"cluster.hierarchical.distance_threshold": 25.0,
		}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			p, err := LoadClusterParams(v)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidConfig)
				assert.ErrorIs(t, err, cluster.ErrInvalidParams)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, p.Hierarchical.NClusters)
			assert.Equal(t, tt.wantCut, p.Hierarchical.DistanceThreshold)
			assert.Equal(t, 50, p.KMeans.NClusters)
			assert.Equal(t, 0.9, p.Affinity.Damping)
			assert.Nil(t, p.Affinity.Preference)
		})
	}
}

func TestLoadClusterParams_Preference(t *testing.T) {
	v := newViper()
	v.Set("cluster.affinity.preference", -2.5)
	p, err := LoadClusterParams(v)
	require.NoError(t, err)
	require.NotNil(t, p.Affinity.Preference)
	assert.Equal(t, -2.5, *p.Affinity.Preference)
}

func TestLoadServerConfig(t *testing.T) {
	v := newViper()
	cfg, err := LoadServerConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Addr)
	assert.Equal(t, 10, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, cluster.StrategyHierarchical, cfg.Strategy)

	v.Set("cluster.strategy", "2")
	cfg, err = LoadServerConfig(v)
	require.NoError(t, err)
	assert.Equal(t, cluster.StrategyAffinity, cfg.Strategy)

	v.Set("server.workers", 0)
	_, err = LoadServerConfig(v)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLoadEngineConfig(t *testing.T) {
	cfg, err := LoadEngineConfig(newViper())
	require.NoError(t, err)
	assert.Equal(t, 60.0, cfg.Clustering.Hierarchical.DistanceThreshold)
	assert.Equal(t, 3, cfg.Estimator.CollapseAfter)
}
