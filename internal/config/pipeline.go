package config

import (
	"fmt"
	"time"

	"github.com/Veraticus/pickpath/internal/cluster"
	"github.com/Veraticus/pickpath/internal/common"
	"github.com/Veraticus/pickpath/internal/engine"
	"github.com/Veraticus/pickpath/internal/recordings"
	"github.com/Veraticus/pickpath/internal/server"
	"github.com/Veraticus/pickpath/internal/timegap"
	"github.com/spf13/viper"
)

// defaultDistanceThreshold applies when neither a cluster count nor a
// cutoff is configured.
const defaultDistanceThreshold = 60.0

// SetDefaults registers every default the loaders rely on.
func SetDefaults(v *viper.Viper) {
	est := timegap.DefaultOptions()
	v.SetDefault("estimator.sentinel", est.Sentinel)
	v.SetDefault("estimator.tolerance", est.Tolerance)
	v.SetDefault("estimator.collapse_after", est.CollapseAfter)
	v.SetDefault("estimator.sticky_threshold", false)

	v.SetDefault("cluster.strategy", cluster.StrategyHierarchical)

	km := cluster.DefaultKMeansParams()
	v.SetDefault("cluster.kmeans.n_clusters", km.NClusters)
	v.SetDefault("cluster.kmeans.n_init", km.NInit)
	v.SetDefault("cluster.kmeans.max_iter", km.MaxIter)
	v.SetDefault("cluster.kmeans.tolerance", km.Tolerance)

	ap := cluster.DefaultAffinityParams()
	v.SetDefault("cluster.affinity.alpha", ap.Alpha)
	v.SetDefault("cluster.affinity.damping", ap.Damping)
	v.SetDefault("cluster.affinity.max_iter", ap.MaxIter)
	v.SetDefault("cluster.affinity.convergence_iter", ap.ConvergenceIter)

	srv := server.DefaultConfig()
	v.SetDefault("server.addr", srv.Addr)
	v.SetDefault("server.workers", srv.Workers)
	v.SetDefault("server.read_timeout", srv.ReadTimeout)
	v.SetDefault("server.accept_rate", srv.AcceptRate)
	v.SetDefault("server.accept_burst", srv.AcceptBurst)
	v.SetDefault("server.data_dir", srv.DataDir)
	v.SetDefault("server.watch", false)
	v.SetDefault("server.watch_debounce", 2*time.Second)

	v.SetDefault("recordings.pattern", recordings.DefaultPattern)
	v.SetDefault("recordings.concurrency", 4)
}

// LoadEstimatorOptions reads the estimator section.
func LoadEstimatorOptions(v *viper.Viper) (timegap.Options, error) {
	opts := timegap.Options{
		Sentinel:        v.GetFloat64("estimator.sentinel"),
		Tolerance:       v.GetFloat64("estimator.tolerance"),
		CollapseAfter:   v.GetInt("estimator.collapse_after"),
		StickyThreshold: v.GetBool("estimator.sticky_threshold"),
	}
	if opts.Sentinel <= 0 {
		return opts, fmt.Errorf("%w: estimator.sentinel must be positive", common.ErrInvalidConfig)
	}
	if opts.Tolerance < 0 {
		return opts, fmt.Errorf("%w: estimator.tolerance must not be negative", common.ErrInvalidConfig)
	}
	if opts.CollapseAfter <= 0 {
		return opts, fmt.Errorf("%w: estimator.collapse_after must be positive", common.ErrInvalidConfig)
	}
	return opts, nil
}

// LoadClusterParams reads the cluster section. A configured cluster count
// replaces the default distance threshold.
func LoadClusterParams(v *viper.Viper) (cluster.Params, error) {
	p := cluster.Params{
		Hierarchical: cluster.HierarchicalParams{
			NClusters:         v.GetInt("cluster.hierarchical.n_clusters"),
			DistanceThreshold: v.GetFloat64("cluster.hierarchical.distance_threshold"),
		},
		KMeans: cluster.KMeansParams{
			NClusters: v.GetInt("cluster.kmeans.n_clusters"),
			NInit:     v.GetInt("cluster.kmeans.n_init"),
			MaxIter:   v.GetInt("cluster.kmeans.max_iter"),
			Tolerance: v.GetFloat64("cluster.kmeans.tolerance"),
			Seed:      v.GetInt64("cluster.kmeans.seed"),
		},
		Affinity: cluster.AffinityParams{
			Alpha:           v.GetFloat64("cluster.affinity.alpha"),
			Damping:         v.GetFloat64("cluster.affinity.damping"),
			MaxIter:         v.GetInt("cluster.affinity.max_iter"),
			ConvergenceIter: v.GetInt("cluster.affinity.convergence_iter"),
			Seed:            v.GetInt64("cluster.affinity.seed"),
		},
	}
	if v.IsSet("cluster.affinity.preference") {
		pref := v.GetFloat64("cluster.affinity.preference")
		p.Affinity.Preference = &pref
	}

	h := &p.Hierarchical
	if h.NClusters == 0 && h.DistanceThreshold == 0 {
		h.DistanceThreshold = defaultDistanceThreshold
	}
	if err := h.Validate(); err != nil {
		return p, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return p, nil
}

// LoadEngineConfig combines the estimator and cluster sections.
func LoadEngineConfig(v *viper.Viper) (engine.Config, error) {
	est, err := LoadEstimatorOptions(v)
	if err != nil {
		return engine.Config{}, err
	}
	params, err := LoadClusterParams(v)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{Estimator: est, Clustering: params}, nil
}

// LoadServerConfig reads the server section.
func LoadServerConfig(v *viper.Viper) (server.Config, error) {
	strategy, err := cluster.ParseName(v.GetString("cluster.strategy"))
	if err != nil {
		return server.Config{}, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	cfg := server.Config{
		Addr:        v.GetString("server.addr"),
		DataDir:     ExpandPath(v.GetString("server.data_dir")),
		Strategy:    strategy,
		Pattern:     v.GetString("recordings.pattern"),
		ReadTimeout: v.GetDuration("server.read_timeout"),
		AcceptRate:  v.GetFloat64("server.accept_rate"),
		AcceptBurst: v.GetInt("server.accept_burst"),
		Workers:     v.GetInt("server.workers"),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return cfg, nil
}
