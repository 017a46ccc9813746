package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "numbot_build_info",
		Help: "A constant metric with labels for version and enabled providers.",
	},
	[]string{"version", "providers"},
)

func SetBuildInfo(version, providers string) {
	buildInfo.WithLabelValues(version, providers).Set(1)
}
