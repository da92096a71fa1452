package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CheckIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewedat_checkins_total",
			Help: "Successful check-ins by method",
		},
		[]string{"method"},
	)
	CheckInRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewedat_checkin_rejections_total",
			Help: "Rejected check-ins by reason",
		},
		[]string{"reason"},
	)
	PointsAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brewedat_points_awarded_total",
			Help: "Points credited from check-ins and achievements",
		},
	)
	RaffleEntries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brewedat_raffle_entries_total",
			Help: "Raffle tickets bought",
		},
	)
	AchievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewedat_achievements_unlocked_total",
			Help: "Achievements unlocked by code",
		},
		[]string{"code"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(CheckIns, CheckInRejections, PointsAwarded, RaffleEntries, AchievementsUnlocked)
}
