package core

import (
	"context"
	"time"

	"github.com/kerala-agrisage/agrisage/internal/logger"
	"github.com/kerala-agrisage/agrisage/internal/metrics"
	"github.com/kerala-agrisage/agrisage/internal/store"
)

// Kerala calendar days decide "today" and the full-quota streak.
var keralaTime = time.FixedZone("IST", 5*3600+30*60)

type BadgeDefinition struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Target      int    `json:"target"`
	measure     func(activity) int
}

// activity is the per-user tally every badge is measured against.
type activity struct {
	Queries       int
	Analyses      int
	Risks         int
	FullQuotaDays int
	QueriesToday  int
}

func (a activity) interactions() int { return a.Queries + a.Analyses + a.Risks }

var Badges = []BadgeDefinition{
	{Key: "first_query", Name: "First Query", Description: "Asked your first question", Icon: "🌱", Target: 1,
		measure: func(a activity) int { return a.Queries }},
	{Key: "farm_expert", Name: "Farm Expert", Description: "Completed 5 queries successfully", Icon: "🏆", Target: 5,
		measure: func(a activity) int { return a.Queries }},
	{Key: "disease_detective", Name: "Disease Detective", Description: "Analyzed 3 crop images", Icon: "🔍", Target: 3,
		measure: func(a activity) int { return a.Analyses }},
	{Key: "risk_master", Name: "Risk Master", Description: "Completed 5 risk assessments", Icon: "📊", Target: 5,
		measure: func(a activity) int { return a.Risks }},
	{Key: "kerala_farmer", Name: "Kerala Farmer", Description: "Used all daily queries for 7 days", Icon: "🥥", Target: 7,
		measure: func(a activity) int { return a.FullQuotaDays }},
	{Key: "crop_master", Name: "Crop Master", Description: "Expert level - 50 successful interactions", Icon: "👑", Target: 50,
		measure: func(a activity) int { return a.interactions() }},
}

type BadgeService struct {
	store      *store.Store
	dailyLimit int
	rec        recorder
	log        *logger.Logger
	now        func() time.Time
}

func NewBadgeService(db *store.Store, dailyLimit int, m *metrics.Metrics, log *logger.Logger) *BadgeService {
	if log == nil {
		log = logger.NewNop()
	}
	return &BadgeService{
		store:      db,
		dailyLimit: dailyLimit,
		rec:        newRecorder(m, log),
		log:        log.With("service", "badges"),
		now:        time.Now,
	}
}

// Evaluate awards every badge whose target the user has reached. Failures are logged.
func (s *BadgeService) Evaluate(ctx context.Context, userID string) {
	a, err := s.activity(ctx, userID)
	if err != nil {
		s.log.Error("Failed to load activity for badges", "user_id", userID, "error", err)
		return
	}
	for _, b := range Badges {
		if b.measure(a) < b.Target {
			continue
		}
		awarded, err := s.store.AwardBadge(ctx, userID, b.Key)
		if err != nil {
			s.rec.persisted("user_badges", userID, err)
			continue
		}
		if awarded {
			s.rec.persisted("user_badges", userID, nil)
			s.log.Info("Badge earned", "user_id", userID, "badge", b.Key)
		}
	}
}

func (s *BadgeService) activity(ctx context.Context, userID string) (activity, error) {
	times, err := s.store.ListFarmerQueryTimes(ctx, userID)
	if err != nil {
		return activity{}, err
	}
	analyses, err := s.store.CountDiseaseAnalyses(ctx, userID)
	if err != nil {
		return activity{}, err
	}
	risks, err := s.store.CountRiskPredictions(ctx, userID)
	if err != nil {
		return activity{}, err
	}
	a := tallyQueries(times, s.dailyLimit, s.now())
	a.Analyses = analyses
	a.Risks = risks
	return a, nil
}

// tallyQueries counts queries, today's queries and the days on which the daily limit was reached.
func tallyQueries(times []time.Time, dailyLimit int, now time.Time) activity {
	perDay := perDayCounts(times)
	a := activity{Queries: len(times), QueriesToday: perDay[dayKey(now)]}
	if dailyLimit <= 0 {
		return a
	}
	for _, n := range perDay {
		if n >= dailyLimit {
			a.FullQuotaDays++
		}
	}
	return a
}

func perDayCounts(times []time.Time) map[string]int {
	out := make(map[string]int)
	for _, t := range times {
		out[dayKey(t)]++
	}
	return out
}

func dayKey(t time.Time) string {
	return t.In(keralaTime).Format("2006-01-02")
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.In(keralaTime).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, keralaTime)
}
