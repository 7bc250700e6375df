package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kerala-agrisage/agrisage/internal/store"
)

const (
	recentLimit   = 3
	activityLimit = 5
	weekDays      = 7
)

type DashboardStats struct {
	QueriesToday      int `json:"queriesUsed"`
	QueriesLimit      int `json:"queriesLimit"`
	ImagesAnalyzed    int `json:"imagesAnalyzed"`
	RiskAssessments   int `json:"riskAssessments"`
	BadgesEarned      int `json:"badgesEarned"`
	TotalBadges       int `json:"totalBadges"`
	TotalInteractions int `json:"totalInteractions"`
}

type BadgeStatus struct {
	BadgeDefinition
	Progress int        `json:"progress"`
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earnedAt,omitempty"`
}

type DayCount struct {
	Day     string `json:"day"`
	Date    string `json:"date"`
	Queries int    `json:"queries"`
}

type ActivityItem struct {
	Type    string    `json:"type"` // query, image, risk, badge
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

type Dashboard struct {
	Stats          DashboardStats `json:"stats"`
	Badges         []BadgeStatus  `json:"badges"`
	WeeklyProgress []DayCount     `json:"weeklyProgress"`
	RecentActivity []ActivityItem `json:"recentActivity"`
}

type DashboardService struct {
	store      *store.Store
	dailyLimit int
	now        func() time.Time
}

func NewDashboardService(db *store.Store, dailyLimit int) *DashboardService {
	return &DashboardService{store: db, dailyLimit: dailyLimit, now: time.Now}
}

// Load gathers the user's dashboard. The independent reads run concurrently.
func (s *DashboardService) Load(ctx context.Context, userID string) (*Dashboard, error) {
	now := s.now()

	var (
		times    []time.Time
		today    int
		analyses int
		risks    int
		earned   []store.UserBadge
		images   []store.DiseaseAnalysis
		assessed []store.RiskPrediction
		chats    []store.ChatHistory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { times, err = s.store.ListFarmerQueryTimes(gctx, userID); return })
	g.Go(func() (err error) { today, err = s.store.CountFarmerQueriesSince(gctx, userID, startOfDay(now)); return })
	g.Go(func() (err error) { analyses, err = s.store.CountDiseaseAnalyses(gctx, userID); return })
	g.Go(func() (err error) { risks, err = s.store.CountRiskPredictions(gctx, userID); return })
	g.Go(func() (err error) { earned, err = s.store.ListBadges(gctx, userID); return })
	g.Go(func() (err error) { images, err = s.store.ListDiseaseAnalyses(gctx, userID, recentLimit); return })
	g.Go(func() (err error) { assessed, err = s.store.ListRiskPredictions(gctx, userID, recentLimit); return })
	g.Go(func() (err error) { chats, err = s.store.ListChatHistory(gctx, userID, recentLimit); return })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}

	a := tallyQueries(times, s.dailyLimit, now)
	a.QueriesToday = today
	a.Analyses = analyses
	a.Risks = risks

	earnedAt := make(map[string]time.Time, len(earned))
	for _, b := range earned {
		earnedAt[b.BadgeKey] = b.EarnedAt
	}
	badges := make([]BadgeStatus, 0, len(Badges))
	for _, def := range Badges {
		st := BadgeStatus{BadgeDefinition: def, Progress: min(def.measure(a), def.Target)}
		if at, ok := earnedAt[def.Key]; ok {
			st.Earned = true
			st.EarnedAt = &at
		}
		badges = append(badges, st)
	}

	return &Dashboard{
		Stats: DashboardStats{
			QueriesToday:      a.QueriesToday,
			QueriesLimit:      s.dailyLimit,
			ImagesAnalyzed:    a.Analyses,
			RiskAssessments:   a.Risks,
			BadgesEarned:      len(earned),
			TotalBadges:       len(Badges),
			TotalInteractions: a.interactions(),
		},
		Badges:         badges,
		WeeklyProgress: weeklyProgress(times, now),
		RecentActivity: recentActivity(chats, images, assessed, earned),
	}, nil
}

// weeklyProgress returns query counts for the last seven Kerala days, oldest first.
func weeklyProgress(times []time.Time, now time.Time) []DayCount {
	perDay := perDayCounts(times)
	out := make([]DayCount, 0, weekDays)
	start := startOfDay(now).AddDate(0, 0, -(weekDays - 1))
	for i := 0; i < weekDays; i++ {
		d := start.AddDate(0, 0, i)
		key := d.Format("2006-01-02")
		out = append(out, DayCount{Day: d.Format("Mon"), Date: key, Queries: perDay[key]})
	}
	return out
}

func recentActivity(chats []store.ChatHistory, images []store.DiseaseAnalysis, risks []store.RiskPrediction, badges []store.UserBadge) []ActivityItem {
	var items []ActivityItem
	for _, c := range chats {
		items = append(items, ActivityItem{Type: "query", Content: "Asked about " + c.Topic, At: c.UpdatedAt})
	}
	for _, a := range images {
		items = append(items, ActivityItem{Type: "image", Content: "Analyzed crop image: " + a.DetectedDisease, At: a.CreatedAt})
	}
	for _, r := range risks {
		items = append(items, ActivityItem{Type: "risk", Content: "Completed risk assessment for " + r.Crop, At: r.CreatedAt})
	}
	for _, b := range badges {
		items = append(items, ActivityItem{Type: "badge", Content: fmt.Sprintf("Earned '%s' badge!", badgeName(b.BadgeKey)), At: b.EarnedAt})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].At.After(items[j].At) })
	if len(items) > activityLimit {
		items = items[:activityLimit]
	}
	if items == nil {
		items = []ActivityItem{}
	}
	return items
}

func badgeName(key string) string {
	for _, b := range Badges {
		if b.Key == key {
			return b.Name
		}
	}
	return key
}
