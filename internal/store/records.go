package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (s *Store) CreateFarmerQuery(ctx context.Context, q *FarmerQuery) error {
	q.ID = uuid.NewString()
	q.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, s.rebind("INSERT INTO farmer_queries (id, user_id, query, response, language, created_at) VALUES (?, ?, ?, ?, ?, ?)"),
		q.ID, q.UserID, q.Query, q.Response, q.Language, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert farmer query: %w", err)
	}
	return nil
}

// ListFarmerQueryTimes returns the creation time of every query the user has made, oldest first.
func (s *Store) ListFarmerQueryTimes(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT created_at FROM farmer_queries WHERE user_id = ? ORDER BY created_at ASC"), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query farmer queries: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan farmer query time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func (s *Store) CountFarmerQueriesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM farmer_queries WHERE user_id = ? AND created_at >= ?"), userID, since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count farmer queries: %w", err)
	}
	return n, nil
}

func (s *Store) CreateDiseaseAnalysis(ctx context.Context, a *DiseaseAnalysis) error {
	a.ID = uuid.NewString()
	a.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO disease_analysis
        (id, user_id, image_url, detected_disease, confidence, severity, treatment_recommendations, prevention, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.UserID, a.ImageURL, a.DetectedDisease, a.Confidence, a.Severity, a.TreatmentRecommendations, a.Prevention, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert disease analysis: %w", err)
	}
	return nil
}

func (s *Store) ListDiseaseAnalyses(ctx context.Context, userID string, limit int) ([]DiseaseAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, user_id, image_url, detected_disease, confidence, severity, treatment_recommendations, prevention, created_at
        FROM disease_analysis WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query disease analyses: %w", err)
	}
	defer rows.Close()

	out := []DiseaseAnalysis{}
	for rows.Next() {
		var a DiseaseAnalysis
		if err := rows.Scan(&a.ID, &a.UserID, &a.ImageURL, &a.DetectedDisease, &a.Confidence, &a.Severity,
			&a.TreatmentRecommendations, &a.Prevention, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan disease analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CountDiseaseAnalyses(ctx context.Context, userID string) (int, error) {
	return s.count(ctx, "disease_analysis", userID)
}

func (s *Store) CreateRiskPrediction(ctx context.Context, p *RiskPrediction) error {
	p.ID = uuid.NewString()
	p.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO risk_predictions
        (id, user_id, crop, location, season, temperature, humidity, ph_level, overall_risk, weather_risk, disease_risk, soil_risk, recommendations, confidence, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.UserID, p.Crop, p.Location, p.Season, p.Temperature, p.Humidity, p.PHLevel,
		p.OverallRisk, p.WeatherRisk, p.DiseaseRisk, p.SoilRisk, p.Recommendations, p.Confidence, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert risk prediction: %w", err)
	}
	return nil
}

func (s *Store) ListRiskPredictions(ctx context.Context, userID string, limit int) ([]RiskPrediction, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, user_id, crop, location, season, temperature, humidity, ph_level,
        overall_risk, weather_risk, disease_risk, soil_risk, recommendations, confidence, created_at
        FROM risk_predictions WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk predictions: %w", err)
	}
	defer rows.Close()

	out := []RiskPrediction{}
	for rows.Next() {
		var p RiskPrediction
		if err := rows.Scan(&p.ID, &p.UserID, &p.Crop, &p.Location, &p.Season, &p.Temperature, &p.Humidity, &p.PHLevel,
			&p.OverallRisk, &p.WeatherRisk, &p.DiseaseRisk, &p.SoilRisk, &p.Recommendations, &p.Confidence, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan risk prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CountRiskPredictions(ctx context.Context, userID string) (int, error) {
	return s.count(ctx, "risk_predictions", userID)
}

func (s *Store) count(ctx context.Context, table, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM "+table+" WHERE user_id = ?"), userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// AwardBadge records a badge once per user. It reports whether the badge was newly earned.
func (s *Store) AwardBadge(ctx context.Context, userID, badgeKey string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO user_badges (user_id, badge_key, earned_at) VALUES (?, ?, ?)
        ON CONFLICT (user_id, badge_key) DO NOTHING`), userID, badgeKey, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to award badge %s: %w", badgeKey, err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (s *Store) ListBadges(ctx context.Context, userID string) ([]UserBadge, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT user_id, badge_key, earned_at FROM user_badges WHERE user_id = ? ORDER BY earned_at ASC"), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query badges: %w", err)
	}
	defer rows.Close()

	out := []UserBadge{}
	for rows.Next() {
		var b UserBadge
		if err := rows.Scan(&b.UserID, &b.BadgeKey, &b.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
