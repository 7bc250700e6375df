package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), DriverSQLite, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createUser(t *testing.T, s *Store, email string) *User {
	t.Helper()
	u, _, err := s.CreateUser(context.Background(), email, "hash", Profile{FullName: "Anitha", PrimaryCrop: "rice"})
	require.NoError(t, err)
	return u
}

func TestRebind(t *testing.T) {
	s := &Store{driver: DriverPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", s.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	s.driver = DriverSQLite
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), "mysql", "x", nil)
	require.Error(t, err)
}

func TestCreateUserCreatesProfile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, p, err := s.CreateUser(ctx, " Farmer@Example.com ", "hash", Profile{FullName: "Anitha", Location: "Palakkad"})
	require.NoError(t, err)
	assert.Equal(t, "farmer@example.com", u.Email)
	assert.Equal(t, u.ID, p.UserID)

	got, err := s.GetUserByEmail(ctx, "FARMER@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	profile, err := s.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Anitha", profile.FullName)
	assert.Equal(t, "Palakkad", profile.Location)

	_, _, err = s.CreateUser(ctx, "farmer@example.com", "hash", Profile{})
	assert.True(t, errors.Is(err, ErrEmailTaken))

	missing, err := s.GetUserByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInsertUserMapsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Two sign-ups that both passed the email lookup.
	first, _, err := s.insertUser(ctx, "race@example.com", "hash", Profile{})
	require.NoError(t, err)
	_, _, err = s.insertUser(ctx, "race@example.com", "hash", Profile{FullName: "Second"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := s.GetUserByEmail(ctx, "race@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("disk full")))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createUser(t, s, "a@example.com")

	updated, err := s.UpdateProfile(ctx, Profile{UserID: u.ID, FullName: "Anitha K", Phone: "+91 90000 00000", Location: "Thrissur", PrimaryCrop: "banana"})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Anitha K", updated.FullName)
	assert.Equal(t, "banana", updated.PrimaryCrop)

	none, err := s.UpdateProfile(ctx, Profile{UserID: "ghost"})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestChatHistoryAppendKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createUser(t, s, "a@example.com")
	other := createUser(t, s, "b@example.com")

	chat, err := s.CreateChatHistory(ctx, u.ID, "Banana leaf spot", []ChatMessage{
		{Role: RoleUser, Content: "leaf spot?"},
		{Role: RoleAssistant, Content: "spray mancozeb"},
	})
	require.NoError(t, err)

	_, err = s.AppendChatMessages(ctx, chat.ID, u.ID,
		ChatMessage{Role: RoleUser, Content: "dosage?"},
		ChatMessage{Role: RoleAssistant, Content: "2.5 g per litre"},
	)
	require.NoError(t, err)

	got, err := s.GetChatHistory(ctx, chat.ID, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "leaf spot?", got.Messages[0].Content)
	assert.Equal(t, "2.5 g per litre", got.Messages[3].Content)

	notOwned, err := s.AppendChatMessages(ctx, chat.ID, other.ID, ChatMessage{Role: RoleUser, Content: "x"})
	require.NoError(t, err)
	assert.Nil(t, notOwned)

	list, err := s.ListChatHistory(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Banana leaf spot", list[0].Topic)

	empty, err := s.ListChatHistory(ctx, other.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRecordsAndCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createUser(t, s, "a@example.com")

	require.NoError(t, s.CreateFarmerQuery(ctx, &FarmerQuery{UserID: u.ID, Query: "q", Response: "r", Language: "en"}))
	times, err := s.ListFarmerQueryTimes(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, times, 1)
	today, err := s.CountFarmerQueriesSince(ctx, u.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, today)
	later, err := s.CountFarmerQueriesSince(ctx, u.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, later)

	a := &DiseaseAnalysis{UserID: u.ID, ImageURL: "https://img/leaf.jpg", DetectedDisease: "Sigatoka", Confidence: 0.85, Severity: "medium", TreatmentRecommendations: "t"}
	require.NoError(t, s.CreateDiseaseAnalysis(ctx, a))
	assert.NotEmpty(t, a.ID)

	analyses, err := s.ListDiseaseAnalyses(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.Equal(t, "Sigatoka", analyses[0].DetectedDisease)
	assert.InDelta(t, 0.85, analyses[0].Confidence, 1e-9)

	p := &RiskPrediction{UserID: u.ID, Crop: "pepper", Temperature: 31, Humidity: 80, PHLevel: 6.2, OverallRisk: "high",
		WeatherRisk: "high", DiseaseRisk: "medium", SoilRisk: "low", Recommendations: "drain, spray", Confidence: 0.75}
	require.NoError(t, s.CreateRiskPrediction(ctx, p))

	risks, err := s.ListRiskPredictions(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, risks, 1)
	assert.Equal(t, "pepper", risks[0].Crop)

	n, err := s.CountDiseaseAnalyses(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.CountRiskPredictions(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAwardBadgeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createUser(t, s, "a@example.com")

	first, err := s.AwardBadge(ctx, u.ID, "first_query")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.AwardBadge(ctx, u.ID, "first_query")
	require.NoError(t, err)
	assert.False(t, again)

	badges, err := s.ListBadges(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, "first_query", badges[0].BadgeKey)
}

func TestParseAdvisoryTable(t *testing.T) {
	md := `| text |
|------|
| Apply lime at 600 kg/ha before puddling in acidic Kuttanad soils. |
|   |
not a table row
| Remove pseudostems affected by rhizome weevil. |`

	rows := ParseAdvisoryTable(md)
	assert.Equal(t, []string{
		"Apply lime at 600 kg/ha before puddling in acidic Kuttanad soils.",
		"Remove pseudostems affected by rhizome weevil.",
	}, rows)
}

func TestIngestAdvisoriesFromFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	path := filepath.Join(t.TempDir(), "advisories.md")
	require.NoError(t, os.WriteFile(path, []byte("| text |\n|---|\n| one |\n| two |\n| three |\n"), 0o644))

	embed := func(_ context.Context, text string) ([]float32, error) {
		if text == "two" {
			return nil, errors.New("quota")
		}
		return []float32{1, 0}, nil
	}

	n, err := s.IngestAdvisoriesFromFile(ctx, path, embed, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	chunks, err := s.GetAllAdvisoryChunks(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, []float32{1, 0}, chunks[0].Embedding)

	// Re-ingesting replaces the previous rows.
	n, err = s.IngestAdvisoriesFromFile(ctx, path, embed, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	chunks, err = s.GetAllAdvisoryChunks(ctx)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}
