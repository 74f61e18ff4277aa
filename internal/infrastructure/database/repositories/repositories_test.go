package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/datatypes"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupTestDB creates a PostgreSQL testcontainer for testing
func setupTestDB(t *testing.T) *gorm.DB {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(pgdriver.Open(connStr), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := db.AutoMigrate(domain.Models()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

type fixture struct {
	owner    *domain.UserProfile
	company  *domain.Company
	location *domain.Location
	conn     *domain.PlatformConnection
}

func seed(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	owner := &domain.UserProfile{Email: uuid.NewString() + "@example.com", Language: "fr"}
	require.NoError(t, db.Create(owner).Error)

	company := &domain.Company{Name: "Bistro", OwnerID: owner.ID}
	require.NoError(t, db.Create(company).Error)

	location := &domain.Location{CompanyID: company.ID, Name: "Downtown", IsActive: true}
	require.NoError(t, db.Create(location).Error)

	conn := &domain.PlatformConnection{
		LocationID:         location.ID,
		Platform:           "google",
		PlatformLocationID: "bistro-" + uuid.NewString()[:8],
		IsActive:           true,
	}
	require.NoError(t, db.Create(conn).Error)

	return fixture{owner: owner, company: company, location: location, conn: conn}
}

func insertReview(t *testing.T, repo *ReviewRepository, connID uuid.UUID, externalID string) *domain.Review {
	t.Helper()
	review := domain.StandardReview{ExternalID: externalID, Content: "Great food", Rating: 5}.ToReview(connID)
	inserted, err := repo.InsertIfAbsent(context.Background(), review)
	require.NoError(t, err)
	require.True(t, inserted)
	return review
}

func TestReviewRepository_InsertIfAbsent_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewReviewRepository(db, nil)
	ctx := context.Background()

	insertReview(t, repo, f.conn.ID, "ext-1")

	again := domain.StandardReview{ExternalID: "ext-1", Content: "Edited text"}.ToReview(f.conn.ID)
	inserted, err := repo.InsertIfAbsent(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	var count int64
	require.NoError(t, db.Model(&domain.Review{}).Where("external_id = ?", "ext-1").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var stored domain.Review
	require.NoError(t, db.Where("external_id = ?", "ext-1").Take(&stored).Error)
	assert.Equal(t, "Great food", stored.Content)
}

func TestReviewRepository_Backlog(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewReviewRepository(db, nil)
	sentiments := NewSentimentRepository(db, nil)
	ctx := context.Background()

	analyzed := insertReview(t, repo, f.conn.ID, "a")
	pending := insertReview(t, repo, f.conn.ID, "b")

	require.NoError(t, sentiments.UpsertSentiment(ctx, &domain.SentimentAnalysis{
		ReviewID:   analyzed.ID,
		Sentiment:  domain.SentimentPositive,
		Confidence: domain.DefaultConfidence,
		Source:     domain.SourceLLM,
	}))

	// reviews of an inactive connection are excluded
	inactive := &domain.PlatformConnection{LocationID: f.location.ID, Platform: "yelp", PlatformLocationID: "old", IsActive: true}
	require.NoError(t, db.Create(inactive).Error)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)
	insertReview(t, repo, inactive.ID, "c")

	count, err := repo.CountUnanalyzed(ctx, f.company.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	reviews, err := repo.ListUnanalyzed(ctx, f.company.ID, 100)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, pending.ID, reviews[0].ID)

	loaded, err := repo.GetWithCompany(ctx, pending.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.PlatformConnection)
	require.NotNil(t, loaded.PlatformConnection.Location)
	assert.Equal(t, f.company.ID, loaded.PlatformConnection.Location.CompanyID)
}

func TestSentimentRepository_UpsertIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	reviews := NewReviewRepository(db, nil)
	repo := NewSentimentRepository(db, nil)
	ctx := context.Background()

	review := insertReview(t, reviews, f.conn.ID, "ext-1")

	first := &domain.SentimentAnalysis{
		ReviewID:       review.ID,
		Sentiment:      domain.SentimentNegative,
		SentimentScore: -0.5,
		Confidence:     domain.DefaultConfidence,
		Source:         domain.SourceLLM,
	}
	require.NoError(t, repo.UpsertSentiment(ctx, first))

	second := &domain.SentimentAnalysis{
		ReviewID:       review.ID,
		Sentiment:      domain.SentimentPositive,
		SentimentScore: 0.9,
		Emotions:       datatypes.JSONSlice[string]{"😍"},
		Confidence:     domain.DefaultConfidence,
		Source:         domain.SourceLLM,
	}
	require.NoError(t, repo.UpsertSentiment(ctx, second))

	var rows []domain.SentimentAnalysis
	require.NoError(t, db.Where("review_id = ?", review.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.SentimentPositive, rows[0].Sentiment)
	assert.InDelta(t, 0.9, rows[0].SentimentScore, 1e-9)

	has, err := repo.HasAnalysis(ctx, review.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestTaxonomyRepository_KeywordsAndLinks(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	review := insertReview(t, NewReviewRepository(db, nil), f.conn.ID, "ext-1")
	repo := NewTaxonomyRepository(db, nil)
	ctx := context.Background()

	id1, err := repo.UpsertKeyword(ctx, &domain.Keyword{Text: "friendly staff", NormalizedText: "FRIENDLY STAFF", Category: domain.CategoryStaff})
	require.NoError(t, err)
	id2, err := repo.UpsertKeyword(ctx, &domain.Keyword{Text: "Friendly Staff ", NormalizedText: "FRIENDLY STAFF", Category: domain.CategoryStaff})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	link := func() *domain.ReviewKeyword {
		return &domain.ReviewKeyword{ReviewID: review.ID, KeywordID: id1, PlatformConnectionID: f.conn.ID, RelevanceScore: 0.8}
	}
	require.NoError(t, repo.LinkKeyword(ctx, link()))
	require.NoError(t, repo.LinkKeyword(ctx, link()))

	var links int64
	require.NoError(t, db.Model(&domain.ReviewKeyword{}).Where("review_id = ?", review.ID).Count(&links).Error)
	assert.Equal(t, int64(1), links)
}

func TestTaxonomyRepository_TopicUpsert(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewTaxonomyRepository(db, nil)
	ctx := context.Background()

	id1, err := repo.UpsertTopic(ctx, f.company.ID, "Service", domain.SentimentNegative, []string{"slow", "rude"})
	require.NoError(t, err)
	id2, err := repo.UpsertTopic(ctx, f.company.ID, "Service", domain.SentimentNegative, []string{"slow", "cold"})
	require.NoError(t, err)
	id3, err := repo.UpsertTopic(ctx, f.company.ID, "Service", domain.SentimentPositive, nil)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Equal(t, id1, id3)

	// names are not normalized
	other, err := repo.UpsertTopic(ctx, f.company.ID, "service", domain.SentimentPositive, nil)
	require.NoError(t, err)
	assert.NotEqual(t, id1, other)

	var topic domain.Topic
	require.NoError(t, db.Where("id = ?", id1).Take(&topic).Error)
	assert.Equal(t, 3, topic.OccurrenceCount)
	assert.Equal(t, map[string]int{"negative": 2, "positive": 1}, topic.SentimentDistribution.Data())
	assert.ElementsMatch(t, []string{"cold", "rude", "slow"}, []string(topic.Keywords))
}

func TestFetchLogRepository_Cooldown(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewFetchLogRepository(db, nil)
	ctx := context.Background()
	now := time.Now().UTC()
	cooldown := 48 * time.Hour

	require.NoError(t, db.Create(&domain.FetchCallLog{
		CompanyID:   f.company.ID,
		TriggeredAt: now.Add(-47 * time.Hour),
		Status:      domain.FetchStatusSuccess,
	}).Error)

	created, blocking, err := repo.BeginIfEligible(ctx, f.company.ID, &f.owner.ID, now, cooldown)
	require.NoError(t, err)
	assert.Nil(t, created)
	require.NotNil(t, blocking)

	// an older success does not block
	other := seed(t, db)
	require.NoError(t, db.Create(&domain.FetchCallLog{
		CompanyID:   other.company.ID,
		TriggeredAt: now.Add(-49 * time.Hour),
		Status:      domain.FetchStatusSuccess,
	}).Error)
	created, blocking, err = repo.BeginIfEligible(ctx, other.company.ID, nil, now, cooldown)
	require.NoError(t, err)
	assert.Nil(t, blocking)
	require.NotNil(t, created)
	assert.Equal(t, domain.FetchStatusPending, created.Status)

	// the pending row now blocks a second trigger
	_, blocking, err = repo.BeginIfEligible(ctx, other.company.ID, nil, now.Add(time.Minute), cooldown)
	require.NoError(t, err)
	require.NotNil(t, blocking)
	assert.Equal(t, created.ID, blocking.ID)

	require.NoError(t, repo.Complete(ctx, created.ID, 2, 7, []string{"skipped yelp"}, now))
	stored, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FetchStatusSuccess, stored.Status)
	assert.Equal(t, 7, stored.ReviewsInserted)
	assert.Equal(t, []string{"skipped yelp"}, []string(stored.Warnings))
}

func TestFetchLogRepository_ErrorLogsDoNotBlock(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewFetchLogRepository(db, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	created, _, err := repo.BeginIfEligible(ctx, f.company.ID, nil, now, 48*time.Hour)
	require.NoError(t, err)
	require.NoError(t, repo.Fail(ctx, created.ID, "boom", now))

	created, blocking, err := repo.BeginIfEligible(ctx, f.company.ID, nil, now.Add(time.Hour), 48*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, blocking)
	assert.NotNil(t, created)
}

func TestRateLimitRepository_Window(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRateLimitRepository(db, "openai", nil)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, repo.Record(ctx, now.Add(-2*time.Minute)))
	require.NoError(t, repo.Record(ctx, now.Add(-40*time.Second)))
	require.NoError(t, repo.Record(ctx, now.Add(-5*time.Second)))

	count, oldest, err := repo.CountSince(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.WithinDuration(t, now.Add(-40*time.Second), oldest, time.Millisecond)

	require.NoError(t, repo.Prune(ctx, now.Add(-time.Minute)))
	var total int64
	require.NoError(t, db.Model(&domain.RateLimitLog{}).Count(&total).Error)
	assert.Equal(t, int64(2), total)
}

func TestCompanyRepository_ConnectionsAndLanguage(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewCompanyRepository(db, nil)
	ctx := context.Background()

	lang, err := repo.CompanyLanguage(ctx, f.company.ID)
	require.NoError(t, err)
	assert.Equal(t, "fr", lang)

	bySlug := &domain.PlatformConnection{
		LocationID: f.location.ID,
		Platform:   "yelp",
		IsActive:   true,
		Metadata:   datatypes.JSONMap{"slug": "bistro-yelp"},
	}
	require.NoError(t, db.Create(bySlug).Error)

	found, err := repo.FindConnectionBySlug(ctx, "", "bistro-yelp")
	require.NoError(t, err)
	assert.Equal(t, bySlug.ID, found.ID)

	_, err = repo.FindConnectionBySlug(ctx, "google", "bistro-yelp")
	assert.Error(t, err)

	now := time.Now().UTC()
	require.NoError(t, repo.MarkConnectionSynced(ctx, bySlug.ID, now, map[string]interface{}{"last_job_id": "job-1"}))
	reloaded, err := repo.GetConnection(ctx, bySlug.ID)
	require.NoError(t, err)
	assert.Equal(t, "bistro-yelp", reloaded.Metadata["slug"])
	assert.Equal(t, "job-1", reloaded.Metadata["last_job_id"])
	require.NotNil(t, reloaded.LastSyncAt)

	locations, err := repo.ListActiveLocations(ctx, f.company.ID)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Len(t, locations[0].Connections, 2)

	_, err = repo.FindCompany(ctx, uuid.New())
	assert.Error(t, err)
}
