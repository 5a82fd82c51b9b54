package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/louisvcarpet/offergo/models"
	"github.com/louisvcarpet/offergo/pkg/eval"
	"github.com/louisvcarpet/offergo/pkg/flow"
	"github.com/louisvcarpet/offergo/pkg/market"
	"github.com/louisvcarpet/offergo/pkg/offerapi"
	"github.com/louisvcarpet/offergo/pkg/redact"
	"github.com/louisvcarpet/offergo/pkg/session"
)

const maxUploadBytes = 10 * 1024 * 1024

// offerService is the slice of the external client the handlers need.
type offerService interface {
	flow.API
	Chat(ctx context.Context, offerID int64, message string) (*offerapi.ChatResponse, error)
}

// Wired in main (or replaced by tests).
var (
	cfg           *Config
	logger        *zap.Logger
	sessions      session.Store
	profiles      ProfileStore
	apiClient     offerService
	authenticator Authenticator
	ratioPolicy   = market.DefaultRatioPolicy()

	// at most one submission pipeline per user at a time
	inFlight sync.Map
)

// submissionSnapshot is the read-only record of one run, superseded by the
// next submission.
type submissionSnapshot struct {
	Offers      []models.OfferUpload `json:"offers"`
	Priorities  offerapi.Priorities  `json:"priorities"`
	OfferID     int64                `json:"offer_id"`
	SubmittedAt time.Time            `json:"submitted_at"`
}

// chatEntry is one line of the linear transcript.
type chatEntry struct {
	Role string    `json:"role"` // user | assistant | system
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

func setupRoutes(r *gin.Engine) {
	r.GET("/healthz", healthHandler)
	r.GET("/metrics", metricsHandler())
	r.POST("/login", loginHandler)

	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.POST("/logout", logoutHandler)
	authGroup.GET("/profile", getProfileHandler)
	authGroup.PATCH("/profile", updateProfileHandler)
	authGroup.GET("/offers", listOffersHandler)
	authGroup.POST("/offers", uploadOfferHandler)
	authGroup.DELETE("/offers/:id", deleteOfferHandler)
	authGroup.PUT("/offers/:id/current", selectOfferHandler)
	authGroup.POST("/submissions", submitHandler)
	authGroup.GET("/analysis", analysisHandler)
	authGroup.GET("/chat", chatTranscriptHandler)
	authGroup.POST("/chat", chatHandler)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func meHandler(c *gin.Context) {
	_, email, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing identity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": email})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := authenticator.Authenticate(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	token, err := issueToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	if err := seedDemoProfile(user.ID); err != nil {
		logger.Warn("demo profile seeding failed", zap.Error(err))
	}
	marker := map[string]any{"demo": true, "started_at": time.Now().UTC()}
	if err := sessions.PutJSON(c.Request.Context(), user.Email, session.KeyDemoSession, marker); err != nil {
		logger.Warn("failed to mark demo session", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": token})
}

// seedDemoProfile fills the profile with demo data and flips the completed
// flag, mirroring what the demo login did in the original client.
func seedDemoProfile(userID uint) error {
	name := "Jordan Demo"
	city := "Austin"
	country := "United States"
	nationality := "American"
	expenses := 3500.0
	assets := 42000.0
	debt := "Student loan, ~$280/month"
	resume := "jordan_demo_resume.pdf"
	completed := true
	_, err := profiles.Update(userID, models.ProfileChanges{
		Name:            &name,
		City:            &city,
		Country:         &country,
		Nationality:     &nationality,
		MonthlyExpenses: &expenses,
		OwnedAssetValue: &assets,
		DebtDescription: &debt,
		ResumeFilename:  &resume,
		Completed:       &completed,
	})
	return err
}

// logoutHandler clears the profile and every analysis-related session key.
// Keys that are already absent are fine.
func logoutHandler(c *gin.Context) {
	userID, email, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	if err := profiles.Clear(userID); err != nil {
		logger.Warn("profile clear failed on logout", zap.Error(err))
	}
	if err := sessions.Delete(c.Request.Context(), email, session.AnalysisKeys...); err != nil {
		logger.Warn("session clear failed on logout", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func getProfileHandler(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	p, err := profiles.Load(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func updateProfileHandler(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var changes models.ProfileChanges
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := profiles.Update(userID, changes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func listOffersHandler(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	offers, err := loadOffers(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, offers)
}

func loadOffers(userID uint) ([]models.OfferUpload, error) {
	var offers []models.OfferUpload
	if err := db.Where("user_id = ?", userID).Order("created_at asc").Find(&offers).Error; err != nil {
		return nil, err
	}
	return offers, nil
}

// persistCurrentFlags writes back any IsCurrent flags EnsureSingleCurrent
// flipped. All rows commit together; a partial write would leave zero or two
// current rows in the database.
func persistCurrentFlags(offers []models.OfferUpload) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for i := range offers {
			if err := tx.Model(&models.OfferUpload{}).Where("id = ?", offers[i].ID).
				Update("is_current", offers[i].IsCurrent).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func uploadOfferHandler(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 10MB)"})
		return
	}

	id := uuid.NewString()
	storePath := filepath.Join(cfg.UploadBase, id+"_"+filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, storePath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	up := models.OfferUpload{
		ID:          id,
		UserID:      userID,
		FileName:    file.Filename,
		StorePath:   storePath,
		ContentType: file.Header.Get("Content-Type"),
	}
	if err := db.Create(&up).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}

	offers, err := loadOffers(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	prefer := ""
	if c.PostForm("current") == "true" {
		prefer = id
	}
	if models.EnsureSingleCurrent(offers, prefer) {
		if err := persistCurrentFlags(offers); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "filename": up.FileName})
}

func deleteOfferHandler(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	id := c.Param("id")
	var up models.OfferUpload
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&up).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "offer not found"})
		return
	}
	if err := db.Delete(&up).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if up.StorePath != "" {
		_ = os.Remove(up.StorePath)
	}
	offers, err := loadOffers(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if models.EnsureSingleCurrent(offers, "") {
		if err := persistCurrentFlags(offers); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "offer removed"})
}

func selectOfferHandler(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	id := c.Param("id")
	offers, err := loadOffers(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	found := false
	for i := range offers {
		if offers[i].ID == id {
			found = true
			break
		}
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "offer not found"})
		return
	}
	if models.EnsureSingleCurrent(offers, id) {
		if err := persistCurrentFlags(offers); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "current offer updated"})
}

func submitHandler(c *gin.Context) {
	userID, email, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	if _, busy := inFlight.LoadOrStore(email, true); busy {
		c.JSON(http.StatusConflict, gin.H{"error": "a submission is already running"})
		return
	}
	defer inFlight.Delete(email)

	var req struct {
		Priorities offerapi.Priorities `json:"priorities"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	offers, err := loadOffers(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	uploads := make([]flow.Upload, 0, len(offers))
	for _, o := range offers {
		u := flow.Upload{ID: o.ID, Filename: o.FileName, ContentType: o.ContentType, Current: o.IsCurrent}
		if o.IsCurrent {
			data, err := os.ReadFile(o.StorePath)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "stored document unreadable"})
				return
			}
			u.Data = data
		}
		uploads = append(uploads, u)
	}

	pipeline := flow.New(apiClient, logger)
	res, err := pipeline.Run(c.Request.Context(), flow.Input{Uploads: uploads, Priorities: req.Priorities})
	if err != nil {
		if flow.IsGuardError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var apiErr *offerapi.APIError
		if errors.As(err, &apiErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": apiErr.Body})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	snapshot := submissionSnapshot{
		Offers:      offers,
		Priorities:  req.Priorities,
		OfferID:     res.OfferID,
		SubmittedAt: time.Now().UTC(),
	}
	stores := []struct {
		key string
		val any
	}{
		{session.KeyOfferID, res.OfferID},
		{session.KeySubmission, snapshot},
		{session.KeyEvaluation, res.Evaluation},
		{session.KeyParsed, res.Ingest.Parsed},
	}
	for _, s := range stores {
		if err := sessions.PutJSON(ctx, email, s.key, s.val); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist analysis state"})
			return
		}
	}
	if res.Snapshot != nil {
		if err := sessions.PutJSON(ctx, email, session.KeySnapshot, res.Snapshot); err != nil {
			logger.Warn("failed to persist market snapshot", zap.Error(err))
		}
	} else {
		// a previous run's snapshot must not leak into this submission
		_ = sessions.Delete(ctx, email, session.KeySnapshot)
	}

	logger.Info("submission complete",
		zap.Int64("offer_id", res.OfferID),
		zap.String("offer_band", redact.BucketAmount(market.OfferTotal(res.Ingest.Parsed))))
	c.JSON(http.StatusOK, gin.H{"state": string(pipeline.State()), "offer_id": res.OfferID})
}

// comparisonRow is one line of the multi-offer table. Only the evaluated
// (current) offer carries a score.
type comparisonRow struct {
	OfferID   string `json:"offer_id"`
	Filename  string `json:"filename"`
	IsCurrent bool   `json:"is_current"`
	Overall   *int   `json:"overall,omitempty"`
}

type analysisResponse struct {
	eval.Analysis
	FinancialProjection string          `json:"financial_projection"`
	MarketComparison    *market.Totals  `json:"market_comparison,omitempty"`
	ComparisonRows      []comparisonRow `json:"comparison_rows,omitempty"`
}

func analysisHandler(c *gin.Context) {
	userID, email, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	ctx := c.Request.Context()

	var evaluation offerapi.Evaluation
	found, err := sessions.GetJSON(ctx, email, session.KeyEvaluation, &evaluation)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analysis state"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed analysis for this session"})
		return
	}
	var snapshot submissionSnapshot
	if found, err = sessions.GetJSON(ctx, email, session.KeySubmission, &snapshot); err != nil || !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed analysis for this session"})
		return
	}

	analysis, err := eval.Normalize(evaluation, snapshot.Priorities)
	if err != nil {
		// malformed upstream payload: fail loudly, never render zeros
		c.JSON(http.StatusBadGateway, gin.H{"error": "analysis failed: " + err.Error()})
		return
	}

	var parsed offerapi.ParsedOffer
	_, _ = sessions.GetJSON(ctx, email, session.KeyParsed, &parsed)
	var marketSnap *offerapi.MarketSnapshot
	var snap offerapi.MarketSnapshot
	if found, _ := sessions.GetJSON(ctx, email, session.KeySnapshot, &snap); found {
		marketSnap = &snap
	}

	resp := analysisResponse{Analysis: *analysis}

	totals, comparable := market.Derive(parsed, evaluation, marketSnap, ratioPolicy)
	if comparable {
		resp.MarketComparison = &totals
	}

	offerTotal := totals.Offer
	if offerTotal <= 0 {
		offerTotal = market.OfferTotal(parsed)
	}
	var monthlyExpenses float64
	if p, err := profiles.Load(userID); err == nil {
		monthlyExpenses = p.MonthlyExpenses
	}
	resp.FinancialProjection = eval.FinancialProjection(offerTotal, monthlyExpenses)

	if len(snapshot.Offers) > 1 {
		rows := make([]comparisonRow, 0, len(snapshot.Offers))
		for _, o := range snapshot.Offers {
			row := comparisonRow{OfferID: o.ID, Filename: o.FileName, IsCurrent: o.IsCurrent}
			if o.IsCurrent {
				overall := analysis.Overall
				row.Overall = &overall
			}
			rows = append(rows, row)
		}
		resp.ComparisonRows = rows
	}

	c.JSON(http.StatusOK, resp)
}

func chatTranscriptHandler(c *gin.Context) {
	_, email, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	transcript := []chatEntry{}
	_, _ = sessions.GetJSON(c.Request.Context(), email, session.KeyTranscript, &transcript)
	c.JSON(http.StatusOK, transcript)
}

func chatHandler(c *gin.Context) {
	_, email, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	transcript := []chatEntry{}
	_, _ = sessions.GetJSON(ctx, email, session.KeyTranscript, &transcript)
	transcript = append(transcript, chatEntry{Role: "user", Text: req.Message, At: time.Now().UTC()})

	var offerID int64
	found, err := sessions.GetJSON(ctx, email, session.KeyOfferID, &offerID)
	if err != nil || !found || offerID == 0 {
		msg := "No analyzed offer is linked to this session. Run an analysis before asking questions."
		transcript = append(transcript, chatEntry{Role: "system", Text: msg, At: time.Now().UTC()})
		saveTranscript(ctx, email, transcript)
		c.JSON(http.StatusConflict, gin.H{"error": msg})
		return
	}

	answer, err := apiClient.Chat(ctx, offerID, redact.PII(req.Message))
	if err != nil {
		detail := err.Error()
		var apiErr *offerapi.APIError
		if errors.As(err, &apiErr) {
			detail = apiErr.Body
		}
		msg := "The offer assistant could not answer: " + detail
		// the transcript keeps the failed exchange; no rollback
		transcript = append(transcript, chatEntry{Role: "system", Text: msg, At: time.Now().UTC()})
		saveTranscript(ctx, email, transcript)
		c.JSON(http.StatusBadGateway, gin.H{"error": detail})
		return
	}

	transcript = append(transcript, chatEntry{Role: "assistant", Text: answer.Answer, At: time.Now().UTC()})
	saveTranscript(ctx, email, transcript)
	c.JSON(http.StatusOK, gin.H{"answer": answer.Answer, "pending": false})
}

func saveTranscript(ctx context.Context, email string, transcript []chatEntry) {
	if err := sessions.PutJSON(ctx, email, session.KeyTranscript, transcript); err != nil {
		logger.Warn("failed to persist chat transcript", zap.Error(err))
	}
}
