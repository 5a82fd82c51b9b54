package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/louisvcarpet/offergo/models"
)

// Seeds the demo account with a fully populated profile so the app can be
// exercised without typing the questionnaire: go run ./cmd/seeddemo
func main() {
	_ = godotenv.Load()

	email := os.Getenv("DEMO_EMAIL")
	if email == "" {
		email = "demo@offergo.app"
	}
	password := os.Getenv("DEMO_PASSWORD")
	if password == "" {
		password = "demo123"
	}

	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Profile{}, &models.OfferUpload{}); err != nil {
		log.Printf("migration warning: %v", err)
	}

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		hpw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("bcrypt failed: %v", err)
		}
		user = models.User{Email: email, HashedPassword: hpw}
		if err := db.Create(&user).Error; err != nil {
			log.Fatalf("failed to create demo user: %v", err)
		}
		fmt.Printf("created demo user %s id=%d\n", email, user.ID)
	} else {
		fmt.Printf("demo user %s already exists (id=%d)\n", email, user.ID)
	}

	var prof models.Profile
	if err := db.Where("user_id = ?", user.ID).First(&prof).Error; err != nil {
		prof = models.Profile{UserID: user.ID}
	}
	prof.Name = "Jordan Demo"
	prof.City = "Austin"
	prof.Country = "United States"
	prof.Nationality = "American"
	prof.MonthlyExpenses = 3500
	prof.OwnedAssetValue = 42000
	prof.DebtDescription = "Student loan, ~$280/month"
	prof.ResumeFilename = "jordan_demo_resume.pdf"
	prof.Completed = true
	if err := db.Save(&prof).Error; err != nil {
		log.Fatalf("failed to save demo profile: %v", err)
	}
	fmt.Printf("seeded demo profile for user id=%d\n", user.ID)
}
