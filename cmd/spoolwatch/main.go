package main

import (
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/louisvcarpet/offergo/models"
)

// spoolwatch registers offer PDFs dropped into a spool directory as uploads
// for a user, as if they came through POST /offers. Dev convenience for
// batch-loading demo documents:
//
//	go run ./cmd/spoolwatch -dir ./spool -email demo@offergo.app
var (
	verbose bool
	db      *gorm.DB
)

func main() {
	dir := flag.String("dir", "spool", "directory to watch for offer PDFs")
	email := flag.String("email", "demo@offergo.app", "account to attach uploads to")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	var err error
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	var user models.User
	if err := db.Where("email = ?", *email).First(&user).Error; err != nil {
		log.Fatalf("user %s not found; run ./cmd/seeddemo first", *email)
	}

	uploadBase := os.Getenv("UPLOAD_BASE")
	if uploadBase == "" {
		uploadBase = "uploads"
	}
	if err := os.MkdirAll(uploadBase, 0o755); err != nil {
		log.Fatalf("mkdir %s: %v", uploadBase, err)
	}
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatalf("mkdir %s: %v", *dir, err)
	}

	// pick up files that were already in the spool before we started
	entries, _ := os.ReadDir(*dir)
	for _, e := range entries {
		if !e.IsDir() {
			register(filepath.Join(*dir, e.Name()), user.ID, uploadBase)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("watcher: %v", err)
	}
	defer watcher.Close()
	if err := watcher.Add(*dir); err != nil {
		log.Fatalf("watch %s: %v", *dir, err)
	}
	log.Printf("watching %s for offer PDFs (user id=%d)", *dir, user.ID)

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// writers may still be flushing; give them a beat
			time.Sleep(200 * time.Millisecond)
			register(ev.Name, user.ID, uploadBase)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)
		}
	}
}

func register(path string, userID uint, uploadBase string) {
	name := filepath.Base(path)
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		if verbose {
			log.Printf("skip non-pdf %s", name)
		}
		return
	}
	var existing models.OfferUpload
	if err := db.Where("user_id = ? AND file_name = ?", userID, name).First(&existing).Error; err == nil {
		if verbose {
			log.Printf("already registered %s (id=%s)", name, existing.ID)
		}
		return
	}

	id := uuid.NewString()
	dest := filepath.Join(uploadBase, id+"_"+name)
	if err := copyFile(path, dest); err != nil {
		log.Printf("copy %s: %v", name, err)
		return
	}
	up := models.OfferUpload{
		ID:          id,
		UserID:      userID,
		FileName:    name,
		StorePath:   dest,
		ContentType: "application/pdf",
	}
	if err := db.Create(&up).Error; err != nil {
		log.Printf("db save %s: %v", name, err)
		return
	}

	var offers []models.OfferUpload
	if err := db.Where("user_id = ?", userID).Order("created_at asc").Find(&offers).Error; err == nil {
		if models.EnsureSingleCurrent(offers, "") {
			err := db.Transaction(func(tx *gorm.DB) error {
				for i := range offers {
					if err := tx.Model(&models.OfferUpload{}).Where("id = ?", offers[i].ID).
						Update("is_current", offers[i].IsCurrent).Error; err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				log.Printf("current flag update failed: %v", err)
			}
		}
	}
	log.Printf("registered offer %s (id=%s)", name, id)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
