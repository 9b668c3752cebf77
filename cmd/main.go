package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mahalbook/mahalbook-server/cmd/api"
	"github.com/mahalbook/mahalbook-server/cmd/models"
	"github.com/mahalbook/mahalbook-server/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations()
			return
		case "clear-db":
			runDatabaseClear()
			return
		case "seed-admin":
			runAdminSeed()
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	startServer()
}

func runMigrations() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database for migrations")

	if err := performMigrations(DB); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func performMigrations(DB *gorm.DB) error {
	migrations := map[interface{}]string{
		&models.User{}:                  "User",
		&models.PasswordResetToken{}:    "PasswordResetToken",
		&models.Mahal{}:                 "Mahal",
		&models.Contractor{}:            "Contractor",
		&models.ContractorPackage{}:     "ContractorPackage",
		&models.Service{}:               "Service",
		&models.Cart{}:                  "Cart",
		&models.CartContractor{}:        "CartContractor",
		&models.Booking{}:               "Booking",
		&models.BookingContractorItem{}: "BookingContractorItem",
		&models.Payment{}:               "Payment",
		&models.ActivityLog{}:           "ActivityLog",
		&models.Device{}:                "Device",
		&models.NotificationHistory{}:   "NotificationHistory",
	}

	log.Println("Starting database migrations...")
	for model, name := range migrations {
		log.Printf("Migrating %s table...", name)
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", name, err)
		}
		log.Printf("%s migration successful", name)
	}

	log.Println("All migrations completed successfully")
	return nil
}

// runAdminSeed creates the initial admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD. Safe to run repeatedly.
func runAdminSeed() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
	}()

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}

	var existing models.User
	if err := DB.Where("email = ?", email).First(&existing).Error; err == nil {
		log.Printf("Admin account %s already exists", email)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Error hashing admin password: %v", err)
	}

	admin := models.User{
		FullName:      "Administrator",
		Email:         email,
		PasswordHash:  string(hash),
		Role:          models.RoleAdmin,
		IsActive:      true,
		EmailVerified: true,
	}
	if err := DB.Create(&admin).Error; err != nil {
		log.Fatalf("Error creating admin account: %v", err)
	}
	log.Printf("Admin account %s created", email)
}

func startServer() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	server := api.NewApiServer(":"+port, DB)

	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()
	log.Printf("Server running on port %s", port)

	<-quit
	log.Println("Shutting down server...")
	time.Sleep(time.Second)
}

func clearDatabase(DB *gorm.DB, tables []interface{}) error {
	if len(tables) == 0 {
		tables = []interface{}{
			&models.Payment{},
			&models.BookingContractorItem{},
			&models.Booking{},
			&models.CartContractor{},
			&models.Cart{},
			&models.ContractorPackage{},
			&models.Contractor{},
			&models.Service{},
			&models.Mahal{},
			&models.PasswordResetToken{},
			&models.Device{},
			&models.NotificationHistory{},
			&models.ActivityLog{},
			&models.User{},
		}
	}

	log.Println("Dropping tables...")

	for _, table := range tables {
		if err := DB.Migrator().DropTable(table); err != nil {
			log.Printf("Warning dropping table %T: %v", table, err)
		} else {
			log.Printf("Table %T dropped", table)
		}
	}

	return nil
}

func runDatabaseClear() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()

	log.Println("Preparing to clear database...")

	var confirmation string
	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	fmt.Scanln(&confirmation)

	if confirmation != "yes" {
		log.Println("Database clearing cancelled.")
		return
	}

	var tableNames string
	fmt.Print("Enter table names to clear (comma separated) or leave blank to clear all: ")
	fmt.Scanln(&tableNames)

	var tables []interface{}
	if tableNames != "" {
		for _, table := range strings.Split(tableNames, ",") {
			switch strings.TrimSpace(table) {
			case "User":
				tables = append(tables, &models.User{})
			case "PasswordResetToken":
				tables = append(tables, &models.PasswordResetToken{})
			case "Mahal":
				tables = append(tables, &models.Mahal{})
			case "Contractor":
				tables = append(tables, &models.Contractor{})
			case "ContractorPackage":
				tables = append(tables, &models.ContractorPackage{})
			case "Service":
				tables = append(tables, &models.Service{})
			case "Cart":
				tables = append(tables, &models.Cart{})
			case "CartContractor":
				tables = append(tables, &models.CartContractor{})
			case "Booking":
				tables = append(tables, &models.Booking{})
			case "BookingContractorItem":
				tables = append(tables, &models.BookingContractorItem{})
			case "Payment":
				tables = append(tables, &models.Payment{})
			case "ActivityLog":
				tables = append(tables, &models.ActivityLog{})
			case "Device":
				tables = append(tables, &models.Device{})
			case "NotificationHistory":
				tables = append(tables, &models.NotificationHistory{})
			default:
				log.Printf("Unknown table: %s", table)
			}
		}
	}

	if err := clearDatabase(DB, tables); err != nil {
		log.Fatalf("Error clearing database: %v", err)
	}

	log.Println("Database cleared successfully")
}
