package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"hotel-reservation/models"
)

func mysqlDSNFromURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}

	user := u.User.Username()
	pass, _ := u.User.Password()
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "3306"
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", "", fmt.Errorf("mysql url missing database name")
	}

	q := u.Query()
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "True")
	}
	if q.Get("loc") == "" {
		q.Set("loc", "UTC")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", user, pass, host, port, dbName, q.Encode())
	return dsn, dbName, nil
}

// MySQLDSN prefers MYSQL_URL / DATABASE_URL and falls back to the DB_* parts.
func (s *Settings) MySQLDSN() (string, string, error) {
	raw := strings.TrimSpace(s.MySQLURL)
	if raw == "" {
		raw = strings.TrimSpace(s.DatabaseURL)
	}

	if raw != "" {
		if strings.HasPrefix(raw, "mysql://") {
			return mysqlDSNFromURL(raw)
		}
		return raw, strings.TrimSpace(s.DBName), nil
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		s.DBUser, s.DBPass, s.DBHost, s.DBPort, s.DBName,
	)
	return dsn, s.DBName, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// ConnectDatabase opens the configured database, migrates it and seeds it
// when DB_SEED is set.
func ConnectDatabase(s *Settings) (*gorm.DB, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(s.DBLogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	cfg := &gorm.Config{Logger: newLogger, NowFunc: func() time.Time { return time.Now().UTC() }}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(s.DBDriver) {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(s.SQLitePath), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", s.SQLitePath, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// one writer at a time, and transactions must not wait on a second connection
		sqlDB.SetMaxOpenConns(1)
	default:
		dsn, _, derr := s.MySQLDSN()
		if derr != nil {
			return nil, derr
		}
		db, err = gorm.Open(mysql.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	if s.DBSeed {
		if err := SeedDatabase(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate creates or updates the tables, parents first.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Room{},
		&models.Reservation{},
		&models.Sequence{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

type seedRoom struct {
	roomType  string
	maxGuests int
	price     int64
	desc      string
	features  string
}

func defaultRooms() []models.Room {
	groups := []struct {
		floor int
		seedRoom
	}{
		{1, seedRoom{roomType: "Single", maxGuests: 1, price: 1000, desc: "Cozy single room with basic amenities", features: `["Wi-Fi","Air conditioning","TV"]`}},
		{2, seedRoom{roomType: "Double", maxGuests: 2, price: 2000, desc: "Spacious double room with queen bed", features: `["Wi-Fi","Air conditioning","TV","Mini fridge"]`}},
		{3, seedRoom{roomType: "Suite", maxGuests: 4, price: 3500, desc: "Luxury suite with living area", features: `["Wi-Fi","Air conditioning","Smart TV","Mini bar","Bathtub","Living area"]`}},
	}

	rooms := make([]models.Room, 0, 18)
	for _, g := range groups {
		for i := 1; i <= 6; i++ {
			rooms = append(rooms, models.Room{
				RoomNumber:    fmt.Sprintf("%d%02d", g.floor, i),
				RoomType:      g.roomType,
				PricePerNight: decimal.NewFromInt(g.price),
				MaxGuests:     g.maxGuests,
				Description:   g.desc,
				Features:      datatypes.JSON(g.features),
				IsAvailable:   true,
			})
		}
	}
	return rooms
}

// SeedDatabase inserts the default rooms into an empty rooms table and makes
// sure the reservation sequence starts after any existing reservation.
func SeedDatabase(db *gorm.DB) error {
	var roomCount int64
	if err := db.Model(&models.Room{}).Count(&roomCount).Error; err != nil {
		return fmt.Errorf("count rooms: %w", err)
	}
	if roomCount == 0 {
		rooms := defaultRooms()
		if err := db.Create(&rooms).Error; err != nil {
			return fmt.Errorf("seed rooms: %w", err)
		}
		log.Printf("✅ Seeded %d rooms", len(rooms))
	}

	var seq models.Sequence
	err := db.Where("name = ?", models.ReservationSequence).First(&seq).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("read sequence: %w", err)
	}

	var maxID int64
	if err := db.Model(&models.Reservation{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
		return fmt.Errorf("read max reservation id: %w", err)
	}
	seq = models.Sequence{Name: models.ReservationSequence, Value: maxID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return fmt.Errorf("init sequence: %w", err)
	}
	return nil
}
