package telemetry

import (
	"context"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// OpenPostgres initializes the db session and auto migrates the
// reading model, retrying the initial connect a few times so the
// service survives the store coming up after it.
func OpenPostgres(connStr string) (db *gorm.DB, err error) {
	retryTicker := time.NewTicker(time.Second * 2)
	defer retryTicker.Stop()

	for range 5 {
		db, err = gorm.Open(postgres.Open(connStr), &gorm.Config{})
		if err == nil {
			break
		}
		<-retryTicker.C
	}
	if err != nil {
		return
	}

	err = db.AutoMigrate(&Reading{})

	return
}

func ClosePostgres(db *gorm.DB) error {
	sqlDb, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDb.Close()
}

type postgresStore struct {
	db *gorm.DB
}

// NewPostgresStore returns a Store backed by the given gorm session.
func NewPostgresStore(db *gorm.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) Append(ctx context.Context, reading Reading) error {
	return s.db.WithContext(ctx).Create(&reading).Error
}

func (s *postgresStore) QueryReadings(ctx context.Context, q Query) ([]Reading, error) {
	tx := s.db.WithContext(ctx).
		Where("organization_id = ?", q.OrganizationID).
		Where("component_name = ?", q.ComponentName).
		Where("category = ?", CategorySMS)

	if q.Sender != "" {
		tx = tx.Where("sender = ?", q.Sender)
	}
	if q.Recipient != "" {
		tx = tx.Where("recipient = ?", q.Recipient)
	}
	if q.Start != nil {
		tx = tx.Where("received_at >= ?", q.Start.UTC())
	}
	if q.End != nil {
		tx = tx.Where("received_at <= ?", q.End.UTC())
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var readings []Reading
	err := tx.Order("received_at DESC").Find(&readings).Error
	return readings, err
}
