package database

import (
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/unqnft/marketplace-proxy/internal/database/schema"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setup database with gorm
type Database struct {
	DB  *gorm.DB
	Log zerolog.Logger
	Cfg *koanf.Koanf
}

func NewDatabase(cfg *koanf.Koanf, log zerolog.Logger) *Database {
	db := &Database{
		Cfg: cfg,
		Log: log,
	}

	return db
}

// connect database
func (_db *Database) ConnectDatabase() {
	if (_db.DB != nil) && (_db.DB.Migrator().HasTable(&schema.Trade{})) {
		_db.Log.Info().Msg("The database is already connected!")
		return
	}

	conn, err := gorm.Open(postgres.Open(_db.Cfg.String("db.postgres.dsn")), &gorm.Config{
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: _db.Cfg.Bool("db.gorm.disable-foreign-key-constraint-when-migrating"),
	})
	if err != nil {
		_db.Log.Error().Err(err).Msg("An unknown error occurred when to connect the database!")
	} else {
		_db.Log.Info().Msg("Connected the database succesfully!")
	}

	_db.DB = conn
}

// shutdown database
func (_db *Database) ShutdownDatabase() {
	sqlDB, err := _db.DB.DB()
	if err != nil {
		_db.Log.Error().Err(err).Msg("An unknown error occurred when to shutdown the database!")
	} else {
		_db.Log.Info().Msg("Shutdown the database succesfully!")
	}
	sqlDB.Close()
}

// list of models for migration
func Models() []interface{} {
	return []interface{}{
		schema.Trade{},
		schema.MintRequest{},
		schema.RequestLog{},
	}
}

// migrate models
func (_db *Database) MigrateModels() {
	if err := _db.DB.AutoMigrate(
		Models()...,
	); err != nil {
		_db.Log.Error().Err(err).Msg("An unknown error occurred when to migrate the database!")
	}
}
